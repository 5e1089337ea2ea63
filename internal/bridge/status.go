package bridge

// Status is a point-in-time copy of the loop, safe to read from any
// goroutine.
type Status struct {
	State       string `json:"state" example:"streaming" doc:"Loop state: idle, streaming, stopping"`
	Attachment  string `json:"attachment" example:"streaming" doc:"Attachment state"`
	Device      string `json:"device,omitempty" example:"001/004" doc:"Bus number and address"`
	Vendor      uint16 `json:"vendor,omitempty" doc:"USB vendor id"`
	Product     uint16 `json:"product,omitempty" doc:"USB product id"`
	Parked      bool   `json:"parked" doc:"Session start suspended until the next arrival"`
	Source      string `json:"source" example:"virtual" doc:"Frame source"`
	Mode        string `json:"mode,omitempty" example:"1920x1080@60" doc:"Current virtual display mode"`
	Preferred   string `json:"preferred,omitempty" example:"1920x1080@60" doc:"Preferred mode from the identity block"`
	Fingerprint string `json:"fingerprint,omitempty" doc:"Identity block fingerprint"`
	Frames      uint64 `json:"frames" doc:"Frames forwarded in the current session"`
	Blanked     bool   `json:"blanked" doc:"Display blanked by DPMS"`
}

// Status returns the snapshot taken at the end of the last tick.
func (l *Loop) Status() Status {
	if st := l.status.Load(); st != nil {
		return *st
	}
	return Status{}
}

func (l *Loop) publishStatus() {
	st := &Status{
		State:      l.state.String(),
		Attachment: l.attach.State().String(),
		Parked:     l.attach.Parked(),
		Source:     string(l.opts.Source),
	}
	if dev := l.attach.Device(); dev.Ref.Known() {
		st.Device = dev.Ref.String()
		st.Vendor, st.Product = dev.Vendor, dev.Product
	}
	if s := l.sess; s != nil {
		if m := s.display.Mode(); m.Valid() {
			st.Mode = m.String()
		}
		st.Preferred = s.display.Preferred().String()
		st.Fingerprint = s.fpr
		st.Frames = s.frames
		st.Blanked = s.blanked
	}
	l.status.Store(st)
}
