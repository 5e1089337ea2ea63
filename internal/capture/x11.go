//go:build linux

package capture

import (
	"errors"
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/shm"
	"github.com/BurntSushi/xgb/xproto"
	"golang.org/x/sys/unix"
)

// X11Server is a Server on an X connection with RandR and MIT-SHM.
type X11Server struct {
	conn *xgb.Conn
	root xproto.Window
	// live counts shared segments attached and not yet released.
	mu   sync.Mutex
	live int
}

// OpenX11 connects to display, or $DISPLAY when empty, and initialises
// the RandR and MIT-SHM extensions.
func OpenX11(display string) (*X11Server, error) {
	conn, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("open X display %q: %w", display, err)
	}
	if err := randr.Init(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("RandR extension: %w", err)
	}
	if err := shm.Init(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("MIT-SHM extension: %w", err)
	}

	root := xproto.Setup(conn).DefaultScreen(conn).Root
	return &X11Server{conn: conn, root: root}, nil
}

// Outputs reads the current RandR outputs in server order.
func (s *X11Server) Outputs() (Topology, error) {
	res, err := randr.GetScreenResourcesCurrent(s.conn, s.root).Reply()
	if err != nil {
		return Topology{}, fmt.Errorf("get screen resources: %w", err)
	}

	topo := Topology{Outputs: make([]Output, 0, len(res.Outputs))}
	for _, id := range res.Outputs {
		info, err := randr.GetOutputInfo(s.conn, id, res.ConfigTimestamp).Reply()
		if err != nil {
			return Topology{}, fmt.Errorf("get output info: %w", err)
		}
		out := Output{
			Name:       string(info.Name),
			Connection: Connection(info.Connection),
		}
		if out.Connection > Unknown {
			out.Connection = Unknown
		}
		if info.Crtc != 0 {
			crtc, err := randr.GetCrtcInfo(s.conn, info.Crtc, res.ConfigTimestamp).Reply()
			if err != nil {
				return Topology{}, fmt.Errorf("get crtc info for %s: %w", out.Name, err)
			}
			out.X, out.Y = int(crtc.X), int(crtc.Y)
			out.Width, out.Height = int(crtc.Width), int(crtc.Height)
		}
		topo.Outputs = append(topo.Outputs, out)
	}
	return topo, nil
}

// Pointer returns the pointer position on the root window.
func (s *X11Server) Pointer() (int, int, error) {
	p, err := xproto.QueryPointer(s.conn, s.root).Reply()
	if err != nil {
		return 0, 0, fmt.Errorf("query pointer: %w", err)
	}
	return int(p.RootX), int(p.RootY), nil
}

// NewImage allocates a System V segment of width*height*4 bytes and
// attaches it to the server. The segment is marked for removal as soon as
// both sides are attached, so it disappears with the last detach.
func (s *X11Server) NewImage(width, height int) (Image, error) {
	if width <= 0 || height <= 0 || width > 0xffff || height > 0xffff {
		return nil, fmt.Errorf("invalid image size %dx%d", width, height)
	}
	size := width * height * 4

	id, err := unix.SysvShmGet(unix.IPC_PRIVATE, size, unix.IPC_CREAT|0o600)
	if err != nil {
		return nil, fmt.Errorf("shmget: %w", err)
	}
	data, err := unix.SysvShmAttach(id, 0, 0)
	if err != nil {
		_, _ = unix.SysvShmCtl(id, unix.IPC_RMID, nil)
		return nil, fmt.Errorf("shmat: %w", err)
	}

	seg, err := shm.NewSegId(s.conn)
	if err != nil {
		_ = unix.SysvShmDetach(data)
		_, _ = unix.SysvShmCtl(id, unix.IPC_RMID, nil)
		return nil, fmt.Errorf("allocate shm seg id: %w", err)
	}
	if err := shm.AttachChecked(s.conn, seg, uint32(id), false).Check(); err != nil {
		_ = unix.SysvShmDetach(data)
		_, _ = unix.SysvShmCtl(id, unix.IPC_RMID, nil)
		return nil, fmt.Errorf("X shm attach: %w", err)
	}
	if _, err := unix.SysvShmCtl(id, unix.IPC_RMID, nil); err != nil {
		_ = shm.DetachChecked(s.conn, seg).Check()
		_ = unix.SysvShmDetach(data)
		return nil, fmt.Errorf("shmctl IPC_RMID: %w", err)
	}

	s.mu.Lock()
	s.live++
	s.mu.Unlock()

	return &shmImage{srv: s, seg: seg, data: data, width: width, height: height}, nil
}

// LiveImages returns the number of attached images not yet released.
func (s *X11Server) LiveImages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// Close closes the X connection.
func (s *X11Server) Close() error {
	s.conn.Close()
	return nil
}

type shmImage struct {
	srv           *X11Server
	seg           shm.Seg
	data          []byte
	width, height int
	released      bool
}

func (img *shmImage) Fill(x, y int) error {
	if img.released {
		return errors.New("image released")
	}
	_, err := shm.GetImage(img.srv.conn, xproto.Drawable(img.srv.root),
		int16(x), int16(y), uint16(img.width), uint16(img.height),
		0xffffffff, xproto.ImageFormatZPixmap, img.seg, 0).Reply()
	return err
}

func (img *shmImage) Bytes() []byte { return img.data }

func (img *shmImage) Release() error {
	if img.released {
		return nil
	}
	img.released = true

	var errs []error
	if err := shm.DetachChecked(img.srv.conn, img.seg).Check(); err != nil {
		errs = append(errs, fmt.Errorf("X shm detach: %w", err))
	}
	if err := unix.SysvShmDetach(img.data); err != nil {
		errs = append(errs, fmt.Errorf("shmdt: %w", err))
	}
	img.data = nil

	img.srv.mu.Lock()
	img.srv.live--
	img.srv.mu.Unlock()
	return errors.Join(errs...)
}
