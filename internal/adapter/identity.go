package adapter

import (
	"fmt"
	"log/slog"

	"github.com/smazurov/usbdisplay/internal/identity"
	"github.com/smazurov/usbdisplay/internal/logging"
)

// Vendor request returning one half of the identity block. wValue selects
// the half (1, then 2).
const (
	identityRequestType = 0xC1 // device-to-host, vendor, interface
	identityRequest     = 0x41
	identityIndex       = 0
)

// IdentityReader fetches the identity block from an adapter over a handle
// it opens and closes itself.
type IdentityReader struct {
	bus    Bus
	logger *slog.Logger
}

// NewIdentityReader returns a reader that opens devices through bus.
func NewIdentityReader(bus Bus) *IdentityReader {
	return &IdentityReader{bus: bus, logger: logging.GetLogger("adapter")}
}

// Read opens ref, reads both halves of the block and closes the handle.
// It returns a full 256-byte block or an error, never a partial block.
func (r *IdentityReader) Read(ref DeviceRef) (identity.Block, error) {
	h, err := r.bus.Open(ref)
	if err != nil {
		return identity.Block{}, fmt.Errorf("open for identity read: %w", err)
	}
	defer r.cleanup(h, ref)

	var halves [2][]byte
	for i := range halves {
		half := make([]byte, identity.HalfSize)
		n, err := h.Control(identityRequestType, identityRequest, uint16(i+1), identityIndex, half)
		if err != nil {
			return identity.Block{}, fmt.Errorf("identity half %d: %w", i+1, err)
		}
		if n != identity.HalfSize {
			return identity.Block{}, fmt.Errorf("identity half %d: %w: got %d of %d bytes",
				i+1, ErrShortTransfer, n, identity.HalfSize)
		}
		halves[i] = half
	}

	block, err := identity.FromHalves(halves[0], halves[1])
	if err != nil {
		return identity.Block{}, err
	}
	r.logger.Debug("Identity block read", "device", ref, "fingerprint", block.Fingerprint())
	return block, nil
}

// cleanup clears any halt left on the control endpoint and closes h.
// Failures are logged only.
func (r *IdentityReader) cleanup(h Handle, ref DeviceRef) {
	if err := ClearHalt(h, 0); err != nil {
		r.logger.Warn("Identity handle cleanup failed", "device", ref, "error", err)
	}
	if err := h.Close(); err != nil {
		r.logger.Warn("Failed to close identity handle", "device", ref, "error", err)
	}
}
