package adapter

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/gousb"
	"github.com/smazurov/usbdisplay/internal/logging"
)

// USBBus is the libusb-backed Bus.
type USBBus struct {
	ctx            *gousb.Context
	controlTimeout time.Duration
	logger         *slog.Logger
}

// NewUSBBus opens a libusb context. Control transfers on handles opened
// through the bus time out after controlTimeout.
func NewUSBBus(controlTimeout time.Duration) (bus *USBBus, err error) {
	// gousb panics when libusb cannot initialise.
	defer func() {
		if r := recover(); r != nil {
			bus, err = nil, fmt.Errorf("libusb init: %v", r)
		}
	}()

	return &USBBus{
		ctx:            gousb.NewContext(),
		controlTimeout: controlTimeout,
		logger:         logging.GetLogger("adapter"),
	}, nil
}

// Scan lists connected devices without opening any of them.
func (b *USBBus) Scan() ([]DeviceInfo, error) {
	var found []DeviceInfo
	devs, err := b.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		found = append(found, DeviceInfo{
			Ref:     DeviceRef{Bus: desc.Bus, Address: desc.Address},
			Vendor:  uint16(desc.Vendor),
			Product: uint16(desc.Product),
		})
		return false
	})
	for _, d := range devs {
		_ = d.Close()
	}
	if err != nil {
		// Enumeration errors for individual devices still leave found usable.
		b.logger.Debug("USB enumeration reported errors", "error", err)
	}
	return found, nil
}

// Open opens the device at ref.
func (b *USBBus) Open(ref DeviceRef) (Handle, error) {
	devs, err := b.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Bus == ref.Bus && desc.Address == ref.Address
	})
	if len(devs) == 0 {
		if err != nil {
			return nil, fmt.Errorf("open usb device %s: %w", ref, err)
		}
		return nil, fmt.Errorf("open usb device %s: %w", ref, ErrNotFound)
	}
	for _, extra := range devs[1:] {
		_ = extra.Close()
	}

	dev := devs[0]
	dev.ControlTimeout = b.controlTimeout
	return &usbHandle{dev: dev}, nil
}

// Close releases the libusb context.
func (b *USBBus) Close() error {
	return b.ctx.Close()
}

type usbHandle struct {
	dev *gousb.Device
}

func (h *usbHandle) Control(rType, request uint8, val, idx uint16, data []byte) (int, error) {
	return h.dev.Control(rType, request, val, idx, data)
}

func (h *usbHandle) Close() error {
	return h.dev.Close()
}
