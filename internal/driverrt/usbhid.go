package driverrt

import (
	"context"
	"fmt"
	"math"

	"github.com/jochenvg/go-udev"

	"github.com/doismellburning/audiocloud-domain/internal/fixedinstance"
)

// HIDDevice is the minimal surface a usbhid Backend needs from an
// opened HID report device - a raw feature-report read/write path. No
// HID report library is present anywhere in this pack, so SPEC_FULL.md
// keeps this narrow and lets udev do what the pack actually shows it
// doing: enumerate and match the device node, not talk HID wire
// protocol.
type HIDDevice interface {
	WriteFeatureReport(report []byte) error
	ReadFeatureReport(reportID byte) ([]byte, error)
	Close() error
}

// usbhidBackend drives a USB HID device resolved via udev's vendor/
// product match, grounded on jochenvg/go-udev's Enumerate API (listed
// in this module's dependency set for exactly this kind of
// USB-device-discovery concern; no HID report transport exists in the
// pack, so DSP-specific report encoding is this package's boundary,
// left to a caller-supplied HIDDevice).
type usbhidBackend struct {
	device     HIDDevice
	paramIndex map[string]byte
}

// USBMatch identifies the USB HID device a fixed instance is wired to.
type USBMatch struct {
	VendorID  string
	ProductID string
}

// FindDevicePath uses udev to resolve match to a single /dev/hidrawN
// device node path, grounded on go-udev's Enumerate + filter-by-
// sysattr pattern.
func FindDevicePath(match USBMatch) (string, error) {
	u := udev.Udev{}
	enumerate := u.NewEnumerate()

	if err := enumerate.AddMatchSubsystem("hidraw"); err != nil {
		return "", fmt.Errorf("driverrt: filter hidraw subsystem: %w", err)
	}
	if err := enumerate.AddMatchProperty("ID_VENDOR_ID", match.VendorID); err != nil {
		return "", fmt.Errorf("driverrt: filter vendor id: %w", err)
	}
	if err := enumerate.AddMatchProperty("ID_MODEL_ID", match.ProductID); err != nil {
		return "", fmt.Errorf("driverrt: filter product id: %w", err)
	}

	devices, err := enumerate.Devices()
	if err != nil {
		return "", fmt.Errorf("driverrt: enumerate hidraw devices: %w", err)
	}
	if len(devices) == 0 {
		return "", fmt.Errorf("driverrt: no hidraw device matches vendor=%s product=%s", match.VendorID, match.ProductID)
	}

	return devices[0].Devnode(), nil
}

// NewUSBHIDBackend wraps an already-opened HIDDevice as a Backend.
// Parameter writes are encoded as a single-byte report id (the
// parameter's index in params) followed by the float32 value;
// SPEC_FULL.md's Non-goals exclude exact vendor report formats, so
// this is a minimal, documented convention rather than a specific
// device's real protocol.
func NewUSBHIDBackend(device HIDDevice, params []string) Backend {
	index := make(map[string]byte, len(params))
	for i, name := range params {
		index[name] = byte(i)
	}
	return &usbhidBackend{device: device, paramIndex: index}
}

func (b *usbhidBackend) SetParameter(_ context.Context, parameter string, _ int, value float64) error {
	id, ok := b.paramIndex[parameter]
	if !ok {
		return fmt.Errorf("driverrt: unknown hid parameter %q", parameter)
	}
	return b.device.WriteFeatureReport(encodeFloatReport(id, value))
}

func (b *usbhidBackend) SetPower(context.Context, int, bool) error {
	return fmt.Errorf("driverrt: usbhid backend has no power channel")
}

func (b *usbhidBackend) SetPlayState(context.Context, fixedinstance.DesiredPlayState) error {
	return fmt.Errorf("driverrt: usbhid backend has no transport")
}

func (b *usbhidBackend) Poll(context.Context) ([]Event, error) {
	return nil, nil
}

func (b *usbhidBackend) Close() error {
	return b.device.Close()
}

func encodeFloatReport(id byte, value float64) []byte {
	bits := math.Float32bits(float32(value))
	return []byte{id, byte(bits), byte(bits >> 8), byte(bits >> 16), byte(bits >> 24)}
}
