package main

import (
	"fmt"

	"github.com/doismellburning/audiocloud-domain/internal/config"
	"github.com/doismellburning/audiocloud-domain/internal/driverrt"
)

// singleBackendFactory answers driverrt.BackendFactory for exactly one
// instance, matching how a cmd/driver process drives one instance
// class per the teacher's one-small-binary-per-concern layout.
type singleBackendFactory struct {
	instanceID string
	newBackend func() (driverrt.Backend, error)
}

func (f singleBackendFactory) NewBackend(instanceID string) (driverrt.Backend, error) {
	if instanceID != f.instanceID {
		return nil, fmt.Errorf("driver: not configured for instance %q", instanceID)
	}
	return f.newBackend()
}

// newBackendFactory builds the singleBackendFactory for cfg.Backend,
// deferring the actual hardware open until the Driver Runtime first
// asks for it.
func newBackendFactory(cfg *config.DriverConfig) (driverrt.BackendFactory, error) {
	switch cfg.Backend {
	case "gpio":
		return singleBackendFactory{
			instanceID: cfg.InstanceID,
			newBackend: func() (driverrt.Backend, error) {
				return driverrt.NewGPIOBackend(driverrt.GPIOConfig{
					Chip:      cfg.GPIO.Chip,
					Offset:    cfg.GPIO.Offset,
					ActiveLow: cfg.GPIO.ActiveLow,
				})
			},
		}, nil

	case "serial":
		return singleBackendFactory{
			instanceID: cfg.InstanceID,
			newBackend: func() (driverrt.Backend, error) {
				port, err := openSerialPort(cfg.Serial.Port, cfg.Serial.Baud)
				if err != nil {
					return nil, err
				}
				return driverrt.NewSerialBackend(port), nil
			},
		}, nil

	case "usbhid":
		return singleBackendFactory{
			instanceID: cfg.InstanceID,
			newBackend: func() (driverrt.Backend, error) {
				path, err := driverrt.FindDevicePath(driverrt.USBMatch{
					VendorID:  cfg.USBHID.VendorID,
					ProductID: cfg.USBHID.ProductID,
				})
				if err != nil {
					return nil, err
				}
				device, err := openHIDRawDevice(path, hidReportSize)
				if err != nil {
					return nil, err
				}
				return driverrt.NewUSBHIDBackend(device, cfg.USBHID.Params), nil
			},
		}, nil

	default:
		return nil, fmt.Errorf("driver: unknown backend %q", cfg.Backend)
	}
}

// hidReportSize bounds the feature report buffer: one report-id byte
// plus the four-byte encoding usbhidBackend.encodeFloatReport writes.
const hidReportSize = 5
