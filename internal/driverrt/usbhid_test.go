package driverrt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHIDDevice struct {
	reports [][]byte
	closed  bool
}

func (d *fakeHIDDevice) WriteFeatureReport(report []byte) error {
	d.reports = append(d.reports, report)
	return nil
}

func (d *fakeHIDDevice) ReadFeatureReport(byte) ([]byte, error) { return nil, nil }

func (d *fakeHIDDevice) Close() error {
	d.closed = true
	return nil
}

func TestUSBHIDBackend_SetParameterEncodesTheIndexedReport(t *testing.T) {
	device := &fakeHIDDevice{}
	b := NewUSBHIDBackend(device, []string{"gain", "pan"})

	require.NoError(t, b.SetParameter(context.Background(), "pan", 0, 1))

	require.Len(t, device.reports, 1)
	assert.Equal(t, byte(1), device.reports[0][0], "pan is index 1")
}

func TestUSBHIDBackend_RejectsAnUnknownParameter(t *testing.T) {
	b := NewUSBHIDBackend(&fakeHIDDevice{}, []string{"gain"})
	assert.Error(t, b.SetParameter(context.Background(), "nope", 0, 1))
}

func TestUSBHIDBackend_HasNoPowerOrTransport(t *testing.T) {
	b := NewUSBHIDBackend(&fakeHIDDevice{}, nil)
	assert.Error(t, b.SetPower(context.Background(), 0, true))
}

func TestUSBHIDBackend_CloseClosesTheUnderlyingDevice(t *testing.T) {
	device := &fakeHIDDevice{}
	b := NewUSBHIDBackend(device, nil)
	require.NoError(t, b.Close())
	assert.True(t, device.closed)
}
