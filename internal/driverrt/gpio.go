package driverrt

import (
	"context"
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/doismellburning/audiocloud-domain/internal/fixedinstance"
)

// gpioLine is the subset of gpiocdev.Line a gpioBackend drives -
// narrowed so tests can fake it without an actual gpiochip device.
type gpioLine interface {
	SetValue(value int) error
	Close() error
}

// gpioBackend flips a relay's power line through a Linux GPIO
// character device, grounded on ptt.go's GPIO-driven PTT concept
// (export a line, then toggle its value to key a transmitter)
// generalized from "key a transmitter" to "power up an instance" and
// modernized from ptt.go's /sys/class/gpio + cgo libgpiod calls to the
// pure-Go github.com/warthog618/go-gpiocdev character-device API.
// Fixed instances have no parameter or play-state surface over GPIO,
// so SetParameter and SetPlayState return an error.
type gpioBackend struct {
	line     gpioLine
	activeLo bool
}

// GPIOConfig names the chip and line offset a fixed instance's power
// relay is wired to.
type GPIOConfig struct {
	Chip      string
	Offset    int
	ActiveLow bool
}

// NewGPIOBackend opens chip/offset as an output line and returns a
// Backend that only answers power commands.
func NewGPIOBackend(cfg GPIOConfig) (Backend, error) {
	line, err := gpiocdev.RequestLine(cfg.Chip, cfg.Offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("driverrt: request gpio line %s:%d: %w", cfg.Chip, cfg.Offset, err)
	}
	return &gpioBackend{line: line, activeLo: cfg.ActiveLow}, nil
}

func newGPIOBackendWithLine(line gpioLine, activeLow bool) Backend {
	return &gpioBackend{line: line, activeLo: activeLow}
}

func (g *gpioBackend) SetParameter(context.Context, string, int, float64) error {
	return fmt.Errorf("driverrt: gpio backend has no parameters")
}

func (g *gpioBackend) SetPower(_ context.Context, _ int, up bool) error {
	value := 0
	if up != g.activeLo {
		value = 1
	}
	return g.line.SetValue(value)
}

func (g *gpioBackend) SetPlayState(context.Context, fixedinstance.DesiredPlayState) error {
	return fmt.Errorf("driverrt: gpio backend has no transport")
}

func (g *gpioBackend) Poll(context.Context) ([]Event, error) {
	return nil, nil
}

func (g *gpioBackend) Close() error {
	return g.line.Close()
}
