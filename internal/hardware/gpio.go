package hardware

import (
	"context"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	periphhost "periph.io/x/host/v3"

	"github.com/tphakala/cropguard/internal/logger"
)

// initHost loads the periph drivers once per process.
var initHost = sync.OnceValue(func() error {
	_, err := periphhost.Init()
	return err
})

// GPIOActuator drives a relay or transistor on a GPIO pin.
type GPIOActuator struct {
	name      string
	pin       gpio.PinOut
	activeLow bool

	mu sync.Mutex
	on bool
}

// NewGPIOActuator opens the named pin (for example GPIO17) and drives it to
// the off level.
func NewGPIOActuator(name, pinName string, activeLow bool) (*GPIOActuator, error) {
	if err := initHost(); err != nil {
		return nil, actuatorError(fmt.Errorf("periph host init: %w", err), name, "gpio")
	}
	p := gpioreg.ByName(pinName)
	if p == nil {
		return nil, actuatorError(fmt.Errorf("gpio pin %q not found", pinName), name, "gpio")
	}
	a := newGPIOActuator(name, p, activeLow)
	if err := a.set(false); err != nil {
		return nil, err
	}
	return a, nil
}

func newGPIOActuator(name string, pin gpio.PinOut, activeLow bool) *GPIOActuator {
	return &GPIOActuator{name: name, pin: pin, activeLow: activeLow}
}

func (a *GPIOActuator) Name() string { return a.name }

func (a *GPIOActuator) On(context.Context) error { return a.set(true) }

func (a *GPIOActuator) Off(context.Context) error { return a.set(false) }

// IsOn reports the last level written.
func (a *GPIOActuator) IsOn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.on
}

func (a *GPIOActuator) set(on bool) error {
	level := gpio.Level(on)
	if a.activeLow {
		level = !level
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.pin.Out(level); err != nil {
		return actuatorError(err, a.name, "gpio")
	}
	a.on = on
	GetLogger().Debug("gpio actuator switched",
		logger.String("actuator", a.name),
		logger.String("pin", a.pin.Name()),
		logger.String("state", stateName(on)))
	return nil
}
