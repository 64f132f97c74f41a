// Package hardware drives the deterrent lights and buzzer and reads the
// ambient temperature recorded in the backup ledger.
package hardware

import (
	"context"

	"github.com/tphakala/cropguard/internal/errors"
	"github.com/tphakala/cropguard/internal/logger"
)

// Actuator names used in configuration, MQTT topics and bot commands.
const (
	Light1  = "light1"
	Light2  = "light2"
	Buzzer1 = "buzzer1"
	Buzzer2 = "buzzer2"
)

// Actuator is a binary output device.
type Actuator interface {
	Name() string
	On(ctx context.Context) error
	Off(ctx context.Context) error
}

// Switch turns a on or off.
func Switch(ctx context.Context, a Actuator, on bool) error {
	if on {
		return a.On(ctx)
	}
	return a.Off(ctx)
}

// Bank is the set of actuators on a field station. Buzzer2 is optional.
type Bank struct {
	Light1  Actuator
	Light2  Actuator
	Buzzer1 Actuator
	Buzzer2 Actuator
}

// All returns the configured actuators in a stable order.
func (b *Bank) All() []Actuator {
	return present(b.Light1, b.Light2, b.Buzzer1, b.Buzzer2)
}

// Buzzers returns buzzer1 and, when fitted, buzzer2.
func (b *Bank) Buzzers() []Actuator {
	return present(b.Buzzer1, b.Buzzer2)
}

func present(as ...Actuator) []Actuator {
	out := make([]Actuator, 0, len(as))
	for _, a := range as {
		if a != nil {
			out = append(out, a)
		}
	}
	return out
}

// ByName looks up an actuator by its configuration name.
func (b *Bank) ByName(name string) (Actuator, bool) {
	for _, a := range b.All() {
		if a.Name() == name {
			return a, true
		}
	}
	return nil, false
}

// SwitchByName switches the named actuator.
func (b *Bank) SwitchByName(ctx context.Context, name string, on bool) error {
	a, ok := b.ByName(name)
	if !ok {
		return unknownActuator(name)
	}
	return Switch(ctx, a, on)
}

// AllOff switches every actuator off. Every device is attempted even when
// an earlier one fails.
func (b *Bank) AllOff(ctx context.Context) error {
	var errs []error
	for _, a := range b.All() {
		if err := a.Off(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func actuatorError(err error, name, driver string) error {
	return errors.New(err).
		Component("hardware").
		Category(errors.CategoryActuator).
		Context("actuator", name).
		Context("driver", driver).
		Build()
}

func stateName(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// GetLogger returns the hardware module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("hardware")
}

func unknownActuator(name string) error {
	return errors.Newf("unknown actuator %q", name).
		Component("hardware").
		Category(errors.CategoryValidation).
		Build()
}
