package hardware

import (
	"context"
	"fmt"

	"github.com/tphakala/cropguard/internal/conf"
	"github.com/tphakala/cropguard/internal/errors"
	"github.com/tphakala/cropguard/internal/mqtt"
)

// NewBank builds the actuators of the configured driver. client is only
// used by the mqtt driver.
func NewBank(hw *conf.HardwareSettings, client mqtt.Client) (*Bank, error) {
	devices := []struct {
		name string
		cfg  conf.ActuatorSettings
	}{
		{Light1, hw.Light1},
		{Light2, hw.Light2},
		{Buzzer1, hw.Buzzer1},
	}

	built := make([]Actuator, len(devices))
	for i, d := range devices {
		a, err := newActuator(hw.Driver, d.name, d.cfg, client)
		if err != nil {
			return nil, err
		}
		built[i] = a
	}
	bank := &Bank{Light1: built[0], Light2: built[1], Buzzer1: built[2]}

	if hw.Buzzer2.Configured() {
		a, err := newActuator(hw.Driver, Buzzer2, hw.Buzzer2, client)
		if err != nil {
			return nil, err
		}
		bank.Buzzer2 = a
	}
	return bank, nil
}

func newActuator(driver, name string, cfg conf.ActuatorSettings, client mqtt.Client) (Actuator, error) {
	switch driver {
	case conf.HardwareDriverGPIO:
		return NewGPIOActuator(name, cfg.Pin, cfg.ActiveLow)
	case conf.HardwareDriverMQTT:
		if client == nil {
			return nil, configError(fmt.Errorf("mqtt actuator %s requires mqtt to be enabled", name))
		}
		return NewMQTTActuator(name, cfg.Topic, client), nil
	case conf.HardwareDriverLog, "":
		return NewLogActuator(name, nil), nil
	default:
		return nil, configError(fmt.Errorf("unknown hardware driver %q", driver))
	}
}

// NewSensor builds the configured temperature source.
func NewSensor(ctx context.Context, s *conf.SensorSettings, client mqtt.Client) (Sensor, error) {
	switch s.Source {
	case conf.SensorSourceMQTT:
		if client == nil {
			return nil, configError(fmt.Errorf("mqtt sensor requires mqtt to be enabled"))
		}
		return NewMQTTSensor(ctx, client, s.Topic, s.Key, s.TTL)
	case conf.SensorSourceHost:
		return NewHostSensor(s.Key), nil
	case conf.SensorSourceNone, "":
		return NoneSensor{}, nil
	default:
		return nil, configError(fmt.Errorf("unknown sensor source %q", s.Source))
	}
}

func configError(err error) error {
	return errors.New(err).
		Component("hardware").
		Category(errors.CategoryConfiguration).
		Build()
}
