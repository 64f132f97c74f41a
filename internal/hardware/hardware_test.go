package hardware

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/tphakala/cropguard/internal/conf"
	"github.com/tphakala/cropguard/internal/errors"
	"github.com/tphakala/cropguard/internal/mqtt"
	"github.com/tphakala/cropguard/internal/testutil"
)

func TestGPIOActuator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		activeLow bool
		onLevel   gpio.Level
	}{
		{"active high", false, gpio.High},
		{"active low", true, gpio.Low},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			pin := &gpiotest.Pin{N: "GPIO17", L: !tt.onLevel}
			a := newGPIOActuator(Light1, pin, tt.activeLow)

			require.NoError(t, a.On(t.Context()))
			assert.Equal(t, tt.onLevel, pin.Read())
			assert.True(t, a.IsOn())

			require.NoError(t, a.Off(t.Context()))
			assert.Equal(t, !tt.onLevel, pin.Read())
			assert.False(t, a.IsOn())
		})
	}
}

func TestMQTTActuatorPublishesRetained(t *testing.T) {
	t.Parallel()
	client := mqtt.NewMemoryClient()
	require.NoError(t, client.Connect(t.Context()))

	a := NewMQTTActuator(Buzzer1, "farm/buzzer1", client)
	require.NoError(t, a.On(t.Context()))
	require.NoError(t, a.Off(t.Context()))

	assert.Equal(t, []string{PayloadOn, PayloadOff}, client.MessagesOn("farm/buzzer1"))
	for _, m := range client.Messages() {
		assert.True(t, m.Retain)
	}
}

func TestMQTTActuatorError(t *testing.T) {
	t.Parallel()
	client := mqtt.NewMemoryClient()

	err := NewMQTTActuator(Light2, "farm/light2", client).On(t.Context())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryActuator))
}

func TestBank(t *testing.T) {
	t.Parallel()
	rec := testutil.NewActuatorRecorder(nil)
	bank := &Bank{
		Light1:  rec.Actuator(Light1),
		Light2:  rec.Actuator(Light2),
		Buzzer1: rec.Actuator(Buzzer1),
		Buzzer2: rec.Actuator(Buzzer2),
	}
	assert.Len(t, bank.Buzzers(), 2)

	t.Run("switch by name", func(t *testing.T) {
		require.NoError(t, bank.SwitchByName(t.Context(), Light2, true))
		assert.True(t, rec.IsOn(Light2))

		err := bank.SwitchByName(t.Context(), "siren", true)
		assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	})

	t.Run("all off continues after failure", func(t *testing.T) {
		rec.Fail(Light1, fmt.Errorf("relay stuck"))
		err := bank.AllOff(t.Context())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "relay stuck")
		assert.False(t, rec.IsOn(Light2))
		assert.Equal(t, []bool{false}, rec.SwitchesOf(Buzzer1))
		assert.Equal(t, []bool{false}, rec.SwitchesOf(Buzzer2))
	})

	t.Run("buzzer2 is optional", func(t *testing.T) {
		b := &Bank{Buzzer1: rec.Actuator(Buzzer1)}
		assert.Len(t, b.All(), 1)
		assert.Len(t, b.Buzzers(), 1)
	})
}

func TestParseReading(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		key     string
		want    float64
		wantErr bool
	}{
		{"plain number", "21.5", "", 21.5, false},
		{"padded number", " 7 \n", "", 7, false},
		{"json field", `{"temperature": 18.25, "humidity": 60}`, "temperature", 18.25, false},
		{"json without key", `{"temperature": 18.25}`, "", 0, true},
		{"missing field", `{"humidity": 60}`, "temperature", 0, true},
		{"non numeric field", `{"temperature": "warm"}`, "temperature", 0, true},
		{"garbage", "offline", "temperature", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseReading([]byte(tt.payload), tt.key)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestMQTTSensor(t *testing.T) {
	t.Parallel()
	client := mqtt.NewMemoryClient()
	require.NoError(t, client.Connect(t.Context()))

	s, err := NewMQTTSensor(t.Context(), client, "farm/temp", "t", 100*time.Millisecond)
	require.NoError(t, err)

	_, err = s.Read(t.Context())
	require.ErrorIs(t, err, ErrSensorUnavailable)

	require.NoError(t, client.Publish(t.Context(), "farm/temp", `{"t": 24.5}`))
	v, err := s.Read(t.Context())
	require.NoError(t, err)
	assert.InDelta(t, 24.5, v, 1e-9)

	// An unparsable payload keeps the previous reading.
	require.NoError(t, client.Publish(t.Context(), "farm/temp", "nan?"))
	v, err = s.Read(t.Context())
	require.NoError(t, err)
	assert.InDelta(t, 24.5, v, 1e-9)

	require.Eventually(t, func() bool {
		_, err := s.Read(t.Context())
		return errors.Is(err, ErrSensorUnavailable)
	}, testutil.DefaultTestTimeout, 10*time.Millisecond)
}

func TestHostSensor(t *testing.T) {
	t.Parallel()
	stats := []host.TemperatureStat{
		{SensorKey: "acpitz", Temperature: 40},
		{SensorKey: "cpu_thermal", Temperature: 52.5},
	}

	tests := []struct {
		name    string
		key     string
		stats   []host.TemperatureStat
		err     error
		want    float64
		wantErr bool
	}{
		{"first sensor", "", stats, nil, 40, false},
		{"matched key", "cpu", stats, nil, 52.5, false},
		{"partial results with warnings", "cpu", stats, fmt.Errorf("warnings"), 52.5, false},
		{"no match", "gpu", stats, nil, 0, true},
		{"no sensors", "", nil, nil, 0, true},
		{"read failure", "", nil, fmt.Errorf("no thermal zone"), 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := &HostSensor{key: tt.key, temps: func(context.Context) ([]host.TemperatureStat, error) {
				return tt.stats, tt.err
			}}
			got, err := s.Read(t.Context())
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrSensorUnavailable)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestReadOrNil(t *testing.T) {
	t.Parallel()
	assert.Nil(t, ReadOrNil(t.Context(), nil))
	assert.Nil(t, ReadOrNil(t.Context(), NoneSensor{}))

	s := &HostSensor{temps: func(context.Context) ([]host.TemperatureStat, error) {
		return []host.TemperatureStat{{SensorKey: "x", Temperature: 12}}, nil
	}}
	v := ReadOrNil(t.Context(), s)
	require.NotNil(t, v)
	assert.InDelta(t, 12.0, *v, 1e-9)
}

func TestFactory(t *testing.T) {
	t.Parallel()
	client := mqtt.NewMemoryClient()
	require.NoError(t, client.Connect(t.Context()))

	t.Run("log driver", func(t *testing.T) {
		bank, err := NewBank(&conf.HardwareSettings{Driver: conf.HardwareDriverLog}, nil)
		require.NoError(t, err)
		require.Len(t, bank.All(), 3)
		require.NoError(t, bank.SwitchByName(t.Context(), Light1, true))
		assert.True(t, bank.Light1.(*LogActuator).IsOn())
	})

	t.Run("mqtt driver", func(t *testing.T) {
		hw := &conf.HardwareSettings{
			Driver:  conf.HardwareDriverMQTT,
			Light1:  conf.ActuatorSettings{Topic: "a/l1"},
			Light2:  conf.ActuatorSettings{Topic: "a/l2"},
			Buzzer1: conf.ActuatorSettings{Topic: "a/b1"},
		}
		bank, err := NewBank(hw, client)
		require.NoError(t, err)
		require.NoError(t, bank.AllOff(t.Context()))
		assert.Equal(t, []string{PayloadOff}, client.MessagesOn("a/b1"))
		assert.Nil(t, bank.Buzzer2)

		hw.Buzzer2 = conf.ActuatorSettings{Topic: "a/b2"}
		bank, err = NewBank(hw, client)
		require.NoError(t, err)
		require.Len(t, bank.All(), 4)
		require.NoError(t, bank.AllOff(t.Context()))
		assert.Equal(t, []string{PayloadOff}, client.MessagesOn("a/b2"))
		hw.Buzzer2 = conf.ActuatorSettings{}

		_, err = NewBank(hw, nil)
		assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := NewBank(&conf.HardwareSettings{Driver: "serial"}, nil)
		assert.Error(t, err)
	})

	t.Run("sensors", func(t *testing.T) {
		s, err := NewSensor(t.Context(), &conf.SensorSettings{Source: conf.SensorSourceNone}, nil)
		require.NoError(t, err)
		assert.IsType(t, NoneSensor{}, s)

		s, err = NewSensor(t.Context(), &conf.SensorSettings{Source: conf.SensorSourceHost, Key: "cpu"}, nil)
		require.NoError(t, err)
		assert.IsType(t, &HostSensor{}, s)

		s, err = NewSensor(t.Context(), &conf.SensorSettings{Source: conf.SensorSourceMQTT, Topic: "t"}, client)
		require.NoError(t, err)
		assert.IsType(t, &MQTTSensor{}, s)

		_, err = NewSensor(t.Context(), &conf.SensorSettings{Source: conf.SensorSourceMQTT}, nil)
		assert.Error(t, err)
	})
}
