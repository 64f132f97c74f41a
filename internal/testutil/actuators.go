package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Switch is one recorded actuator state change.
type Switch struct {
	Name string
	On   bool
	At   time.Time
}

// ActuatorRecorder collects switches from a set of RecordingActuators in
// the order they happened.
type ActuatorRecorder struct {
	clock    clockwork.Clock
	mu       sync.Mutex
	switches []Switch
	failing  map[string]error
}

// NewActuatorRecorder timestamps switches with clock; nil means the real clock.
func NewActuatorRecorder(clock clockwork.Clock) *ActuatorRecorder {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ActuatorRecorder{clock: clock, failing: make(map[string]error)}
}

// Actuator returns a recording actuator with the given name.
func (r *ActuatorRecorder) Actuator(name string) *RecordingActuator {
	return &RecordingActuator{name: name, rec: r}
}

// Fail makes the named actuator return err. The switch is still recorded.
func (r *ActuatorRecorder) Fail(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failing[name] = err
}

// Switches returns a copy of every recorded switch.
func (r *ActuatorRecorder) Switches() []Switch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Switch(nil), r.switches...)
}

// SwitchesOf returns the recorded on/off sequence of one actuator.
func (r *ActuatorRecorder) SwitchesOf(name string) []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []bool
	for _, s := range r.switches {
		if s.Name == name {
			out = append(out, s.On)
		}
	}
	return out
}

// IsOn reports the last recorded state of the named actuator.
func (r *ActuatorRecorder) IsOn(name string) bool {
	seq := r.SwitchesOf(name)
	return len(seq) > 0 && seq[len(seq)-1]
}

func (r *ActuatorRecorder) record(name string, on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.switches = append(r.switches, Switch{Name: name, On: on, At: r.clock.Now()})
	return r.failing[name]
}

// RecordingActuator records On and Off calls in its recorder.
type RecordingActuator struct {
	name string
	rec  *ActuatorRecorder
}

func (a *RecordingActuator) Name() string { return a.name }

func (a *RecordingActuator) On(context.Context) error { return a.rec.record(a.name, true) }

func (a *RecordingActuator) Off(context.Context) error { return a.rec.record(a.name, false) }
