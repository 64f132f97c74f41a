package hardware

import (
	"context"
	"sync"

	"github.com/tphakala/cropguard/internal/logger"
)

// LogActuator only logs switches. It is the driver for hosts without
// attached hardware.
type LogActuator struct {
	name string
	log  logger.Logger

	mu sync.Mutex
	on bool
}

// NewLogActuator returns a LogActuator writing to log; nil uses the module logger.
func NewLogActuator(name string, log logger.Logger) *LogActuator {
	if log == nil {
		log = GetLogger()
	}
	return &LogActuator{name: name, log: log}
}

func (a *LogActuator) Name() string { return a.name }

func (a *LogActuator) On(context.Context) error { return a.set(true) }

func (a *LogActuator) Off(context.Context) error { return a.set(false) }

// IsOn reports the last state set.
func (a *LogActuator) IsOn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.on
}

func (a *LogActuator) set(on bool) error {
	a.mu.Lock()
	a.on = on
	a.mu.Unlock()
	a.log.Info("actuator switched",
		logger.String("actuator", a.name),
		logger.String("state", stateName(on)))
	return nil
}
