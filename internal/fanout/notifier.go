// Package fanout turns one detection event into a Detected increment, a
// ledger record, an MQTT event and one confirmation request per recipient.
package fanout

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/cropguard/internal/backup"
	"github.com/tphakala/cropguard/internal/confirmation"
	"github.com/tphakala/cropguard/internal/detection"
	"github.com/tphakala/cropguard/internal/hardware"
	"github.com/tphakala/cropguard/internal/logger"
	"github.com/tphakala/cropguard/internal/messaging"
	"github.com/tphakala/cropguard/internal/mqtt"
	"github.com/tphakala/cropguard/internal/observability/metrics"
)

// Ledger records detections in the backup folder.
type Ledger interface {
	Append(ev detection.Event, temperature *float64) (backup.Entry, error)
}

// Config holds the collaborators of a Notifier. Ledger, Sensor, MQTT and
// Metrics are optional.
type Config struct {
	Counter   confirmation.Counter
	Resolver  *confirmation.Resolver
	Messenger messaging.Messenger
	Ledger    Ledger
	Sensor    hardware.Sensor
	MQTT      mqtt.Client
	Topic     string
	Location  *time.Location
	Metrics   *metrics.DetectionMetrics
	Logger    logger.Logger
}

// Notifier runs the fan-out for one event at a time; callers run Notify in
// their own goroutines.
type Notifier struct {
	counter   confirmation.Counter
	resolver  *confirmation.Resolver
	messenger messaging.Messenger
	ledger    Ledger
	sensor    hardware.Sensor
	mqtt      mqtt.Client
	topic     string
	loc       *time.Location
	metrics   *metrics.DetectionMetrics
	log       logger.Logger
}

// Result summarises one Notify call.
type Result struct {
	FanOutID  uuid.UUID
	Delivered int
	Failed    int
	// Entry is the ledger record, nil when no ledger is configured or the
	// append failed.
	Entry *backup.Entry
}

// NewNotifier returns a Notifier.
func NewNotifier(cfg Config) *Notifier {
	log := cfg.Logger
	if log == nil {
		log = GetLogger()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Notifier{
		counter:   cfg.Counter,
		resolver:  cfg.Resolver,
		messenger: cfg.Messenger,
		ledger:    cfg.Ledger,
		sensor:    cfg.Sensor,
		mqtt:      cfg.MQTT,
		topic:     cfg.Topic,
		loc:       loc,
		metrics:   cfg.Metrics,
		log:       log,
	}
}

// Notify counts ev as Detected and asks every recipient to confirm it. It
// returns once all sends are done; the answer window runs on its own.
//
// A failed Detected increment abandons the fan-out and is returned. Ledger,
// MQTT and per-recipient delivery failures are logged and skipped.
func (n *Notifier) Notify(ctx context.Context, ev detection.Event, recipients []messaging.RecipientID) (Result, error) {
	log := n.log.With(
		logger.String("category", ev.Category.String()),
		logger.String("image", ev.Path))

	if err := n.counter.Increment(ctx, detection.Detected, ev.Category); err != nil {
		log.Error("detected increment failed, fan-out abandoned", logger.Error(err))
		return Result{}, err
	}

	var res Result
	temperature := hardware.ReadOrNil(ctx, n.sensor)
	if n.ledger != nil {
		entry, err := n.ledger.Append(ev, temperature)
		if err != nil {
			log.Warn("ledger append failed", logger.Error(err))
		} else {
			res.Entry = &entry
		}
	}

	n.publish(ctx, ev, res.Entry, temperature, log)

	fo := n.resolver.Begin(ev)
	res.FanOutID = fo.ID
	req := messaging.NewConfirmationRequest(ev, n.loc)
	for _, to := range recipients {
		h, err := n.messenger.SendRequest(ctx, to, req)
		n.metrics.RecordDelivery(metrics.OpSendRequest, err)
		if err != nil {
			res.Failed++
			log.Warn("confirmation request not delivered",
				logger.Int64("recipient", int64(to)),
				logger.Error(err))
			continue
		}
		fo.Add(h)
		res.Delivered++
	}
	fo.Arm()

	n.metrics.ObserveFanOut(res.Delivered)
	log.Info("fan-out sent",
		logger.String("fanout_id", fo.ID.String()),
		logger.Int("delivered", res.Delivered),
		logger.Int("failed", res.Failed))
	return res, nil
}

func (n *Notifier) publish(ctx context.Context, ev detection.Event, entry *backup.Entry, temperature *float64, log logger.Logger) {
	if n.mqtt == nil || n.topic == "" {
		return
	}
	dto := mqtt.NewDetectionDTO(ev, n.loc)
	if entry != nil {
		dto.WithLedger(entry.Sequence, temperature)
	} else if temperature != nil {
		dto.WithLedger(0, temperature)
	}
	if err := mqtt.PublishJSON(ctx, n.mqtt, n.topic, dto); err != nil {
		log.Warn("mqtt publish failed", logger.Error(err))
	}
}

// GetLogger returns the fanout module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("fanout")
}
