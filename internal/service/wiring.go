package service

import (
	"context"
	"time"

	"github.com/tphakala/cropguard/internal/backup"
	"github.com/tphakala/cropguard/internal/bot"
	"github.com/tphakala/cropguard/internal/buildinfo"
	"github.com/tphakala/cropguard/internal/conf"
	"github.com/tphakala/cropguard/internal/datastore"
	"github.com/tphakala/cropguard/internal/detection"
	"github.com/tphakala/cropguard/internal/hardware"
	"github.com/tphakala/cropguard/internal/logger"
	"github.com/tphakala/cropguard/internal/messaging/telegram"
	"github.com/tphakala/cropguard/internal/mqtt"
	"github.com/tphakala/cropguard/internal/notification"
	"github.com/tphakala/cropguard/internal/observability"
)

// New opens every production dependency described by settings and returns
// an assembled Service. Resources opened here are released when Run returns,
// or immediately when New fails.
func New(ctx context.Context, settings *conf.Settings, info *buildinfo.Context) (svc *Service, err error) {
	log := GetLogger()
	var closers []func()
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}
	}()

	m, err := observability.NewMetrics()
	if err != nil {
		return nil, err
	}

	db, err := OpenDatabase(settings)
	if err != nil {
		return nil, err
	}
	closers = append(closers, func() {
		if err := db.Close(); err != nil {
			log.Warn("database close failed", logger.Error(err))
		}
	})

	counters := datastore.NewCounterStore(db.DB(), func(o detection.Outcome, c detection.Category) {
		m.Detection.ObserveOutcome(string(o), string(c))
	}).WithRecorder(m.Datastore)
	recipients := datastore.NewRecipientRepository(db.DB()).WithRecorder(m.Datastore)
	if err := bot.PromoteAdmins(ctx, recipients, settings.Telegram.AdminIDs); err != nil {
		return nil, err
	}

	messenger, err := telegram.New(telegram.Config{
		Token:       settings.Telegram.Token,
		APIEndpoint: settings.Telegram.APIEndpoint,
		RateLimit:   settings.Telegram.RateLimit,
		Burst:       settings.Telegram.Burst,
		PollTimeout: settings.Telegram.PollTimeout,
		Observe:     m.HTTP.ObserveResponse,
	})
	if err != nil {
		return nil, err
	}

	comps := Components{
		Settings:   settings,
		Counters:   counters,
		Recipients: recipients,
		Messenger:  messenger,
		Metrics:    m,
		Ledger:     backup.NewLedger(settings.Archive.Dir, settings.Archive.CopyImages, settings.Location()),
		Health: map[string]observability.HealthCheck{
			"database": func(ctx context.Context) error {
				sqlDB, err := db.DB().DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
		},
	}
	if sq, ok := db.(*datastore.SQLiteManager); ok {
		comps.DatabasePath = sq.Path()
		comps.Checkpoint = sq.Checkpoint
	}

	var client mqtt.Client
	if settings.MQTT.Enabled {
		client, err = connectMQTT(ctx, settings, m)
		if err != nil {
			return nil, err
		}
		closers = append(closers, client.Disconnect)
		comps.MQTT = client
		comps.Health["mqtt"] = func(context.Context) error {
			if !client.IsConnected() {
				return errNotConnected
			}
			return nil
		}
	}

	bank, err := hardware.NewBank(&settings.Hardware, client)
	if err != nil {
		return nil, err
	}
	comps.Bank = bank

	sensor, err := hardware.NewSensor(ctx, &settings.Hardware.Sensor, client)
	if err != nil {
		return nil, err
	}
	comps.Sensor = sensor

	alerts, err := NewAlerter(settings, m)
	if err != nil {
		return nil, err
	}
	comps.Alerter = alerts

	if client != nil && settings.MQTT.Discovery {
		publishDiscovery(ctx, client, settings, info)
	}

	svc, err = Assemble(comps)
	if err != nil {
		return nil, err
	}
	for _, c := range closers {
		svc.AddCloser(c)
	}
	return svc, nil
}

// OpenDatabase opens and initializes the configured backend.
func OpenDatabase(settings *conf.Settings) (datastore.Manager, error) {
	db, err := datastore.NewManager(settings)
	if err != nil {
		return nil, err
	}
	if err := db.Initialize(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewAlerter builds the admin notification dispatcher from the shoutrrr URLs.
// m may be nil.
func NewAlerter(settings *conf.Settings, m *observability.Metrics) (*notification.Dispatcher, error) {
	cfg := notification.DispatcherConfig{
		Prefix:  settings.Main.Name,
		Timeout: settings.Notification.Timeout,
	}
	if m != nil {
		cfg.Metrics = m.Notification
	}
	provider := notification.NewShoutrrrProvider("admin", settings.Notification.URLs, settings.Notification.Timeout)
	return notification.NewDispatcher(cfg, provider)
}

func connectMQTT(ctx context.Context, settings *conf.Settings, m *observability.Metrics) (mqtt.Client, error) {
	cfg := mqtt.DefaultConfig()
	cfg.Broker = settings.MQTT.Broker
	cfg.ClientID = settings.MQTT.ClientID
	cfg.Username = settings.MQTT.Username
	cfg.Password = settings.MQTT.Password
	cfg.Topic = settings.MQTT.Topic
	cfg.Retain = settings.MQTT.Retain

	client := mqtt.NewClient(cfg, m.MQTT)
	if err := client.Connect(ctx); err != nil {
		// The client keeps reconnecting in the background.
		GetLogger().Warn("mqtt broker unreachable at startup", logger.Error(err))
	}
	return client, nil
}

func publishDiscovery(ctx context.Context, client mqtt.Client, settings *conf.Settings, info *buildinfo.Context) {
	cfg := &mqtt.DiscoveryConfig{
		DiscoveryPrefix: settings.MQTT.DiscoveryPrefix,
		DetectionTopic:  settings.MQTT.Topic,
		DeviceName:      settings.Main.Name,
		NodeID:          settings.Main.Name,
		Version:         info.GetVersion(),
	}
	if settings.Hardware.Driver == conf.HardwareDriverMQTT {
		cfg.Actuators = map[string]string{
			hardware.Light1:  settings.Hardware.Light1.Topic,
			hardware.Light2:  settings.Hardware.Light2.Topic,
			hardware.Buzzer1: settings.Hardware.Buzzer1.Topic,
		}
		if b2 := settings.Hardware.Buzzer2; b2.Configured() {
			cfg.Actuators[hardware.Buzzer2] = b2.Topic
		}
	}
	ctx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()
	if err := mqtt.NewDiscoveryPublisher(client, cfg).PublishDiscovery(ctx); err != nil {
		GetLogger().Warn("home assistant discovery not published", logger.Error(err))
	}
}

const discoveryTimeout = 10 * time.Second
