// Package telegram implements messaging.Messenger on the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/tphakala/cropguard/internal/errors"
	"github.com/tphakala/cropguard/internal/httpclient"
	"github.com/tphakala/cropguard/internal/logger"
	"github.com/tphakala/cropguard/internal/messaging"
)

const (
	defaultRateLimit   = 25
	defaultBurst       = 5
	defaultPollTimeout = 60
	// pollSlack keeps the HTTP deadline above the long-poll timeout.
	pollSlack = 15 * time.Second
)

// Config configures the Telegram transport.
type Config struct {
	Token string
	// APIEndpoint is a format string taking the token and the method,
	// e.g. "https://api.telegram.org/bot%s/%s". Empty uses the public API.
	APIEndpoint string
	// RateLimit is the outbound request rate per second.
	RateLimit float64
	Burst     int
	// PollTimeout is the getUpdates long-poll timeout in seconds.
	PollTimeout int
	// HTTPClient overrides the client built from the fields above.
	HTTPClient *httpclient.Client
	// Observe is called after every API round trip.
	Observe func(req *http.Request, resp *http.Response, err error, elapsed time.Duration)
	Logger  logger.Logger
}

// Bot is a messaging.Messenger backed by the Telegram Bot API.
type Bot struct {
	api         *tgbotapi.BotAPI
	limiter     *rate.Limiter
	pollTimeout int
	log         logger.Logger
}

var _ messaging.Messenger = (*Bot)(nil)

// New validates the token with getMe and returns a ready Bot.
func New(cfg Config) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.Newf("telegram token is empty").
			Component("telegram").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = tgbotapi.APIEndpoint
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaultPollTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = GetLogger()
	}
	client := cfg.HTTPClient
	if client == nil {
		client = httpclient.New(&httpclient.Config{
			DefaultTimeout: time.Duration(cfg.PollTimeout)*time.Second + pollSlack,
		})
	}
	if cfg.Observe != nil {
		client.SetAfterResponseHook(cfg.Observe)
	}

	_ = tgbotapi.SetLogger(botLogger{log: cfg.Logger})

	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.APIEndpoint, client)
	if err != nil {
		return nil, errors.New(err).
			Component("telegram").
			Category(errors.CategoryConfiguration).
			Context("operation", "get_me").
			Build()
	}

	cfg.Logger.Info("telegram bot authorized", logger.String("username", api.Self.UserName))

	return &Bot{
		api:         api,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		pollTimeout: cfg.PollTimeout,
		log:         cfg.Logger,
	}, nil
}

// UserName returns the bot account name.
func (b *Bot) UserName() string {
	return b.api.Self.UserName
}

func (b *Bot) SendRequest(ctx context.Context, to messaging.RecipientID, req messaging.Request) (messaging.Handle, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return messaging.Handle{}, messaging.DeliveryError(err, to, "send_request")
	}

	photo := tgbotapi.NewPhoto(int64(to), tgbotapi.FilePath(req.ImagePath))
	photo.Caption = req.Caption
	if len(req.Actions) > 0 {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(req.Actions))
		for _, a := range req.Actions {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(a.Label, a.Data))
		}
		photo.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(row)
	}

	msg, err := b.api.Send(photo)
	if err != nil {
		return messaging.Handle{}, messaging.DeliveryError(err, to, "send_request")
	}
	return messaging.Handle{Recipient: to, MessageID: msg.MessageID}, nil
}

func (b *Bot) ClearRequest(ctx context.Context, h messaging.Handle) error {
	return b.request(ctx, h.Recipient, "clear_request",
		tgbotapi.NewDeleteMessage(int64(h.Recipient), h.MessageID))
}

func (b *Bot) Notify(ctx context.Context, to messaging.RecipientID, text string) error {
	return b.send(ctx, to, "notify", tgbotapi.NewMessage(int64(to), text))
}

func (b *Bot) SendDocument(ctx context.Context, to messaging.RecipientID, path, caption string) error {
	doc := tgbotapi.NewDocument(int64(to), tgbotapi.FilePath(path))
	doc.Caption = caption
	return b.send(ctx, to, "send_document", doc)
}

func (b *Bot) Acknowledge(ctx context.Context, r messaging.Reply, text string, alert bool) error {
	cb := tgbotapi.NewCallback(r.CallbackID, text)
	if alert {
		cb = tgbotapi.NewCallbackWithAlert(r.CallbackID, text)
	}
	return b.request(ctx, r.Handle.Recipient, "acknowledge", cb)
}

func (b *Bot) send(ctx context.Context, to messaging.RecipientID, op string, c tgbotapi.Chattable) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return messaging.DeliveryError(err, to, op)
	}
	if _, err := b.api.Send(c); err != nil {
		return messaging.DeliveryError(err, to, op)
	}
	return nil
}

// request is used for methods whose result is not a Message.
func (b *Bot) request(ctx context.Context, to messaging.RecipientID, op string, c tgbotapi.Chattable) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return messaging.DeliveryError(err, to, op)
	}
	resp, err := b.api.Request(c)
	if err != nil {
		return messaging.DeliveryError(err, to, op)
	}
	if !resp.Ok {
		return messaging.DeliveryError(fmt.Errorf("telegram: %s", resp.Description), to, op)
	}
	return nil
}
