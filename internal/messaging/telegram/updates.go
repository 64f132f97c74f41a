package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tphakala/cropguard/internal/logger"
	"github.com/tphakala/cropguard/internal/messaging"
)

// Updates long-polls getUpdates and translates callback queries and commands.
// Other update kinds are ignored. The channel closes after ctx is cancelled;
// the poll in flight at that moment finishes in the background.
func (b *Bot) Updates(ctx context.Context) <-chan messaging.Update {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = b.pollTimeout
	cfg.AllowedUpdates = []string{"message", "callback_query"}

	in := b.api.GetUpdatesChan(cfg)
	out := make(chan messaging.Update)

	go func() {
		defer close(out)
		defer b.api.StopReceivingUpdates()

		for {
			select {
			case <-ctx.Done():
				return
			case upd, ok := <-in:
				if !ok {
					return
				}
				u, ok := translate(&upd)
				if !ok {
					b.log.Trace("ignoring update", logger.Int("update_id", upd.UpdateID))
					continue
				}
				select {
				case out <- u:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

func translate(upd *tgbotapi.Update) (messaging.Update, bool) {
	if cq := upd.CallbackQuery; cq != nil {
		if cq.Message == nil || cq.Message.Chat == nil {
			return messaging.Update{}, false
		}
		return messaging.Update{Reply: &messaging.Reply{
			Handle: messaging.Handle{
				Recipient: messaging.RecipientID(cq.Message.Chat.ID),
				MessageID: cq.Message.MessageID,
			},
			Data:       cq.Data,
			CallbackID: cq.ID,
		}}, true
	}

	if msg := upd.Message; msg != nil && msg.IsCommand() && msg.Chat != nil {
		cmd := &messaging.Command{
			From: messaging.RecipientID(msg.Chat.ID),
			Name: strings.ToLower(msg.Command()),
			Args: strings.Fields(msg.CommandArguments()),
		}
		if msg.From != nil {
			cmd.UserName = displayName(msg.From)
		}
		return messaging.Update{Command: cmd}, true
	}

	return messaging.Update{}, false
}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return u.UserName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
