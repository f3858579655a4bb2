// Package bot is the Telegram transport: it turns updates into kernel events and
// kernel replies into Telegram messages.
package bot

import (
	"context"
	"strings"
	"sync"

	"hostel-market/flow"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// Handler is the conversation kernel as seen by the transport.
type Handler interface {
	Handle(ctx context.Context, ev flow.Event) (flow.Result, error)
	Commands() []flow.CommandInfo
}

type Bot struct {
	api     *tgbotapi.BotAPI
	handler Handler

	userLocks sync.Map // map[userID]*sync.Mutex, one update per user at a time
	wg        sync.WaitGroup
}

func New(token string, handler Handler) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return NewWithAPI(api, handler), nil
}

func NewWithAPI(api *tgbotapi.BotAPI, handler Handler) *Bot {
	return &Bot{api: api, handler: handler}
}

// SetHandler wires the kernel after construction; the kernel needs the bot as its sender.
func (b *Bot) SetHandler(h Handler) { b.handler = h }

// lockUser serializes updates from one user so their dialog steps apply in order.
func (b *Bot) lockUser(userID int64) func() {
	v, _ := b.userLocks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (b *Bot) setBotCommands() error {
	var cmds []tgbotapi.BotCommand
	for _, c := range b.handler.Commands() {
		if c.Admin {
			continue
		}
		cmds = append(cmds, tgbotapi.BotCommand{Command: c.Name, Description: c.Description})
	}
	_, err := b.api.Request(tgbotapi.NewSetMyCommands(cmds...))
	return err
}

// Run long-polls for updates until ctx is cancelled, then waits for in-flight
// handlers to finish.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.setBotCommands(); err != nil {
		log.WithError(err).Warn("Failed to register bot commands")
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	log.WithField("username", b.api.Self.UserName).Info("Bot started")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.wg.Wait()
			log.Info("Bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return nil
			}
			ev, ok := EventFromUpdate(update)
			if !ok {
				continue
			}
			b.wg.Add(1)
			go func(update tgbotapi.Update, ev flow.Event) {
				defer b.wg.Done()
				b.handle(ctx, update, ev)
			}(update, ev)
		}
	}
}

func (b *Bot) handle(ctx context.Context, update tgbotapi.Update, ev flow.Event) {
	unlock := b.lockUser(ev.UserID)
	defer unlock()

	if cq := update.CallbackQuery; cq != nil {
		if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
			log.WithFields(log.Fields{"user_id": ev.UserID, "error": err}).Debug("answer callback")
		}
	}

	res, err := b.handler.Handle(ctx, ev)
	if err != nil {
		log.WithFields(log.Fields{"user_id": ev.UserID, "error": err}).Error("Handler failed")
	}
	for _, m := range res.Replies {
		if err := b.Send(ctx, ev.ChatID, m); err != nil {
			log.WithFields(log.Fields{"chat_id": ev.ChatID, "error": err}).Warn("Failed to send reply")
		}
	}
}

// EventFromUpdate extracts the kernel event from an update. Updates the kernel
// has no use for (edits, channel posts, stickers) report false.
func EventFromUpdate(update tgbotapi.Update) (flow.Event, bool) {
	if cq := update.CallbackQuery; cq != nil {
		if cq.From == nil {
			return flow.Event{}, false
		}
		chatID := cq.From.ID
		if cq.Message != nil && cq.Message.Chat != nil {
			chatID = cq.Message.Chat.ID
		}
		return flow.Event{
			UserID:   cq.From.ID,
			ChatID:   chatID,
			Name:     displayName(cq.From),
			Username: cq.From.UserName,
			Input:    flow.Callback(cq.Data),
		}, true
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return flow.Event{}, false
	}
	ev := flow.Event{
		UserID:   msg.From.ID,
		ChatID:   msg.Chat.ID,
		Name:     displayName(msg.From),
		Username: msg.From.UserName,
	}
	switch {
	case len(msg.Photo) > 0:
		ids := make([]string, 0, len(msg.Photo))
		for _, p := range msg.Photo {
			ids = append(ids, p.FileID)
		}
		ev.Input = flow.Image(ids...)
	case msg.IsCommand():
		ev.Input = flow.Command(msg.Command(), strings.Fields(msg.CommandArguments())...)
	case strings.TrimSpace(msg.Text) != "":
		ev.Input = flow.Text(msg.Text)
	default:
		return flow.Event{}, false
	}
	return ev, true
}

func displayName(u *tgbotapi.User) string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
