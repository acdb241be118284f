// Package bot sends operator notifications to Telegram: error-level log records
// forwarded by the slog handler and payment settlement notices.
//
// Recipients are the chat ids listed in the configuration. The /start command
// replies with the caller's chat id so it can be added there.
package bot

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"

	"entrypay/lib/sl"
)

type TgBot struct {
	log         *slog.Logger
	api         *tgbotapi.Bot
	chatIds     []int64
	minLogLevel slog.Level
	updater     *ext.Updater
}

func NewTgBot(apiKey string, chatIds []int64, log *slog.Logger) (*TgBot, error) {
	tgBot := &TgBot{
		log:         log.With(sl.Module("tgbot")),
		chatIds:     chatIds,
		minLogLevel: slog.LevelDebug,
	}

	api, err := tgbotapi.NewBot(apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %v", err)
	}
	tgBot.api = api

	return tgBot, nil
}

func (t *TgBot) Start() error {
	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		Error: func(b *tgbotapi.Bot, ctx *ext.Context, err error) ext.DispatcherAction {
			t.log.Error("handling update:", sl.Err(err))
			return ext.DispatcherActionNoop
		},
		MaxRoutines: ext.DefaultMaxRoutines,
	})
	t.updater = ext.NewUpdater(dispatcher, nil)

	dispatcher.AddHandler(handlers.NewCommand("start", t.start))
	dispatcher.AddHandler(handlers.NewCommand("status", t.status))

	err := t.updater.StartPolling(t.api, &ext.PollingOpts{
		DropPendingUpdates: true,
		GetUpdatesOpts: &tgbotapi.GetUpdatesOpts{
			Timeout: 9,
			RequestOpts: &tgbotapi.RequestOpts{
				Timeout: time.Second * 10,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start polling: %w", err)
	}

	t.updater.Idle()
	return nil
}

func (t *TgBot) Stop() {
	if t.updater != nil {
		t.log.Info("stopping telegram bot")
		t.updater.Stop()
	}
}

func (t *TgBot) start(b *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveChat.Id
	t.log.With(slog.Int64("id", chatId)).Info("start command")
	t.plainResponse(chatId, Sanitize(fmt.Sprintf("Your chat id: %d", chatId)))
	return nil
}

func (t *TgBot) status(b *tgbotapi.Bot, ctx *ext.Context) error {
	chatId := ctx.EffectiveChat.Id
	msg := "Not subscribed to notifications"
	if t.isRecipient(chatId) {
		msg = "Subscribed to payment and error notifications"
	}
	t.plainResponse(chatId, Sanitize(msg))
	return nil
}

func (t *TgBot) isRecipient(chatId int64) bool {
	return slices.Contains(t.chatIds, chatId)
}
