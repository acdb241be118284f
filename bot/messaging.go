package bot

import (
	"log/slog"
)

// SendMessage delivers a plain-text notice to every configured chat.
func (t *TgBot) SendMessage(msg string) {
	t.SendMessageWithLevel(Sanitize(msg), slog.LevelInfo)
}

// SendMessageWithLevel delivers an already formatted MarkdownV2 message.
func (t *TgBot) SendMessageWithLevel(msg string, level slog.Level) {
	if level < t.minLogLevel {
		return
	}
	for _, chatId := range t.chatIds {
		t.plainResponse(chatId, msg)
	}
}
