package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Sender delivers a formatted MarkdownV2 message.
type Sender interface {
	SendMessageWithLevel(msg string, level slog.Level)
}

// TelegramHandler is a slog.Handler that forwards records at or above
// minLevel to Telegram after passing them to the wrapped handler.
type TelegramHandler struct {
	handler  slog.Handler
	sender   Sender
	escape   func(string) string
	minLevel slog.Level
	mu       *sync.Mutex
	attrs    []slog.Attr
	group    string
}

func NewTelegramHandler(handler slog.Handler, sender Sender, escape func(string) string, minLevel slog.Level) *TelegramHandler {
	return &TelegramHandler{
		handler:  handler,
		sender:   sender,
		escape:   escape,
		minLevel: minLevel,
		mu:       &sync.Mutex{},
	}
}

// Enabled reports whether the wrapped handler accepts the level;
// forwarding is decided per record in Handle.
func (h *TelegramHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *TelegramHandler) Handle(ctx context.Context, record slog.Record) error {
	err := h.handler.Handle(ctx, record)
	if err != nil {
		return err
	}
	if record.Level < h.minLevel || h.sender == nil {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var msg strings.Builder
	name := record.Message
	if h.group != "" {
		name = h.group + "." + record.Message
	}
	msg.WriteString(fmt.Sprintf("*%s* `%s`", h.escape(record.Level.String()), strings.ReplaceAll(name, "`", "'")))

	write := func(attr slog.Attr) {
		msg.WriteString(h.escape(fmt.Sprintf("\n%s: %v", attr.Key, attr.Value)))
	}
	for _, attr := range h.attrs {
		write(attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		write(attr)
		return true
	})

	h.sender.SendMessageWithLevel(msg.String(), record.Level)
	return nil
}

func (h *TelegramHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	copy(newAttrs[len(h.attrs):], attrs)

	return &TelegramHandler{
		handler:  h.handler.WithAttrs(attrs),
		sender:   h.sender,
		escape:   h.escape,
		minLevel: h.minLevel,
		mu:       h.mu,
		attrs:    newAttrs,
		group:    h.group,
	}
}

func (h *TelegramHandler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}

	return &TelegramHandler{
		handler:  h.handler.WithGroup(name),
		sender:   h.sender,
		escape:   h.escape,
		minLevel: h.minLevel,
		mu:       h.mu,
		attrs:    h.attrs,
		group:    group,
	}
}
