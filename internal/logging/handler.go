package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/viscend/internal/kv"
)

// EventPrefix is the key prefix for stored log events.
const EventPrefix = "event_"

// Event categories.
const (
	CategoryInquiry = "inquiry"
	CategoryNotify  = "notify"
	CategoryStorage = "storage"
	CategoryVisitor = "visitor"
	CategoryConfig  = "config"
	CategorySystem  = "system"
)

// Event levels.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Event is a log record kept in the key-value store.
type Event struct {
	ID        string            `json:"id"`
	Level     string            `json:"level"`
	Category  string            `json:"category"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"createdAt"`
}

// EventLogHandler is a slog.Handler that wraps another handler and also
// records WARN and ERROR level logs in the key-value store.
type EventLogHandler struct {
	inner slog.Handler
	store kv.Store
	level slog.Level // Minimum level to record (default: WARN)
	attrs []slog.Attr
}

// NewEventLogHandler creates a new EventLogHandler that wraps the given handler.
func NewEventLogHandler(inner slog.Handler, store kv.Store) *EventLogHandler {
	return NewEventLogHandlerWithLevel(inner, store, slog.LevelWarn)
}

// NewEventLogHandlerWithLevel creates a new EventLogHandler with a custom minimum level.
func NewEventLogHandlerWithLevel(inner slog.Handler, store kv.Store, level slog.Level) *EventLogHandler {
	return &EventLogHandler{
		inner: inner,
		store: store,
		level: level,
	}
}

// Enabled implements slog.Handler.
func (h *EventLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *EventLogHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}

	if r.Level >= h.level {
		h.record(r)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *EventLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &EventLogHandler{
		inner: h.inner.WithAttrs(attrs),
		store: h.store,
		level: h.level,
		attrs: merged,
	}
}

// WithGroup implements slog.Handler.
func (h *EventLogHandler) WithGroup(name string) slog.Handler {
	return &EventLogHandler{
		inner: h.inner.WithGroup(name),
		store: h.store,
		level: h.level,
		attrs: h.attrs,
	}
}

// record stores the event. Storage errors are dropped: logging them
// would recurse into this handler.
func (h *EventLogHandler) record(r slog.Record) {
	ev := Event{
		ID:        fmt.Sprintf("%s%d_%s", EventPrefix, r.Time.UnixMilli(), uuid.NewString()[:8]),
		Level:     eventLevel(r.Level),
		Category:  h.category(r),
		Message:   r.Message,
		Metadata:  h.metadata(r),
		CreatedAt: r.Time.UTC(),
	}

	// Background context so the event survives a cancelled request.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = h.store.Set(ctx, ev.ID, ev)
}

// eventLevel converts a slog.Level to an event level.
func eventLevel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return LevelError
	case level >= slog.LevelWarn:
		return LevelWarning
	default:
		return LevelInfo
	}
}

// category uses an explicit "category" attribute or infers one from the message.
func (h *EventLogHandler) category(r slog.Record) string {
	var category string
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "category" {
			category = a.Value.String()
			return false
		}
		return true
	})
	if category != "" {
		return category
	}

	msg := strings.ToLower(r.Message)
	switch {
	case strings.Contains(msg, "contact") || strings.Contains(msg, "newsletter") || strings.Contains(msg, "subscription"):
		return CategoryInquiry
	case strings.Contains(msg, "email") || strings.Contains(msg, "notification"):
		return CategoryNotify
	case strings.Contains(msg, "redis") || strings.Contains(msg, "kv") || strings.Contains(msg, "database"):
		return CategoryStorage
	case strings.Contains(msg, "visitor") || strings.Contains(msg, "session"):
		return CategoryVisitor
	case strings.Contains(msg, "config"):
		return CategoryConfig
	default:
		return CategorySystem
	}
}

func (h *EventLogHandler) metadata(r slog.Record) map[string]string {
	md := make(map[string]string, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		md[a.Key] = a.Value.String()
	}
	r.Attrs(func(a slog.Attr) bool {
		if a.Key != "category" {
			md[a.Key] = a.Value.String()
		}
		return true
	})
	return md
}

// ListEvents returns stored events ordered by id, oldest first.
func ListEvents(ctx context.Context, store kv.Store) ([]Event, error) {
	return kv.GetAll[Event](ctx, store, EventPrefix)
}

// PruneEvents deletes events created before cutoff and reports how many
// were removed.
func PruneEvents(ctx context.Context, store kv.Store, cutoff time.Time) (int, error) {
	events, err := ListEvents(ctx, store)
	if err != nil {
		return 0, fmt.Errorf("listing events: %w", err)
	}

	var stale []string
	for _, ev := range events {
		if ev.CreatedAt.Before(cutoff) {
			stale = append(stale, ev.ID)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	if err := store.Delete(ctx, stale...); err != nil {
		return 0, fmt.Errorf("deleting events: %w", err)
	}
	return len(stale), nil
}
