package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/project-kessel/orgaud/internal/probe"
	"github.com/project-kessel/orgaud/internal/service"
)

// disabledLevel is above every level a record can carry
const disabledLevel = slog.Level(1000)

// NewObserver creates a mapper observer from configuration.
// This is a convenience wrapper that creates its own logger from cfg.
func NewObserver(cfg *ObservabilityConfig) (service.MapperObserver, error) {
	return NewObserverWithLogger(cfg, NewLogger(cfg))
}

// NewObserverWithLogger creates a mapper observer using the provided logger.
// Use this when you want the observer to share a logger with other components.
func NewObserverWithLogger(cfg *ObservabilityConfig, logger *slog.Logger) (service.MapperObserver, error) {
	if cfg == nil {
		return service.NoOpObserver(), nil
	}

	switch cfg.Type {
	case "logging":
		return probe.NewLoggingObserverWithConfig(probe.LoggingObserverConfig{
			Logger: logger,
		}), nil
	case "noop", "":
		return service.NoOpObserver(), nil
	case "composite":
		return newCompositeObserver(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown observability type: %s (supported: logging, noop, composite)", cfg.Type)
	}
}

// NewLogger creates a structured logger writing to stderr from the observability configuration.
// Returns slog.Default() if cfg is nil.
func NewLogger(cfg *ObservabilityConfig) *slog.Logger {
	return NewLoggerTo(os.Stderr, cfg)
}

// NewLoggerTo creates a structured logger writing to w
func NewLoggerTo(w io.Writer, cfg *ObservabilityConfig) *slog.Logger {
	if cfg == nil {
		return slog.Default()
	}
	return slog.New(createEventFilteringHandler(w, cfg))
}

// newCompositeObserver creates a composite observer that delegates to multiple observers
func newCompositeObserver(cfg *ObservabilityConfig, logger *slog.Logger) (service.MapperObserver, error) {
	if len(cfg.Observers) == 0 {
		return nil, fmt.Errorf("composite observer requires at least one sub-observer")
	}

	var observers []service.MapperObserver
	for i, subCfg := range cfg.Observers {
		observer, err := NewObserverWithLogger(&subCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create observer %d: %w", i, err)
		}
		observers = append(observers, observer)
	}

	return service.NewCompositeObserver(observers...), nil
}

// createEventFilteringHandler creates a handler that filters log events based on the event attribute
func createEventFilteringHandler(w io.Writer, cfg *ObservabilityConfig) slog.Handler {
	defaultLevel := parseLogLevel(cfg.LogLevel)

	eventLevels := make(map[string]slog.Level)
	if cfg.AudienceMapping != nil {
		if cfg.AudienceMapping.Enabled != nil && !*cfg.AudienceMapping.Enabled {
			eventLevels[probe.AudienceMappingEvent] = disabledLevel
		} else if cfg.AudienceMapping.LogLevel != "" {
			eventLevels[probe.AudienceMappingEvent] = parseLogLevel(cfg.AudienceMapping.LogLevel)
		}
	}

	// The base handler must let through the most verbose configured level
	minLevel := defaultLevel
	for _, level := range eventLevels {
		minLevel = min(minLevel, level)
	}

	return &eventFilteringHandler{
		next:         createHandler(w, cfg.LogFormat, minLevel),
		eventLevels:  eventLevels,
		defaultLevel: defaultLevel,
		minLevel:     minLevel,
	}
}

// eventFilteringHandler wraps a handler and filters based on the event attribute.
// The event may arrive on the record or through WithAttrs.
type eventFilteringHandler struct {
	next         slog.Handler
	eventLevels  map[string]slog.Level
	defaultLevel slog.Level
	minLevel     slog.Level
	event        string
}

func (h *eventFilteringHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.minLevel
}

func (h *eventFilteringHandler) Handle(ctx context.Context, record slog.Record) error {
	eventName := h.event
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == "event" {
			eventName = attr.Value.String()
			return false
		}
		return true
	})

	threshold := h.defaultLevel
	if eventLevel, ok := h.eventLevels[eventName]; ok {
		threshold = eventLevel
	}
	if record.Level < threshold {
		return nil
	}

	return h.next.Handle(ctx, record)
}

func (h *eventFilteringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.next = h.next.WithAttrs(attrs)
	for _, attr := range attrs {
		if attr.Key == "event" {
			clone.event = attr.Value.String()
		}
	}
	return &clone
}

func (h *eventFilteringHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.next = h.next.WithGroup(name)
	return &clone
}

// createHandler creates a slog handler based on format and level
func createHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	switch strings.ToLower(format) {
	case "text":
		return slog.NewTextHandler(w, opts)
	default:
		return slog.NewJSONHandler(w, opts)
	}
}

// parseLogLevel parses a log level string
func parseLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
