package probe

import (
	"context"
	"log/slog"

	"github.com/project-kessel/orgaud/internal/service"
)

// AudienceMappingEvent is the value of the "event" attribute on every record
// logged by the logging observer
const AudienceMappingEvent = "audience_mapping"

// loggingObserver creates request-scoped logging probes
type loggingObserver struct {
	logger *slog.Logger
}

// LoggingObserverConfig configures the logging observer
type LoggingObserverConfig struct {
	// Logger is the base logger to use. If nil, uses slog.Default()
	Logger *slog.Logger
}

// NewLoggingObserver creates a mapper observer that logs all observability events
// using structured logging with slog.
func NewLoggingObserver(logger *slog.Logger) service.MapperObserver {
	return NewLoggingObserverWithConfig(LoggingObserverConfig{
		Logger: logger,
	})
}

// NewLoggingObserverWithConfig creates a logging observer with custom configuration
func NewLoggingObserverWithConfig(cfg LoggingObserverConfig) service.MapperObserver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &loggingObserver{
		logger: logger,
	}
}

func (o *loggingObserver) AudienceMappingStarted(
	ctx context.Context,
	mapperID string,
	event service.TokenEvent,
	session *service.Session,
) (context.Context, service.AudienceMappingProbe) {
	probeLogger := o.logger.With(
		slog.String("event", AudienceMappingEvent),
		slog.String("mapper", mapperID),
		slog.String("token_event", string(event)),
	)

	attrs := []slog.Attr{}
	if session != nil {
		attrs = append(attrs,
			slog.String("subject_id", session.Subject.ID),
			slog.String("client_id", session.ClientID),
			slog.Bool("lightweight", session.LightweightAccessTokens),
		)
	}

	probeLogger.LogAttrs(ctx, slog.LevelDebug, "Starting audience mapping", attrs...)

	return ctx, &loggingAudienceMappingProbe{
		ctx:    ctx,
		logger: probeLogger,
	}
}

// loggingAudienceMappingProbe logs the events of a single transform
type loggingAudienceMappingProbe struct {
	ctx    context.Context
	logger *slog.Logger
	merged int
}

func (p *loggingAudienceMappingProbe) GateEvaluated(gate string, included bool) {
	p.logger.LogAttrs(p.ctx, slog.LevelDebug,
		"Inclusion gate evaluated",
		slog.String("gate", gate),
		slog.Bool("included", included),
	)
}

func (p *loggingAudienceMappingProbe) DirectoryUnavailable() {
	p.logger.LogAttrs(p.ctx, slog.LevelWarn, "No organization directory bound, token left unchanged")
}

func (p *loggingAudienceMappingProbe) DirectoryFailed(err error) {
	p.logger.LogAttrs(p.ctx, slog.LevelError,
		"Organization directory failed",
		slog.String("error", err.Error()),
	)
}

func (p *loggingAudienceMappingProbe) OrganizationSkipped(org *service.Organization, reason string) {
	attrs := []slog.Attr{slog.String("reason", reason)}
	if org != nil {
		attrs = append(attrs, slog.String("organization_id", org.ID))
	}
	p.logger.LogAttrs(p.ctx, slog.LevelDebug, "Organization contributes no audience", attrs...)
}

func (p *loggingAudienceMappingProbe) ExpressionFailed(err error) {
	p.logger.LogAttrs(p.ctx, slog.LevelError,
		"Audience expression failed",
		slog.String("error", err.Error()),
	)
}

func (p *loggingAudienceMappingProbe) AudienceMerged(audience string) {
	p.merged++
	p.logger.LogAttrs(p.ctx, slog.LevelDebug,
		"Audience merged",
		slog.String("audience", audience),
	)
}

func (p *loggingAudienceMappingProbe) End() {
	p.logger.LogAttrs(p.ctx, slog.LevelDebug,
		"Audience mapping completed",
		slog.Int("audiences_merged", p.merged),
	)
}
