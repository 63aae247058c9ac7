// Package relay binds the event log, the approval inbox, the command outbox
// and agent status into one state machine. Every cross-entity invariant is
// enforced inside a store transaction; the service itself holds no state
// between calls.
package relay

import (
	"context"

	"github.com/jarvis/MissionControl/api/internal/db"
	"github.com/jarvis/MissionControl/api/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

/* Default and maximum page sizes for listings */
const (
	DefaultInboxLimit       = 100
	DefaultEventLimit       = 50
	DefaultAgentEventsLimit = 100
	MaxListLimit            = 500
)

// Service is the relay coordinator
type Service struct {
	store  db.Store
	logger *logging.Logger
	tracer trace.Tracer
}

// NewService creates a relay coordinator over store
func NewService(store db.Store, logger *logging.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
		tracer: otel.Tracer("missioncontrol/relay"),
	}
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "relay."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
