package audit

import (
	"context"

	"github.com/turtacn/devportal/internal/domain/models"
	"github.com/turtacn/devportal/internal/domain/service"
)

// noopSink discards audit events. Used when Kafka is disabled.
type noopSink struct{}

// NewNoopSink returns an audit sink that drops every event.
func NewNoopSink() service.AuditService { return noopSink{} }

func (noopSink) LogEvent(_ context.Context, _ models.AuditEvent) error { return nil }

func (noopSink) Close() error { return nil }
