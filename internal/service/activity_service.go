package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/inkmarket-service/internal/events"
	"github.com/spec-kit/inkmarket-service/internal/observability"
)

// ActivityService writes one audit line per account event.
type ActivityService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewActivityService creates the service.
func NewActivityService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *ActivityService {
	return &ActivityService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit"),
		metrics:    metrics,
	}
}

// RegisterHandlers subscribes to every account event.
func (a *ActivityService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		a.dispatcher.Subscribe(eventType, a.record)
	}
}

func (a *ActivityService) record(_ context.Context, event events.Event) error {
	a.metrics.RecordEvent(string(event.Type))

	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event", string(event.Type)),
		zap.Time("at", event.Timestamp),
	}
	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	for k, v := range event.Attrs {
		fields = append(fields, zap.String(k, v))
	}

	if event.Type == events.EventLoginFailed || event.Type == events.EventNotificationError {
		a.logger.Warn("account activity", fields...)
		return nil
	}
	a.logger.Info("account activity", fields...)
	return nil
}
