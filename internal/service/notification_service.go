package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/inkmarket-service/internal/events"
	"github.com/spec-kit/inkmarket-service/internal/notify"
)

// MessageQueue accepts messages for background delivery.
type MessageQueue interface {
	Enqueue(msg notify.Message) error
}

// NotificationService sends transactional email. Send blocks on the sink and
// reports its error; Dispatch is fire and forget.
type NotificationService struct {
	sink       notify.Sink
	queue      MessageQueue
	links      notify.Links
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewNotificationService creates the service. A nil queue makes Dispatch
// deliver inline, still swallowing errors.
func NewNotificationService(sink notify.Sink, queue MessageQueue, links notify.Links, dispatcher events.Dispatcher, logger *zap.Logger) *NotificationService {
	if dispatcher == nil {
		dispatcher = events.Nop{}
	}
	return &NotificationService{
		sink:       sink,
		queue:      queue,
		links:      links,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Links exposes the frontend URL builder.
func (n *NotificationService) Links() notify.Links {
	return n.links
}

// Send delivers msg synchronously.
func (n *NotificationService) Send(ctx context.Context, msg notify.Message) error {
	if err := n.sink.Send(ctx, msg); err != nil {
		n.failed(ctx, msg, err)
		return err
	}
	return nil
}

// Dispatch delivers msg best-effort. Errors are logged and never returned.
func (n *NotificationService) Dispatch(ctx context.Context, msg notify.Message) {
	if n.queue == nil {
		_ = n.Send(context.WithoutCancel(ctx), msg)
		return
	}
	if err := n.queue.Enqueue(msg); err != nil {
		n.failed(ctx, msg, err)
	}
}

func (n *NotificationService) failed(ctx context.Context, msg notify.Message, err error) {
	n.logger.Warn("notification not delivered",
		zap.String("kind", string(msg.Kind())),
		zap.String("to", msg.Recipient()),
		zap.Error(err),
	)
	_ = n.dispatcher.Publish(ctx, events.New(events.EventNotificationError, "", map[string]string{
		"kind":  string(msg.Kind()),
		"error": err.Error(),
	}))
}

// HandleDeliveryResult is registered on the background worker so async
// failures reach the activity log as well.
func (n *NotificationService) HandleDeliveryResult(msg notify.Message, err error) {
	if err != nil {
		_ = n.dispatcher.Publish(context.Background(), events.New(events.EventNotificationError, "", map[string]string{
			"kind":  string(msg.Kind()),
			"error": err.Error(),
		}))
	}
}
