package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/inkmarket-service/internal/events"
	"github.com/spec-kit/inkmarket-service/internal/notify"
	"github.com/spec-kit/inkmarket-service/internal/observability"
)

type fullQueue struct{}

func (fullQueue) Enqueue(notify.Message) error { return errors.New("queue full") }

type captureQueue struct{ msgs []notify.Message }

func (q *captureQueue) Enqueue(msg notify.Message) error {
	q.msgs = append(q.msgs, msg)
	return nil
}

func TestNotificationSendReturnsSinkError(t *testing.T) {
	sink := &recordingSink{err: errors.New("smtp down")}
	n := NewNotificationService(sink, nil, notify.Links{}, nil, zap.NewNop())

	assert.Error(t, n.Send(context.Background(), notify.WelcomeMessage{To: "a@x.io"}))
}

func TestNotificationDispatchUsesQueue(t *testing.T) {
	sink := &recordingSink{}
	queue := &captureQueue{}
	n := NewNotificationService(sink, queue, notify.Links{}, nil, zap.NewNop())

	n.Dispatch(context.Background(), notify.WelcomeMessage{To: "a@x.io"})
	assert.Len(t, queue.msgs, 1)
	assert.Empty(t, sink.messages())
}

func TestNotificationDispatchSwallowsQueueErrors(t *testing.T) {
	recorded := &recordedEvents{}
	dispatcher := events.NewInMemoryDispatcher()
	dispatcher.Subscribe(events.EventNotificationError, recorded.handler)

	n := NewNotificationService(&recordingSink{}, fullQueue{}, notify.Links{}, dispatcher, zap.NewNop())
	n.Dispatch(context.Background(), notify.WelcomeMessage{To: "a@x.io"})
	assert.True(t, recorded.has(events.EventNotificationError))

	recorded2 := &recordedEvents{}
	dispatcher.Subscribe(events.EventNotificationError, recorded2.handler)
	n.HandleDeliveryResult(notify.WelcomeMessage{To: "a@x.io"}, errors.New("late failure"))
	assert.True(t, recorded2.has(events.EventNotificationError))
}

func TestActivityServiceAudits(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	NewActivityService(dispatcher, zap.New(core), metrics).RegisterHandlers()

	ctx := context.Background()
	require.NoError(t, dispatcher.Publish(ctx, events.New(events.EventUserSignedUp, "u-1", map[string]string{"role": "artist"}).WithIP("10.0.0.1")))
	require.NoError(t, dispatcher.Publish(ctx, events.New(events.EventLoginFailed, "", nil)))

	require.Equal(t, 2, logs.Len())
	first := logs.All()[0]
	assert.Equal(t, "account activity", first.Message)
	assert.Equal(t, "user.signed_up", first.ContextMap()["event"])
	assert.Equal(t, "u-1", first.ContextMap()["user_id"])
	assert.Equal(t, "artist", first.ContextMap()["role"])
	assert.Equal(t, zap.WarnLevel, logs.All()[1].Level)

	assert.Equal(t, int64(1), metrics.Snapshot().Events["user.signed_up"])
}
