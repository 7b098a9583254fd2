package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/helpdesk-workflow/internal/events"
)

type fakeBroadcaster struct {
	channels []string
	events   []events.Event
	err      error
}

func (f *fakeBroadcaster) PublishJSON(_ context.Context, channel string, v any) error {
	f.channels = append(f.channels, channel)
	if e, ok := v.(events.Event); ok {
		f.events = append(f.events, e)
	}
	return f.err
}

func TestStartEventRelay_ForwardsEveryType(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	broadcaster := &fakeBroadcaster{}
	StartEventRelay(dispatcher, broadcaster, "ticket-events", zap.NewNop())

	ctx := context.Background()
	for _, eventType := range events.AllEventTypes {
		require.NoError(t, dispatcher.Publish(ctx, events.Event{ID: string(eventType), Type: eventType, TicketID: "t-1"}))
	}

	require.Len(t, broadcaster.events, len(events.AllEventTypes))
	assert.Equal(t, events.EventApprovalDecided, broadcaster.events[3].Type)
	for _, channel := range broadcaster.channels {
		assert.Equal(t, "ticket-events", channel)
	}
}

func TestStartEventRelay_FailureDoesNotPropagate(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	dispatcher := events.NewInMemoryDispatcher()
	StartEventRelay(dispatcher, &fakeBroadcaster{err: errors.New("redis down")}, "ticket-events", zap.New(core))

	err := dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketCreated})
	assert.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("event relay failed").Len())
}
