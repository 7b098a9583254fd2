package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/repository/memstore"
	apperrors "github.com/spec-kit/helpdesk-workflow/pkg/util"
)

type recordingBroadcaster struct {
	channel  string
	messages []any
	err      error
}

func (b *recordingBroadcaster) PublishJSON(_ context.Context, channel string, v any) error {
	b.channel = channel
	b.messages = append(b.messages, v)
	return b.err
}

func TestNotify_StoresAndBroadcasts(t *testing.T) {
	store := memstore.New()
	broadcaster := &recordingBroadcaster{}
	svc := NewNotificationService(store.Notifications(), broadcaster, "notifications", zap.NewNop())
	ctx := context.Background()

	svc.Notify(ctx, domain.Notification{
		UserID:   "alice",
		Type:     domain.NotificationApprovalRequested,
		Title:    "Approval requested",
		Message:  "please look",
		TicketID: strPtr("t-1"),
	})

	items, err := svc.ListForUser(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.False(t, items[0].Read)
	assert.Equal(t, "notifications", broadcaster.channel)
	require.Len(t, broadcaster.messages, 1)
	sent, ok := broadcaster.messages[0].(domain.Notification)
	require.True(t, ok)
	assert.Equal(t, items[0].ID, sent.ID)

	require.NoError(t, svc.MarkAsRead(ctx, "alice", items[0].ID))
	items, err = svc.ListForUser(ctx, "alice", 10)
	require.NoError(t, err)
	assert.True(t, items[0].Read)

	err = svc.MarkAsRead(ctx, "bob", items[0].ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestNotify_BroadcastFailureIsLoggedNotReturned(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	store := memstore.New()
	broadcaster := &recordingBroadcaster{err: errors.New("redis down")}
	svc := NewNotificationService(store.Notifications(), broadcaster, "notifications", zap.New(core))
	ctx := context.Background()

	svc.Notify(ctx, domain.Notification{UserID: "alice", Type: domain.NotificationTicketAssigned, Title: "t"})
	svc.Notify(ctx, domain.Notification{Type: domain.NotificationTicketAssigned, Title: "no recipient"})

	items, err := svc.ListForUser(ctx, "alice", 10)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, logs.FilterMessage("notification not broadcast").Len())
	assert.Len(t, broadcaster.messages, 1)
}
