package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fustanlabs/fustan-sync/internal/bus"
	"github.com/fustanlabs/fustan-sync/internal/cache"
	"github.com/fustanlabs/fustan-sync/internal/client"
	"github.com/fustanlabs/fustan-sync/internal/common/cnst"
	"github.com/fustanlabs/fustan-sync/internal/i18n"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAPI struct {
	mu            sync.Mutex
	notifications []client.Notification
	unread        int
	chatUnread    int
	markReadErr   error
	calls         map[string]int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{calls: map[string]int{}}
}

func (f *fakeAPI) bump(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeAPI) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) Notifications(context.Context) ([]client.Notification, error) {
	f.bump("notifications")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.notifications, nil
}

func (f *fakeAPI) UnreadCount(context.Context) (int, error) {
	f.bump("unread")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unread, nil
}

func (f *fakeAPI) ChatUnreadCount(context.Context) (int, error) {
	f.bump("chatUnread")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chatUnread, nil
}

func (f *fakeAPI) MarkRead(context.Context, int64) error {
	f.bump("markRead")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.markReadErr
}

func (f *fakeAPI) MarkAllRead(context.Context) error {
	f.bump("markAllRead")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.markReadErr
}

type captureToaster struct {
	mu     sync.Mutex
	toasts []Toast
}

func (c *captureToaster) Show(toast Toast) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toasts = append(c.toasts, toast)
}

func (c *captureToaster) all() []Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Toast(nil), c.toasts...)
}

func newTestAggregator(t *testing.T) (*Aggregator, *fakeAPI, *cache.Store, *bus.Bus, *captureToaster) {
	logger := zap.NewNop()
	api := newFakeAPI()
	c := cache.NewStore(logger)
	b := bus.New(logger)
	toaster := &captureToaster{}
	tr, err := i18n.New("en")
	require.NoError(t, err)

	a := NewAggregator(logger, api, c, b, toaster, tr, nil, nil, time.Hour)
	return a, api, c, b, toaster
}

func payload(t *testing.T, v any) []byte {
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestNotification_InvalidatesListAndCountTogether(t *testing.T) {
	a, _, c, _, toaster := newTestAggregator(t)
	c.SetValue(cnst.KeyAuthMe, &client.User{ID: 7})
	c.SetValue(cnst.KeyNotifications, []client.Notification{})
	c.SetValue(cnst.KeyNotificationsUnread, 0)

	a.handle(context.Background(), &bus.Event{Name: cnst.EventNotification, Data: payload(t, map[string]any{
		"id": 5, "type": "system", "title": "Maintenance", "message": "Tonight",
	})})

	_, listOK := c.Get(cnst.KeyNotifications)
	_, countOK := c.Get(cnst.KeyNotificationsUnread)
	assert.False(t, listOK)
	assert.False(t, countOK)

	toasts := toaster.all()
	require.Len(t, toasts, 1)
	assert.Equal(t, "Maintenance", toasts[0].Title)
	assert.Equal(t, "Tonight", toasts[0].Message)
}

func TestNotification_UntitledFallsBackToGenericTitle(t *testing.T) {
	a, _, _, _, toaster := newTestAggregator(t)

	a.handle(context.Background(), &bus.Event{Name: cnst.EventNotification, Data: payload(t, map[string]any{
		"id": 5, "type": "system",
	})})

	toasts := toaster.all()
	require.Len(t, toasts, 1)
	assert.Equal(t, "Notification", toasts[0].Title)
}

func TestNotification_ActionGetsLocalizedLabel(t *testing.T) {
	a, _, _, _, toaster := newTestAggregator(t)

	a.handle(context.Background(), &bus.Event{Name: cnst.EventNotification, Data: payload(t, map[string]any{
		"id": 5, "type": "system", "title": "Sale", "actionUrl": "/offers/1",
	})})

	toasts := toaster.all()
	require.Len(t, toasts, 1)
	assert.Equal(t, "View", toasts[0].ActionLabel)
	assert.Equal(t, "/offers/1", toasts[0].ActionURL)
}

func TestNotification_OrderTypeFansOutToOrderKeys(t *testing.T) {
	a, _, c, _, _ := newTestAggregator(t)
	for _, key := range []string{cnst.KeyOrders, cnst.KeyVendorOrders, cnst.KeyVendorDashboard} {
		c.SetValue(key, "fresh")
	}

	a.handle(context.Background(), &bus.Event{Name: cnst.EventNotification, Data: payload(t, map[string]any{
		"id": 5, "type": cnst.NotifyTypeNewOrder, "title": "New order",
	})})

	for _, key := range []string{cnst.KeyOrders, cnst.KeyVendorOrders, cnst.KeyVendorDashboard} {
		_, ok := c.Get(key)
		assert.False(t, ok, key)
	}
}

func TestNotification_NonOrderTypeLeavesOrderKeysAlone(t *testing.T) {
	a, _, c, _, _ := newTestAggregator(t)
	c.SetValue(cnst.KeyOrders, "fresh")

	a.handle(context.Background(), &bus.Event{Name: cnst.EventNotification, Data: payload(t, map[string]any{
		"id": 5, "type": "system", "title": "Maintenance",
	})})

	_, ok := c.Get(cnst.KeyOrders)
	assert.True(t, ok)
}

func TestMessage_FromSelfIsIgnored(t *testing.T) {
	a, _, c, _, toaster := newTestAggregator(t)
	c.SetValue(cnst.KeyAuthMe, &client.User{ID: 7})
	c.SetValue(cnst.KeyChatUnread, 3)

	a.handle(context.Background(), &bus.Event{Name: cnst.EventReceiveMsg, Data: payload(t, map[string]any{
		"senderId": 7, "senderName": "Me", "content": "hi from my phone",
	})})

	assert.Empty(t, toaster.all())
	_, ok := c.Get(cnst.KeyChatUnread)
	assert.True(t, ok)
}

func TestMessage_FromOtherToastsAndInvalidatesChatKeys(t *testing.T) {
	a, _, c, _, toaster := newTestAggregator(t)
	c.SetValue(cnst.KeyAuthMe, &client.User{ID: 7})
	c.SetValue(cnst.KeyChatUnread, 3)
	c.SetValue(cnst.KeyChatConversations, "fresh")

	a.handle(context.Background(), &bus.Event{Name: cnst.EventReceiveMsg, Data: payload(t, map[string]any{
		"senderId": 9, "senderName": "Sara", "content": "hello",
	})})

	toasts := toaster.all()
	require.Len(t, toasts, 1)
	assert.Equal(t, "New message from Sara", toasts[0].Title)
	assert.Equal(t, "hello", toasts[0].Message)

	_, unreadOK := c.Get(cnst.KeyChatUnread)
	_, convOK := c.Get(cnst.KeyChatConversations)
	assert.False(t, unreadOK)
	assert.False(t, convOK)
}

func TestMessagesRead_InvalidatesChatUnread(t *testing.T) {
	a, _, c, _, _ := newTestAggregator(t)
	c.SetValue(cnst.KeyChatUnread, 3)

	a.handle(context.Background(), &bus.Event{Name: cnst.EventMessagesRead, Data: []byte(`{}`)})

	_, ok := c.Get(cnst.KeyChatUnread)
	assert.False(t, ok)
}

func TestMarkRead_RefreshesInsteadOfDecrementing(t *testing.T) {
	a, api, c, _, _ := newTestAggregator(t)
	c.SetValue(cnst.KeyAuthMe, &client.User{ID: 7})
	c.SetValue(cnst.KeyNotificationsUnread, 5)

	require.NoError(t, a.MarkRead(context.Background(), 42))
	assert.Equal(t, 1, api.count("markRead"))

	// the cached count is stale, not locally adjusted
	v, ok := c.Get(cnst.KeyNotificationsUnread)
	assert.False(t, ok)
	assert.Equal(t, 5, v)
}

func TestMarkRead_ServerFailureKeepsCacheAndToastsError(t *testing.T) {
	a, api, c, _, toaster := newTestAggregator(t)
	api.markReadErr = errors.New("boom")
	c.SetValue(cnst.KeyNotificationsUnread, 5)

	assert.Error(t, a.MarkRead(context.Background(), 42))

	_, ok := c.Get(cnst.KeyNotificationsUnread)
	assert.True(t, ok, "a failed mutation must not invalidate")

	toasts := toaster.all()
	require.Len(t, toasts, 1)
	assert.Equal(t, "Could not mark notification as read", toasts[0].Title)
}

func TestMarkAllRead_ToastsAndInvalidates(t *testing.T) {
	a, api, c, _, toaster := newTestAggregator(t)
	c.SetValue(cnst.KeyNotifications, "fresh")
	c.SetValue(cnst.KeyNotificationsUnread, 5)

	require.NoError(t, a.MarkAllRead(context.Background()))
	assert.Equal(t, 1, api.count("markAllRead"))

	_, listOK := c.Get(cnst.KeyNotifications)
	_, countOK := c.Get(cnst.KeyNotificationsUnread)
	assert.False(t, listOK)
	assert.False(t, countOK)

	toasts := toaster.all()
	require.Len(t, toasts, 1)
	assert.Equal(t, "All marked as read", toasts[0].Title)
}

func TestPoll_GuestFetchesNothing(t *testing.T) {
	a, api, _, _, _ := newTestAggregator(t)

	a.poll(context.Background())

	assert.Zero(t, api.count("notifications"))
	assert.Zero(t, api.count("unread"))
	assert.Zero(t, api.count("chatUnread"))
}

func TestPoll_RefetchesEverythingForUser(t *testing.T) {
	a, api, c, _, _ := newTestAggregator(t)
	api.notifications = []client.Notification{{ID: 1, Title: "hi"}}
	api.unread = 2
	api.chatUnread = 1
	c.SetValue(cnst.KeyAuthMe, &client.User{ID: 7})

	a.poll(context.Background())

	list, ok := c.Get(cnst.KeyNotifications)
	require.True(t, ok)
	assert.Len(t, list.([]client.Notification), 1)

	count, ok := c.Get(cnst.KeyNotificationsUnread)
	require.True(t, ok)
	assert.Equal(t, 2, count)

	chat, ok := c.Get(cnst.KeyChatUnread)
	require.True(t, ok)
	assert.Equal(t, 1, chat)
}

func TestRefetchIfStale_SkipsSettledKeys(t *testing.T) {
	a, api, c, _, _ := newTestAggregator(t)
	c.SetValue(cnst.KeyAuthMe, &client.User{ID: 7})
	c.SetValue(cnst.KeyNotificationsUnread, 5)

	a.refetchIfStale(context.Background(), cnst.KeyNotificationsUnread)
	assert.Zero(t, api.count("unread"))

	c.Invalidate(cnst.KeyNotificationsUnread)
	a.refetchIfStale(context.Background(), cnst.KeyNotificationsUnread)
	assert.Equal(t, 1, api.count("unread"))
}

func TestRun_NotificationEventEndsInSettledCache(t *testing.T) {
	a, api, c, b, _ := newTestAggregator(t)
	api.notifications = []client.Notification{{ID: 5, Title: "New order"}}
	api.unread = 1
	c.SetValue(cnst.KeyAuthMe, &client.User{ID: 7})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx)

	// give the run loop a moment to register its watchers
	time.Sleep(50 * time.Millisecond)
	b.Publish(&bus.Event{Name: cnst.EventNotification, Data: payload(t, map[string]any{
		"id": 5, "type": "system", "title": "New order",
	})})

	assert.Eventually(t, func() bool {
		count, ok := c.Get(cnst.KeyNotificationsUnread)
		if !ok {
			return false
		}
		list, listOK := c.Get(cnst.KeyNotifications)
		return listOK && count == 1 && len(list.([]client.Notification)) == 1
	}, 2*time.Second, 10*time.Millisecond, "bus event should end in a refetched cache")
}
