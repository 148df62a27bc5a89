// Package notify is the sole consumer of the event bus. It folds realtime
// pushes and interval polling into the cache, surfaces toasts, and keeps the
// unread count and the notification list consistent: whatever invalidates
// one invalidates the other, and the server is always the authority on both.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fustanlabs/fustan-sync/internal/bus"
	"github.com/fustanlabs/fustan-sync/internal/cache"
	"github.com/fustanlabs/fustan-sync/internal/client"
	"github.com/fustanlabs/fustan-sync/internal/common/cnst"
	"github.com/fustanlabs/fustan-sync/internal/history"
	"github.com/fustanlabs/fustan-sync/internal/i18n"
	"github.com/fustanlabs/fustan-sync/pkg/metrics"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// API is the slice of the REST client the aggregator needs.
type API interface {
	Notifications(ctx context.Context) ([]client.Notification, error)
	UnreadCount(ctx context.Context) (int, error)
	ChatUnreadCount(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, id int64) error
	MarkAllRead(ctx context.Context) error
}

// Aggregator folds bus events and poll ticks into cache state.
type Aggregator struct {
	logger     *zap.Logger
	api        API
	cache      *cache.Store
	bus        *bus.Bus
	toaster    Toaster
	translator *i18n.I18n
	history    *history.Store // optional
	metrics    *metrics.Metrics
	interval   time.Duration
}

// NewAggregator creates an aggregator. history may be nil to disable local
// persistence.
func NewAggregator(logger *zap.Logger, api API, c *cache.Store, b *bus.Bus, toaster Toaster, translator *i18n.I18n, hist *history.Store, m *metrics.Metrics, interval time.Duration) *Aggregator {
	if interval <= 0 {
		interval = cnst.DefaultPollInterval
	}
	return &Aggregator{
		logger:     logger.Named("notify"),
		api:        api,
		cache:      c,
		bus:        b,
		toaster:    toaster,
		translator: translator,
		history:    hist,
		metrics:    m,
		interval:   interval,
	}
}

// Run consumes the bus, refetches invalidated keys and polls on an interval
// until ctx is done. Polling and refetching both stop while no user is
// resolved; a guest has nothing to sync.
func (a *Aggregator) Run(ctx context.Context) {
	events := a.bus.Watch(ctx)
	changes := a.cache.Subscribe(ctx,
		cnst.KeyNotifications, cnst.KeyNotificationsUnread, cnst.KeyChatUnread)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			a.handle(ctx, ev)
		case key, ok := <-changes:
			if !ok {
				return
			}
			a.refetchIfStale(ctx, key)
		case <-ticker.C:
			a.poll(ctx)
		}
	}
}

// handle dispatches one bus event.
func (a *Aggregator) handle(ctx context.Context, ev *bus.Event) {
	switch ev.Name {
	case cnst.EventNotification:
		a.onNotification(ctx, ev.Data)
	case cnst.EventReceiveMsg:
		a.onMessage(ev.Data)
	case cnst.EventMessagesRead:
		a.invalidate(cnst.KeyChatUnread)
	case cnst.EventPollTick:
		a.poll(ctx)
	default:
		a.logger.Debug("ignoring unhandled event", zap.String("event", ev.Name))
	}
}

// onNotification surfaces a toast and invalidates the list and count
// together. The payload's own fields never touch the cached count; the
// refetch that follows is what moves it.
func (a *Aggregator) onNotification(ctx context.Context, data []byte) {
	title := gjson.GetBytes(data, "title").String()
	if title == "" {
		title = a.translator.Translate(i18n.MsgNotification, nil)
	}
	toast := Toast{
		Title:   title,
		Message: gjson.GetBytes(data, "message").String(),
	}
	if actionURL := gjson.GetBytes(data, "actionUrl").String(); actionURL != "" {
		toast.ActionLabel = a.translator.Translate(i18n.MsgViewAction, nil)
		toast.ActionURL = actionURL
	}
	a.showToast(toast)

	a.invalidate(cnst.KeyNotifications)
	a.invalidate(cnst.KeyNotificationsUnread)

	// order notifications also move the order views
	switch gjson.GetBytes(data, "type").String() {
	case cnst.NotifyTypeNewOrder, cnst.NotifyTypeOrderCreated, cnst.NotifyTypeOrderStatus:
		a.invalidate(cnst.KeyOrders)
		a.invalidate(cnst.KeyVendorOrders)
		a.invalidate(cnst.KeyVendorDashboard)
	}

	if a.history != nil {
		if user := a.currentUser(); user != nil {
			var n client.Notification
			if err := json.Unmarshal(data, &n); err == nil && n.ID != 0 {
				if err := a.history.Upsert(ctx, user.ID, []client.Notification{n}); err != nil {
					a.logger.Warn("failed to record notification", zap.Error(err))
				}
			}
		}
	}
}

// onMessage handles an incoming chat message. A message the user sent from
// another device is not news to them.
func (a *Aggregator) onMessage(data []byte) {
	if user := a.currentUser(); user != nil &&
		gjson.GetBytes(data, "senderId").Int() == user.ID {
		return
	}

	sender := gjson.GetBytes(data, "senderName").String()
	a.showToast(Toast{
		Title: a.translator.Translate(i18n.MsgNewMessage,
			map[string]interface{}{"Sender": sender}),
		Message: gjson.GetBytes(data, "content").String(),
	})

	a.invalidate(cnst.KeyChatUnread)
	a.invalidate(cnst.KeyChatConversations)
}

// MarkRead marks one notification read on the server, then refreshes the
// list and count from the server rather than adjusting them locally.
func (a *Aggregator) MarkRead(ctx context.Context, id int64) error {
	if err := a.api.MarkRead(ctx, id); err != nil {
		a.showToast(Toast{Title: a.translator.Translate(i18n.MsgMarkReadFail, nil)})
		return err
	}

	if a.history != nil {
		if user := a.currentUser(); user != nil {
			if err := a.history.MarkRead(ctx, user.ID, id); err != nil {
				a.logger.Warn("failed to update history", zap.Error(err))
			}
		}
	}

	a.invalidate(cnst.KeyNotifications)
	a.invalidate(cnst.KeyNotificationsUnread)
	return nil
}

// MarkAllRead marks everything read on the server and refreshes.
func (a *Aggregator) MarkAllRead(ctx context.Context) error {
	if err := a.api.MarkAllRead(ctx); err != nil {
		a.showToast(Toast{Title: a.translator.Translate(i18n.MsgMarkReadFail, nil)})
		return err
	}

	if a.history != nil {
		if user := a.currentUser(); user != nil {
			if err := a.history.MarkAllRead(ctx, user.ID); err != nil {
				a.logger.Warn("failed to update history", zap.Error(err))
			}
		}
	}

	a.showToast(Toast{Title: a.translator.Translate(i18n.MsgAllMarkedRead, nil)})
	a.invalidate(cnst.KeyNotifications)
	a.invalidate(cnst.KeyNotificationsUnread)
	return nil
}

// poll refetches everything the aggregator owns. This is the fallback that
// catches up after dropped events or a long-dead channel.
func (a *Aggregator) poll(ctx context.Context) {
	if a.currentUser() == nil {
		return
	}
	a.refetchNotifications(ctx)
	a.refetchUnread(ctx)
	a.refetchChatUnread(ctx)
}

// refetchIfStale refetches key when it has been invalidated and a user is
// present. Notifications for writes the refetch itself performed land here
// too; a settled key is simply skipped.
func (a *Aggregator) refetchIfStale(ctx context.Context, key string) {
	if _, ok := a.cache.Get(key); ok {
		return
	}
	if a.currentUser() == nil {
		return
	}

	switch key {
	case cnst.KeyNotifications:
		a.refetchNotifications(ctx)
	case cnst.KeyNotificationsUnread:
		a.refetchUnread(ctx)
	case cnst.KeyChatUnread:
		a.refetchChatUnread(ctx)
	}
}

func (a *Aggregator) refetchNotifications(ctx context.Context) {
	gen := a.cache.Begin(cnst.KeyNotifications)
	list, err := a.api.Notifications(ctx)
	if err != nil {
		a.logger.Warn("failed to fetch notifications", zap.Error(err))
		return
	}
	if !a.cache.Complete(cnst.KeyNotifications, gen, list) {
		return
	}

	if a.history != nil {
		if user := a.currentUser(); user != nil {
			if err := a.history.Upsert(ctx, user.ID, list); err != nil {
				a.logger.Warn("failed to record notifications", zap.Error(err))
			}
		}
	}
}

func (a *Aggregator) refetchUnread(ctx context.Context) {
	gen := a.cache.Begin(cnst.KeyNotificationsUnread)
	count, err := a.api.UnreadCount(ctx)
	if err != nil {
		a.logger.Warn("failed to fetch unread count", zap.Error(err))
		return
	}
	a.cache.Complete(cnst.KeyNotificationsUnread, gen, count)
}

func (a *Aggregator) refetchChatUnread(ctx context.Context) {
	gen := a.cache.Begin(cnst.KeyChatUnread)
	count, err := a.api.ChatUnreadCount(ctx)
	if err != nil {
		a.logger.Warn("failed to fetch chat unread count", zap.Error(err))
		return
	}
	a.cache.Complete(cnst.KeyChatUnread, gen, count)
}

func (a *Aggregator) invalidate(key string) {
	a.cache.Invalidate(key)
	a.metrics.CacheInvalidation(key)
}

func (a *Aggregator) showToast(toast Toast) {
	a.toaster.Show(toast)
	a.metrics.Toast()
}

func (a *Aggregator) currentUser() *client.User {
	v, _ := a.cache.Get(cnst.KeyAuthMe)
	user, _ := v.(*client.User)
	return user
}
