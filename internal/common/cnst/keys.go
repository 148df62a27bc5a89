package cnst

// Cache keys. Every query the synchronizer tracks lives under exactly one of
// these keys; realtime events and polling both converge on them through
// invalidation.
const (
	KeyAuthMe              = "auth:me"
	KeyNotifications       = "notifications"
	KeyNotificationsUnread = "notifications:unread"
	KeyChatUnread          = "chat:unread"
	KeyChatConversations   = "chat:conversations"
	KeyOrders              = "orders"
	KeyVendorOrders        = "vendor:orders"
	KeyVendorDashboard     = "vendor:dashboard"
)

// SessionScopedKeys are the cache keys that must be invalidated together when
// the session is torn down on logout.
var SessionScopedKeys = []string{
	KeyNotifications,
	KeyNotificationsUnread,
	KeyChatUnread,
	KeyChatConversations,
	KeyOrders,
	KeyVendorOrders,
	KeyVendorDashboard,
}

// Persistent storage keys. Each key has exactly one writer: the token relay
// owns the token, the session store owns the snapshot. The guest cart key is
// staged by the storefront and is deliberately left alone on logout.
const (
	StorageKeyToken     = "app_token"
	StorageKeySnapshot  = "user-info"
	StorageKeyGuestCart = "guest-cart"
)
