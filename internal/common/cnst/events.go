package cnst

// Realtime wire events. EventJoin is emitted by the client immediately after
// connect; the rest are server-pushed.
const (
	EventJoin         = "join"
	EventNotification = "notification"
	EventReceiveMsg   = "receiveMessage"
	EventMessagesRead = "messagesRead"
	EventPollTick     = "pollTick"
)

// Notification types that fan out to order-related cache keys.
const (
	NotifyTypeNewOrder     = "new_order"
	NotifyTypeOrderCreated = "order_created"
	NotifyTypeOrderStatus  = "order_status"
)
