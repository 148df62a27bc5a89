package i18n

// Message IDs for the toast catalog.
const (
	MsgNotification  = "Toast.Notification"
	MsgNewMessage    = "Toast.NewMessage"
	MsgViewAction    = "Toast.ViewAction"
	MsgAllMarkedRead = "Toast.AllMarkedRead"
	MsgMarkReadFail  = "Toast.MarkReadFailed"
)
