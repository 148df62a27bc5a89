package notify

import "go.uber.org/zap"

// Toast is a single user-facing popup.
type Toast struct {
	Title       string
	Message     string
	ActionLabel string
	ActionURL   string
}

// Toaster surfaces toasts to the user.
type Toaster interface {
	Show(toast Toast)
}

// LogToaster writes toasts to the log. It is the default sink for headless
// runs; embedders swap in their own Toaster.
type LogToaster struct {
	logger *zap.Logger
}

// NewLogToaster creates a log-backed toaster.
func NewLogToaster(logger *zap.Logger) *LogToaster {
	return &LogToaster{logger: logger.Named("toast")}
}

func (t *LogToaster) Show(toast Toast) {
	fields := []zap.Field{zap.String("title", toast.Title)}
	if toast.Message != "" {
		fields = append(fields, zap.String("message", toast.Message))
	}
	if toast.ActionURL != "" {
		fields = append(fields,
			zap.String("action_label", toast.ActionLabel),
			zap.String("action_url", toast.ActionURL))
	}
	t.logger.Info("toast", fields...)
}
