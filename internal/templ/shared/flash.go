package shared

// FlashType selects the styling of a flash message.
type FlashType string

const (
	FlashSuccess FlashType = "success"
	FlashError   FlashType = "error"
	FlashWarning FlashType = "warning"
	FlashInfo    FlashType = "info"
)

// Flash is a one-time message shown above a form.
type Flash struct {
	Type    FlashType
	Message string
}

// NewFlash returns a flash, or nil when message is empty.
func NewFlash(t FlashType, message string) *Flash {
	if message == "" {
		return nil
	}
	return &Flash{Type: t, Message: message}
}

// Role is the ARIA role of the banner. Errors interrupt screen readers.
func (f *Flash) Role() string {
	if f.Type == FlashError {
		return "alert"
	}
	return "status"
}
