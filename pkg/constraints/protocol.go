package constraints

// Newsletter delivery status.
const (
	StatusScheduled = "scheduled"
	StatusSending   = "sending"
	StatusSent      = "sent"
	StatusFailed    = "failed"
	StatusPartial   = "partial"
)

// Newsletter delivery channel.
const (
	ChannelEmail    = "email"
	ChannelTelegram = "telegram"
	ChannelBoth     = "both"
)

// Registration step input kinds.
const (
	FieldText     = "text"
	FieldEmail    = "email"
	FieldPhone    = "phone"
	FieldFullName = "fullname"
	FieldDate     = "date"
)

// ProgressComplete is the value a newsletter reports once every task settled.
const ProgressComplete = 100

func ValidStatus(s string) bool {
	switch s {
	case StatusScheduled, StatusSending, StatusSent, StatusFailed, StatusPartial:
		return true
	}
	return false
}

func ValidChannel(s string) bool {
	switch s {
	case ChannelEmail, ChannelTelegram, ChannelBoth:
		return true
	}
	return false
}

func ValidFieldType(s string) bool {
	switch s {
	case FieldText, FieldEmail, FieldPhone, FieldFullName, FieldDate:
		return true
	}
	return false
}
