// Package notify defines the shared notification domain types: semantic
// categories, delivery channels, trigger rules, and the notification content
// passed between the scheduler, the history store, and the router.
package notify

// Category is the semantic classification of a notification. It drives the
// delivery channel, the platform priority, and in-app routing.
type Category string

const (
	CategoryChat         Category = "chat"
	CategoryAppointment  Category = "appointment"
	CategoryMedication   Category = "medication"
	CategoryEmergency    Category = "emergency"
	CategoryPrescription Category = "prescription"
	CategoryOther        Category = "other"
)

// ParseCategory maps a raw payload tag to a known category.
// Unknown or empty values fall back to CategoryOther.
func ParseCategory(s string) Category {
	switch Category(s) {
	case CategoryChat, CategoryAppointment, CategoryMedication, CategoryEmergency, CategoryPrescription:
		return Category(s)
	default:
		return CategoryOther
	}
}

// Priority is the platform delivery importance for a notification.
type Priority string

const (
	PriorityHigh Priority = "high"
	PriorityMax  Priority = "max"
)

// Priority returns the delivery priority for the category.
// Emergency alerts get maximum priority; everything else is high.
func (c Category) Priority() Priority {
	if c == CategoryEmergency {
		return PriorityMax
	}
	return PriorityHigh
}

// Channel is a platform-level delivery configuration bound to a category.
type Channel struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Importance Priority `json:"importance"`
	Vibration  bool     `json:"vibration"`
}

const (
	ChannelChat        = "chat"
	ChannelAppointment = "appointments"
	ChannelMedication  = "medications"
	ChannelEmergency   = "emergency"
	ChannelDefault     = "default"
)

// Channels returns the predeclared delivery channels. The registrar creates
// these before requesting a push token; platforms that validate channel
// existence require that ordering.
func Channels() []Channel {
	return []Channel{
		{ID: ChannelChat, Name: "Chat Messages", Importance: PriorityHigh, Vibration: true},
		{ID: ChannelAppointment, Name: "Appointments", Importance: PriorityHigh, Vibration: true},
		{ID: ChannelMedication, Name: "Medication Reminders", Importance: PriorityHigh, Vibration: true},
		{ID: ChannelEmergency, Name: "Emergency Alerts", Importance: PriorityMax, Vibration: true},
		{ID: ChannelDefault, Name: "General", Importance: PriorityHigh, Vibration: false},
	}
}

// ChannelFor returns the delivery channel id for the category.
func ChannelFor(c Category) string {
	switch c {
	case CategoryChat:
		return ChannelChat
	case CategoryAppointment:
		return ChannelAppointment
	case CategoryMedication, CategoryPrescription:
		return ChannelMedication
	case CategoryEmergency:
		return ChannelEmergency
	default:
		return ChannelDefault
	}
}

// Notification is the content of a scheduled or delivered notification.
// Data is an opaque key-value payload carried through to the history store
// and the router; by convention it includes a "category" tag.
type Notification struct {
	Category Category       `json:"category"`
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Data     map[string]any `json:"data,omitempty"`
}

// StringField extracts a string value from a notification payload.
// Non-string values and missing keys yield "".
func StringField(data map[string]any, key string) string {
	if data == nil {
		return ""
	}
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}
