package models

// ValidationMessage is a single server-side validation result. RowKey is set client-side after a
// bulk submission to tag the message with the row it came from.
type ValidationMessage struct {
	Level    string `json:"level" mapstructure:"level"`
	Property string `json:"property,omitempty" mapstructure:"property"`
	Message  string `json:"message" mapstructure:"message"`
	RowKey   string `json:"-" mapstructure:"-"`
}

// Equal compares the server-provided parts of the message, ignoring the row tag.
func (v ValidationMessage) Equal(other ValidationMessage) bool {
	return v.Level == other.Level && v.Property == other.Property && v.Message == other.Message
}

// String renders the message the way it is shown in a general error list.
func (v ValidationMessage) String() string {
	if v.Level == "" {
		return v.Message
	}
	return v.Level + ": " + v.Message
}
