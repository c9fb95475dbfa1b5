package live

import (
	"time"

	"github.com/mitchellh/mapstructure"
)

type EventType string

const (
	Add    EventType = "add"
	Update EventType = "update"
	Delete EventType = "delete"
)

// Event is one change notification of an item of the subscribed collection.
type Event struct {
	Type   EventType
	XID    string
	Object map[string]interface{}
}

// ObjectDecoder is implemented by models that decode an event object themselves.
type ObjectDecoder interface {
	DecodeObject(object map[string]interface{}) error
}

// Decode copies the event object into a model, matching fields by their json tag names.
func (e Event) Decode(into interface{}) error {
	if d, ok := into.(ObjectDecoder); ok {
		return d.DecodeObject(e.Object)
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			mapstructure.StringToTimeDurationHookFunc(),
		),
		Result: into,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(e.Object)
}

// frame is the JSON envelope of every websocket message.
type frame struct {
	MessageType      string                 `json:"messageType"`
	NotificationType EventType              `json:"notificationType"`
	Object           map[string]interface{} `json:"object"`
}

func (f frame) event() (Event, bool) {
	if f.MessageType != "NOTIFICATION" || f.Object == nil {
		return Event{}, false
	}
	switch f.NotificationType {
	case Add, Update, Delete:
	default:
		return Event{}, false
	}
	xid, _ := f.Object["xid"].(string)
	return Event{Type: f.NotificationType, XID: xid, Object: f.Object}, true
}
