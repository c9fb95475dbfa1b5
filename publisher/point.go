// Package publisher edits the points published by a Mango publisher: a table of the published
// points merged with the points added but not yet saved, saved together as one bulk task.
package publisher

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
)

const (
	Collection = "published-points"
	XIDPrefix  = "PP_"
	StorageKey = "publisherPointsTable"
)

// PublisherPoint links a data point to a publisher. Properties holds the settings specific to the
// publisher type, they are serialized inline with the other fields.
type PublisherPoint struct {
	XID          string                 `json:"xid" mapstructure:"xid"`
	Name         string                 `json:"name" mapstructure:"name"`
	Enabled      bool                   `json:"enabled" mapstructure:"enabled"`
	DataPointXID string                 `json:"dataPointXid" mapstructure:"dataPointXid"`
	PublisherXID string                 `json:"publisherXid" mapstructure:"publisherXid"`
	ModelType    string                 `json:"modelType" mapstructure:"modelType"`
	Properties   map[string]interface{} `json:"-" mapstructure:",remain"`
}

// NewXID returns a fresh xid for a publisher point.
func NewXID() string {
	return XIDPrefix + uuid.New().String()
}

func (p PublisherPoint) MarshalJSON() ([]byte, error) {
	object := make(map[string]interface{}, len(p.Properties)+6)
	for k, v := range p.Properties {
		object[k] = v
	}
	object["xid"] = p.XID
	object["name"] = p.Name
	object["enabled"] = p.Enabled
	object["dataPointXid"] = p.DataPointXID
	object["publisherXid"] = p.PublisherXID
	object["modelType"] = p.ModelType
	return json.Marshal(object)
}

func (p *PublisherPoint) UnmarshalJSON(data []byte) error {
	var object map[string]interface{}
	if err := json.Unmarshal(data, &object); err != nil {
		return err
	}
	return p.DecodeObject(object)
}

// DecodeObject fills the point from a decoded JSON object, unknown keys become properties.
func (p *PublisherPoint) DecodeObject(object map[string]interface{}) error {
	*p = PublisherPoint{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           p,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(object); err != nil {
		return err
	}
	if len(p.Properties) == 0 {
		p.Properties = nil
	}
	return nil
}

// Value returns a field or property by its JSON name.
func (p PublisherPoint) Value(name string) interface{} {
	switch name {
	case "xid":
		return p.XID
	case "name":
		return p.Name
	case "enabled":
		return p.Enabled
	case "dataPointXid":
		return p.DataPointXID
	case "publisherXid":
		return p.PublisherXID
	case "modelType":
		return p.ModelType
	}
	return p.Properties[name]
}

// WithValue returns a copy of the point with a field or property set. Only name, enabled and
// properties can be edited, the other fields identify the point.
func (p PublisherPoint) WithValue(name string, value interface{}) (PublisherPoint, error) {
	switch name {
	case "xid", "dataPointXid", "publisherXid", "modelType":
		return p, &ReadOnlyError{Property: name}
	case "name", "enabled":
		object := map[string]interface{}{name: value}
		if err := mapstructure.WeakDecode(object, &p); err != nil {
			return p, err
		}
		return p, nil
	}

	properties := make(map[string]interface{}, len(p.Properties)+1)
	for k, v := range p.Properties {
		properties[k] = v
	}
	properties[name] = value
	p.Properties = properties
	return p, nil
}

type ReadOnlyError struct {
	Property string
}

func (e *ReadOnlyError) Error() string {
	return "property " + e.Property + " of a publisher point cannot be edited"
}
