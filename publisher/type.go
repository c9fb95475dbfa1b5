package publisher

import (
	"github.com/mitchellh/mapstructure"

	"github.com/mangoautomation/dashboard-data-apis/query"
	"github.com/mangoautomation/dashboard-data-apis/table"
)

// PointProperty describes a setting every point of a publisher type carries.
type PointProperty struct {
	Name           string         `mapstructure:"name"`
	TranslationKey string         `mapstructure:"translationKey"`
	Type           query.DataType `mapstructure:"type"`
	Editor         string         `mapstructure:"editor"`
	DefaultValue   interface{}    `mapstructure:"defaultValue"`
}

// PublisherType is the descriptor of a kind of publisher, e.g. HTTP or PERSISTENT.
type PublisherType struct {
	Type            string          `mapstructure:"type"`
	Description     string          `mapstructure:"description"`
	PointProperties []PointProperty `mapstructure:"pointProperties"`
}

// DecodeTypes decodes the publisher type descriptors listed by the server.
func DecodeTypes(descriptors []map[string]interface{}) (map[string]PublisherType, error) {
	types := make(map[string]PublisherType, len(descriptors))
	for _, descriptor := range descriptors {
		var t PublisherType
		if err := mapstructure.WeakDecode(descriptor, &t); err != nil {
			return nil, err
		}
		types[t.Type] = t
	}
	return types, nil
}

// DefaultColumns are shown for every publisher type.
func DefaultColumns() []table.Column {
	return []table.Column{
		{Name: "xid", Label: "ui.app.xidShort", Type: query.String, Flags: table.Sortable | table.Filterable | table.SelectedByDefault},
		{Name: "dataPointXid", Label: "ui.components.dataPointXid", Type: query.String, Flags: table.Sortable | table.Filterable | table.SelectedByDefault},
		{Name: "name", Label: "common.name", Type: query.String, Flags: table.Sortable | table.Filterable | table.SelectedByDefault | table.Editable, Editor: "text"},
	}
}

// Columns returns the default columns followed by one editable column per point property. The
// properties are not stored in columns the server can sort or filter on.
func Columns(t PublisherType) []table.Column {
	columns := DefaultColumns()
	for i, property := range t.PointProperties {
		dataType := property.Type
		switch dataType {
		case query.String, query.Number, query.Boolean, query.Date, query.Enum, query.Array:
		default:
			dataType = query.String
		}
		columns = append(columns, table.Column{
			Name:   property.Name,
			Label:  property.TranslationKey,
			Type:   dataType,
			Flags:  table.Editable | table.SelectedByDefault,
			Order:  i + 1,
			Editor: property.Editor,
		})
	}
	return columns
}
