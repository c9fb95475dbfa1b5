package table

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mangoautomation/dashboard-data-apis/config"
	"github.com/mangoautomation/dashboard-data-apis/query"
)

// ColumnFlags describes what a user can do with a column.
type ColumnFlags int

const (
	Sortable ColumnFlags = 1 << iota
	Filterable
	Editable
	SelectedByDefault
)

func ParseFlags(flags ...string) (ColumnFlags, error) {
	var f ColumnFlags
	err := f.Add(flags...)
	return f, err
}

func (f *ColumnFlags) Set(flags ColumnFlags)       { *f |= flags }
func (f *ColumnFlags) Clear(flags ColumnFlags)     { *f &= ^flags }
func (f ColumnFlags) IsSet(flags ColumnFlags) bool { return f&flags == flags }

func (f *ColumnFlags) Add(flags ...string) error {
	for _, flag := range flags {
		switch strings.ToLower(strings.TrimSpace(flag)) {
		case "sortable":
			f.Set(Sortable)
		case "filterable":
			f.Set(Filterable)
		case "editable":
			f.Set(Editable)
		case "selectedbydefault", "selected":
			f.Set(SelectedByDefault)
		default:
			return fmt.Errorf("invalid column flag: %s", flag)
		}
	}
	return nil
}

// Column of a table. Editor names the cell editor of an editable column, e.g. "text" or "checkbox".
type Column struct {
	Name   string         `json:"name" validate:"required"`
	Label  string         `json:"label,omitempty"`
	Type   query.DataType `json:"type,omitempty" validate:"omitempty,oneof=string number boolean date enum array"`
	Flags  ColumnFlags    `json:"flags"`
	Order  int            `json:"order"`
	Editor string         `json:"editor,omitempty"`
}

// NewColumn returns a sortable, filterable string column selected by default.
func NewColumn(name string) Column {
	return Column{Name: name, Type: query.String, Flags: Sortable | Filterable | SelectedByDefault}
}

func (c Column) Sortable() bool   { return c.Flags.IsSet(Sortable) }
func (c Column) Filterable() bool { return c.Flags.IsSet(Filterable) }
func (c Column) Editable() bool   { return c.Flags.IsSet(Editable) }

// mergeColumns combines the static and dynamic columns by name, dynamic ones replacing static ones,
// ordered by Order then by position of first appearance.
func mergeColumns(naming config.NamingConvention, static, dynamic []Column) ([]Column, error) {
	byName := make(map[string]int)
	var merged []Column
	for _, columns := range [][]Column{static, dynamic} {
		for _, column := range columns {
			if err := validateColumn(column); err != nil {
				return nil, err
			}
			if column.Type == "" {
				column.Type = query.String
			}
			if column.Label == "" {
				column.Label = naming.ToLabel(column.Name)
			}
			if i, ok := byName[column.Name]; ok {
				merged[i] = column
				continue
			}
			byName[column.Name] = len(merged)
			merged = append(merged, column)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Order < merged[j].Order
	})
	return merged, nil
}

func findColumn(columns []Column, name string) (Column, bool) {
	for _, column := range columns {
		if column.Name == name {
			return column, true
		}
	}
	return Column{}, false
}

// visibleColumns returns the selected columns in selection order, or the columns selected by
// default when nothing valid is selected.
func visibleColumns(columns []Column, selected []string) []Column {
	var visible []Column
	for _, name := range selected {
		if column, ok := findColumn(columns, name); ok {
			visible = append(visible, column)
		}
	}
	if len(visible) > 0 {
		return visible
	}
	for _, column := range columns {
		if column.Flags.IsSet(SelectedByDefault) {
			visible = append(visible, column)
		}
	}
	if len(visible) > 0 {
		return visible
	}
	return append(visible, columns...)
}

func columnTypes(columns []Column) map[string]query.DataType {
	types := make(map[string]query.DataType, len(columns))
	for _, column := range columns {
		types[column.Name] = column.Type
	}
	return types
}
