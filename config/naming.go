package config

import (
	"strconv"
	"strings"

	"github.com/iancoleman/strcase"
)

// DefaultPropertyRenames maps validation message properties reported by the API to the property
// path they refer to in the client model.
var DefaultPropertyRenames = map[string]string{
	"purgeType":   "purgePeriod.type",
	"purgePeriod": "purgePeriod.periods",
}

type NamingConvention interface {
	// ToLabel derives a display label for a property without a translated label
	ToLabel(property string) string

	// ToPropertyPath maps a server-side property name to the client-side property path
	ToPropertyPath(property string) string

	// ToFieldName is the key of an editable cell, "<property>-<rowIndexWithinPage>"
	ToFieldName(property string, rowIndex int) string

	ToStorageKey(name string) string
}

type defaultNaming struct {
	renames map[string]string
}

func NewDefaultNaming(renames map[string]string) *defaultNaming {
	copied := make(map[string]string, len(renames))
	for k, v := range renames {
		copied[k] = v
	}
	return &defaultNaming{renames: copied}
}

func (n *defaultNaming) ToLabel(property string) string {
	// nested paths are labelled by their last segment
	if i := strings.LastIndex(property, "."); i >= 0 {
		property = property[i+1:]
	}
	label := strcase.ToDelimited(property, ' ')
	if label == "" {
		return label
	}
	return strings.ToUpper(label[:1]) + label[1:]
}

func (n *defaultNaming) ToPropertyPath(property string) string {
	if renamed, ok := n.renames[property]; ok {
		return renamed
	}
	return property
}

func (n *defaultNaming) ToFieldName(property string, rowIndex int) string {
	return property + "-" + strconv.Itoa(rowIndex)
}

func (n *defaultNaming) ToStorageKey(name string) string {
	return strcase.ToLowerCamel(name)
}
