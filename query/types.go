// Package query builds RQL expressions for Mango REST collection endpoints from column filters,
// sort terms and pagination.
package query

import (
	"net/url"
	"strings"
)

type DataType string

const (
	String  DataType = "string"
	Number  DataType = "number"
	Boolean DataType = "boolean"
	Date    DataType = "date"
	Enum    DataType = "enum"
	Array   DataType = "array"
)

type Direction int

const (
	Ascending Direction = iota
	Descending
)

// Sort is persisted as part of the table settings, hence the json tags.
type Sort struct {
	Column     string `json:"columnName" mapstructure:"columnName" validate:"required"`
	Descending bool   `json:"descending,omitempty" mapstructure:"descending"`
}

func (s Sort) term() string {
	if s.Descending {
		return "-" + encode(s.Column)
	}
	return "+" + encode(s.Column)
}

// Predicate is a single RQL call such as eq(name,value).
type Predicate struct {
	Operator string
	Property string
	Args     []string
}

func (p Predicate) String() string {
	var sb strings.Builder
	sb.WriteString(p.Operator)
	sb.WriteByte('(')
	sb.WriteString(encode(p.Property))
	for _, arg := range p.Args {
		sb.WriteByte(',')
		if p.Operator == "like" {
			sb.WriteString(encodePattern(arg))
		} else {
			sb.WriteString(encode(arg))
		}
	}
	sb.WriteByte(')')
	return sb.String()
}

// Expression is the built query. RQL is appended to the collection URL as its query string.
type Expression struct {
	RQL    string
	Limit  int
	Offset int
}

func (e Expression) String() string {
	return e.RQL
}

func encode(value string) string {
	return strings.ReplaceAll(url.QueryEscape(value), "+", "%20")
}

// encodePattern keeps the * wildcards of a like pattern unescaped.
func encodePattern(value string) string {
	parts := strings.Split(value, "*")
	for i, part := range parts {
		parts[i] = encode(part)
	}
	return strings.Join(parts, "*")
}
