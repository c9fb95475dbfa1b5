package query

import (
	"strconv"
	"strings"
	"time"

	e "github.com/mangoautomation/dashboard-data-apis/rest/errors"
)

var comparisonOperators = []struct {
	prefix   string
	operator string
}{
	// two character prefixes must be tried first
	{">=", "ge"},
	{"<=", "le"},
	{">", "gt"},
	{"<", "lt"},
	{"=", "eq"},
}

// filterPredicates translates the value typed into a column filter into RQL predicates.
func filterPredicates(column string, dataType DataType, value string) ([]Predicate, error) {
	value = strings.TrimSpace(value)

	switch dataType {
	case Number, Date:
		return comparisonPredicates(column, dataType, value)
	case Boolean:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, e.NewPreconditionError("filter on %s must be true or false, got %q", column, value)
		}
		return []Predicate{{Operator: "eq", Property: column, Args: []string{strconv.FormatBool(b)}}}, nil
	case Enum:
		options := splitList(value)
		if len(options) == 0 {
			return nil, e.NewPreconditionError("filter on %s has no options", column)
		}
		if len(options) == 1 {
			return []Predicate{{Operator: "eq", Property: column, Args: options}}, nil
		}
		return []Predicate{{Operator: "in", Property: column, Args: options}}, nil
	case Array:
		return []Predicate{{Operator: "contains", Property: column, Args: []string{value}}}, nil
	default:
		pattern := value
		if !strings.Contains(pattern, "*") {
			pattern = "*" + pattern + "*"
		}
		return []Predicate{{Operator: "like", Property: column, Args: []string{pattern}}}, nil
	}
}

func comparisonPredicates(column string, dataType DataType, value string) ([]Predicate, error) {
	if i := strings.Index(value, ".."); i >= 0 {
		low, high := strings.TrimSpace(value[:i]), strings.TrimSpace(value[i+2:])
		if low == "" && high == "" {
			return nil, e.NewPreconditionError("range filter on %s needs at least one bound", column)
		}

		var predicates []Predicate
		if low != "" {
			arg, err := normalizeOperand(column, dataType, low)
			if err != nil {
				return nil, err
			}
			predicates = append(predicates, Predicate{Operator: "ge", Property: column, Args: []string{arg}})
		}
		if high != "" {
			arg, err := normalizeOperand(column, dataType, high)
			if err != nil {
				return nil, err
			}
			predicates = append(predicates, Predicate{Operator: "le", Property: column, Args: []string{arg}})
		}
		return predicates, nil
	}

	operator := "eq"
	for _, c := range comparisonOperators {
		if strings.HasPrefix(value, c.prefix) {
			operator = c.operator
			value = strings.TrimSpace(value[len(c.prefix):])
			break
		}
	}

	arg, err := normalizeOperand(column, dataType, value)
	if err != nil {
		return nil, err
	}
	return []Predicate{{Operator: operator, Property: column, Args: []string{arg}}}, nil
}

func normalizeOperand(column string, dataType DataType, value string) (string, error) {
	if dataType == Date {
		t, err := parseDate(value)
		if err != nil {
			return "", e.NewPreconditionError("filter on %s must be a date, got %q", column, value)
		}
		return t.UTC().Format(time.RFC3339), nil
	}

	if _, err := strconv.ParseFloat(value, 64); err != nil {
		return "", e.NewPreconditionError("filter on %s must be a number, got %q", column, value)
	}
	return value, nil
}

func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
