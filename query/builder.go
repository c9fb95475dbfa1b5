package query

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Builder accumulates filters, sorting and pagination. Filters are keyed by column, a later
// WithFilter for the same column replaces the earlier one. Building never touches the network.
type Builder struct {
	filters   map[string][]Predicate
	extra     []Predicate
	sorts     []Sort
	multiSort bool
	limit     int
	offset    int
}

func New() *Builder {
	return &Builder{filters: make(map[string][]Predicate)}
}

// Params is everything needed to build the query of a table page.
type Params struct {
	Filters   map[string]string
	Types     map[string]DataType
	Sort      []Sort
	MultiSort bool
	Page      int
	PageSize  int
}

// FromParams returns a builder populated from a table's query settings. Filters on columns with no
// known type are treated as strings.
func FromParams(params Params) (*Builder, error) {
	b := New().WithMultiSort(params.MultiSort)

	columns := make([]string, 0, len(params.Filters))
	for column := range params.Filters {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	for _, column := range columns {
		value := params.Filters[column]
		dataType, ok := params.Types[column]
		if !ok {
			dataType = String
		}
		if err := b.WithFilter(column, dataType, value); err != nil {
			return nil, err
		}
	}

	for _, s := range params.Sort {
		direction := Ascending
		if s.Descending {
			direction = Descending
		}
		b.WithSort(s.Column, direction)
	}

	if params.PageSize > 0 {
		b.Paginate(params.Page, params.PageSize)
	}
	return b, nil
}

// WithFilter sets the filter of a column. An empty value removes it.
func (b *Builder) WithFilter(column string, dataType DataType, value string) error {
	if strings.TrimSpace(value) == "" {
		delete(b.filters, column)
		return nil
	}

	predicates, err := filterPredicates(column, dataType, value)
	if err != nil {
		return err
	}
	b.filters[column] = predicates
	return nil
}

func (b *Builder) WithMultiSort(enabled bool) *Builder {
	b.multiSort = enabled
	return b
}

// WithSort makes column the active sort. With multi-sort enabled the column is appended instead,
// or its direction updated if already sorted on.
func (b *Builder) WithSort(column string, direction Direction) *Builder {
	s := Sort{Column: column, Descending: direction == Descending}
	if !b.multiSort {
		b.sorts = []Sort{s}
		return b
	}

	for i, existing := range b.sorts {
		if existing.Column == column {
			b.sorts[i] = s
			return b
		}
	}
	b.sorts = append(b.sorts, s)
	return b
}

// Paginate converts a 1-based page number into a limit/offset pair.
func (b *Builder) Paginate(page, pageSize int) *Builder {
	if page < 1 {
		page = 1
	}
	b.limit = pageSize
	b.offset = (page - 1) * pageSize
	return b
}

func (b *Builder) Eq(property string, value interface{}) *Builder {
	return b.add("eq", property, value)
}

func (b *Builder) Contains(property string, value interface{}) *Builder {
	return b.add("contains", property, value)
}

func (b *Builder) Like(property string, pattern string) *Builder {
	return b.add("like", property, pattern)
}

func (b *Builder) In(property string, values ...interface{}) *Builder {
	return b.add("in", property, values...)
}

func (b *Builder) add(operator, property string, values ...interface{}) *Builder {
	args := make([]string, len(values))
	for i, v := range values {
		args[i] = formatValue(v)
	}
	b.extra = append(b.extra, Predicate{Operator: operator, Property: property, Args: args})
	return b
}

// Build serializes the builder. Column filters are emitted sorted by column name so the same state
// always yields the same expression.
func (b *Builder) Build() Expression {
	columns := make([]string, 0, len(b.filters))
	for column := range b.filters {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	terms := make([]string, 0, len(columns)+len(b.extra)+2)
	for _, column := range columns {
		for _, p := range b.filters[column] {
			terms = append(terms, p.String())
		}
	}
	for _, p := range b.extra {
		terms = append(terms, p.String())
	}

	if len(b.sorts) > 0 {
		sortTerms := make([]string, len(b.sorts))
		for i, s := range b.sorts {
			sortTerms[i] = s.term()
		}
		terms = append(terms, "sort("+strings.Join(sortTerms, ",")+")")
	}

	if b.limit > 0 {
		terms = append(terms, fmt.Sprintf("limit(%d,%d)", b.limit, b.offset))
	}

	return Expression{
		RQL:    strings.Join(terms, "&"),
		Limit:  b.limit,
		Offset: b.offset,
	}
}

func formatValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
