package mango

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

type term struct {
	operator string
	args     []string
}

type rqlQuery struct {
	filters []term
	sorts   []term
	limit   int
	offset  int
}

func parseRQL(raw string) (rqlQuery, error) {
	q := rqlQuery{limit: -1}
	if raw == "" {
		return q, nil
	}

	for _, part := range strings.Split(raw, "&") {
		open := strings.IndexByte(part, '(')
		if open < 0 || !strings.HasSuffix(part, ")") {
			return q, fmt.Errorf("invalid RQL term %q", part)
		}
		t := term{operator: part[:open]}
		for _, arg := range strings.Split(part[open+1:len(part)-1], ",") {
			value, err := url.QueryUnescape(arg)
			if err != nil {
				return q, err
			}
			t.args = append(t.args, value)
		}

		switch t.operator {
		case "sort":
			q.sorts = append(q.sorts, t)
		case "limit":
			q.limit, _ = strconv.Atoi(t.args[0])
			if len(t.args) > 1 {
				q.offset, _ = strconv.Atoi(t.args[1])
			}
		default:
			q.filters = append(q.filters, t)
		}
	}
	return q, nil
}

// apply filters, sorts and pages items, returning the page and the total number of matches.
func (q rqlQuery) apply(items []map[string]interface{}) ([]map[string]interface{}, int) {
	matched := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		if q.matches(item) {
			matched = append(matched, item)
		}
	}

	for _, s := range q.sorts {
		for i := len(s.args) - 1; i >= 0; i-- {
			property := strings.TrimLeft(s.args[i], "+- ")
			descending := strings.HasPrefix(s.args[i], "-")
			sort.SliceStable(matched, func(a, b int) bool {
				c := compare(lookup(matched[a], property), lookup(matched[b], property))
				if descending {
					return c > 0
				}
				return c < 0
			})
		}
	}

	total := len(matched)
	if q.offset >= len(matched) {
		return []map[string]interface{}{}, total
	}
	matched = matched[q.offset:]
	if q.limit >= 0 && q.limit < len(matched) {
		matched = matched[:q.limit]
	}
	return matched, total
}

func (q rqlQuery) matches(item map[string]interface{}) bool {
	for _, f := range q.filters {
		value := lookup(item, f.args[0])
		args := f.args[1:]
		switch f.operator {
		case "eq":
			if compare(value, args[0]) != 0 {
				return false
			}
		case "ne":
			if compare(value, args[0]) == 0 {
				return false
			}
		case "gt":
			if compare(value, args[0]) <= 0 {
				return false
			}
		case "ge":
			if compare(value, args[0]) < 0 {
				return false
			}
		case "lt":
			if compare(value, args[0]) >= 0 {
				return false
			}
		case "le":
			if compare(value, args[0]) > 0 {
				return false
			}
		case "in":
			found := false
			for _, arg := range args {
				if compare(value, arg) == 0 {
					found = true
				}
			}
			if !found {
				return false
			}
		case "like":
			if !like(fmt.Sprint(value), args[0]) {
				return false
			}
		case "contains":
			list, _ := value.([]interface{})
			found := false
			for _, v := range list {
				if compare(v, args[0]) == 0 {
					found = true
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func lookup(item map[string]interface{}, property string) interface{} {
	var current interface{} = item
	for _, key := range strings.Split(property, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current = m[key]
	}
	return current
}

func compare(value interface{}, other interface{}) int {
	a, b := fmt.Sprint(value), fmt.Sprint(other)
	if value == nil {
		a = ""
	}
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func like(value, pattern string) bool {
	parts := strings.Split(pattern, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	re, err := regexp.Compile("(?i)^" + strings.Join(parts, ".*") + "$")
	return err == nil && re.MatchString(value)
}
