package table

import (
	"context"
	"sort"
	"sync"

	"github.com/mangoautomation/dashboard-data-apis/query"
	m "github.com/mangoautomation/dashboard-data-apis/rest/models"
)

type row struct {
	XID     string `json:"xid"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

func rowID(r row) string { return r.XID }

// fakeFetch serves rows from memory and records every expression it is asked for. Set block to
// hold queries until released.
type fakeFetch struct {
	mutex   sync.Mutex
	rows    []row
	exprs   []query.Expression
	err     error
	respond func(expr query.Expression) (m.Page[row], error)
}

func newFakeFetch(n int) *fakeFetch {
	f := &fakeFetch{}
	for i := 0; i < n; i++ {
		f.rows = append(f.rows, row{XID: xid(i), Name: "Row " + xid(i), Enabled: i%2 == 0})
	}
	return f
}

func xid(i int) string {
	return "R_" + string(rune('A'+i/26)) + string(rune('A'+i%26))
}

func (f *fakeFetch) Fetch(ctx context.Context, expr query.Expression) (m.Page[row], error) {
	f.mutex.Lock()
	f.exprs = append(f.exprs, expr)
	respond, err := f.respond, f.err
	rows := append([]row(nil), f.rows...)
	f.mutex.Unlock()

	if respond != nil {
		return respond(expr)
	}
	if err != nil {
		return m.Page[row]{}, err
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].XID < rows[j].XID })
	total := len(rows)
	if expr.Offset < len(rows) {
		rows = rows[expr.Offset:]
	} else {
		rows = nil
	}
	if expr.Limit > 0 && expr.Limit < len(rows) {
		rows = rows[:expr.Limit]
	}
	return m.Page[row]{Items: rows, Total: total}, nil
}

func (f *fakeFetch) Count() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return len(f.exprs)
}

func (f *fakeFetch) Last() query.Expression {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.exprs[len(f.exprs)-1]
}

func defaultColumns() []Column {
	return []Column{
		{Name: "xid", Type: query.String, Flags: Sortable | Filterable | SelectedByDefault},
		{Name: "name", Type: query.String, Flags: Sortable | Filterable | SelectedByDefault | Editable},
		{Name: "enabled", Type: query.Boolean, Flags: Sortable | Filterable},
	}
}
