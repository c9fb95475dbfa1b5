// Package table is a paginated list engine: it persists per-user query settings, builds and
// issues queries, keeps only the latest result, tracks selection and publishes snapshots.
package table

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/atomic"

	"github.com/mangoautomation/dashboard-data-apis/config"
	"github.com/mangoautomation/dashboard-data-apis/log"
	"github.com/mangoautomation/dashboard-data-apis/notify"
	"github.com/mangoautomation/dashboard-data-apis/query"
	e "github.com/mangoautomation/dashboard-data-apis/rest/errors"
	m "github.com/mangoautomation/dashboard-data-apis/rest/models"
	"github.com/mangoautomation/dashboard-data-apis/settings"
)

const LoadErrorKey = "ui.app.errorGettingItems"

type Controller[T any] struct {
	opts     Options[T]
	naming   config.NamingConvention
	logger   log.Logger
	notifier notify.Notifier
	key      string

	generation atomic.Uint64

	mutex       sync.Mutex
	state       State
	initialized bool
	err         error
	settings    settings.QuerySettings
	dynamic     []Column
	columns     []Column
	rows        []T
	total       int
	cache       map[int]m.Page[T]
	selection   map[string]T
	selected    []string
	subscribers map[int]func(Snapshot[T])
	nextSub     int
	cancel      context.CancelFunc
	closed      bool
}

func NewController[T any](cfg config.Config, opts Options[T]) (*Controller[T], error) {
	if opts.IDFunc == nil {
		return nil, e.NewPreconditionError("table needs an IDFunc")
	}
	if opts.Fetch == nil {
		return nil, e.NewPreconditionError("table needs a Fetch function")
	}
	if opts.PageSize <= 0 {
		opts.PageSize = cfg.PageSize()
	}
	if opts.Logger == nil {
		opts.Logger = cfg.Logger()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.NewLogNotifier(opts.Logger)
	}
	if opts.Store == nil {
		opts.Store = settings.NewMemoryStore()
	}
	if opts.IDColumn == "" {
		opts.IDColumn = "xid"
	}

	naming := cfg.Naming()
	columns, err := mergeColumns(naming, opts.DefaultColumns, nil)
	if err != nil {
		return nil, err
	}

	c := &Controller[T]{
		opts:        opts,
		naming:      naming,
		logger:      opts.Logger,
		notifier:    opts.Notifier,
		columns:     columns,
		cache:       make(map[int]m.Page[T]),
		selection:   make(map[string]T),
		subscribers: make(map[int]func(Snapshot[T])),
	}
	if opts.StorageKey != "" {
		c.key = naming.ToStorageKey(opts.StorageKey)
	}
	return c, nil
}

// Init loads the persisted settings, builds the column set and fetches the first page.
func (c *Controller[T]) Init(ctx context.Context) error {
	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return ErrClosed
	}
	if c.initialized || c.state == LoadingSettings || c.state == LoadingColumns {
		c.mutex.Unlock()
		return e.NewPreconditionError("table is already initialized")
	}
	c.state = LoadingSettings
	c.mutex.Unlock()
	c.publish()

	defaults := settings.QuerySettings{
		Sort:     c.opts.DefaultSort,
		Page:     1,
		PageSize: c.opts.PageSize,
	}
	for _, column := range visibleColumns(c.columns, nil) {
		defaults.Columns = append(defaults.Columns, column.Name)
	}
	loaded := defaults.Clone()
	if c.key != "" {
		loaded = settings.LoadQuerySettings(c.opts.Store, c.key, defaults, c.logger)
	}
	if loaded.Page < 1 {
		loaded.Page = 1
	}
	if loaded.PageSize < 1 {
		loaded.PageSize = c.opts.PageSize
	}

	c.mutex.Lock()
	c.settings = loaded
	c.state = LoadingColumns
	c.mutex.Unlock()
	c.publish()

	c.mutex.Lock()
	columns, err := mergeColumns(c.naming, c.opts.DefaultColumns, c.dynamic)
	if err == nil {
		c.columns = columns
		c.dropStaleSettings()
		c.initialized = true
		c.state = Ready
	} else {
		c.state = Error
		c.err = err
	}
	c.mutex.Unlock()

	if err != nil {
		c.publish()
		return err
	}
	return c.Reload(ctx)
}

// SetDynamicColumns replaces the columns supplied in addition to the defaults, e.g. when the
// entity type of the rows changes, and reloads.
func (c *Controller[T]) SetDynamicColumns(ctx context.Context, columns []Column) error {
	c.mutex.Lock()
	merged, err := mergeColumns(c.naming, c.opts.DefaultColumns, columns)
	if err != nil {
		c.mutex.Unlock()
		return err
	}
	c.dynamic = append([]Column(nil), columns...)
	c.columns = merged
	c.invalidate()
	ready := c.initialized
	if ready {
		c.dropStaleSettings()
	}
	c.mutex.Unlock()

	if !ready {
		return nil
	}
	return c.Reload(ctx)
}

// Reload cancels the query in flight and issues a new one from the current settings. Only the
// latest query may update the rows, an earlier one returns ErrSuperseded. Failures keep the
// previously displayed rows.
func (c *Controller[T]) Reload(ctx context.Context) error {
	c.mutex.Lock()
	if err := c.checkReady(); err != nil {
		c.mutex.Unlock()
		return err
	}
	if c.cancel != nil {
		c.cancel()
	}
	queryCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	generation := c.generation.Inc()
	page := c.settings.Page

	expr, err := c.buildQuery()
	if err != nil {
		cancel()
		c.cancel = nil
		c.state = Error
		c.err = err
		c.mutex.Unlock()
		c.notifier.Notify(notify.Notification{Level: notify.Error, Key: LoadErrorKey, Args: []interface{}{err.Error()}})
		c.publish()
		return err
	}
	c.state = Querying
	c.mutex.Unlock()
	c.publish()

	result, err := c.opts.Fetch(queryCtx, expr)

	c.mutex.Lock()
	if c.closed || generation != c.generation.Load() {
		c.mutex.Unlock()
		c.logger.Debug("discarding superseded query", "table", c.key, "rql", expr.RQL)
		return ErrSuperseded
	}
	cancel()
	c.cancel = nil

	if err != nil {
		if errors.Is(err, context.Canceled) {
			c.state = Ready
			c.mutex.Unlock()
			c.publish()
			return err
		}
		c.state = Error
		c.err = err
		c.mutex.Unlock()
		c.logger.Warn("unable to fetch table rows", "table", c.key, "rql", expr.RQL, "error", err)
		c.notifier.Notify(notify.Notification{Level: notify.Error, Key: LoadErrorKey, Args: []interface{}{e.StatusText(err)}})
		c.publish()
		return err
	}

	rows := result.Items
	if c.opts.RowFilter != nil {
		rows = c.opts.RowFilter(rows)
	}
	c.rows = rows
	c.total = result.Total
	c.cache[page] = m.Page[T]{Items: rows, Total: result.Total}
	c.state = Ready
	c.err = nil
	c.mutex.Unlock()

	c.publish()
	return nil
}

// GoToPage shows a page, from the cache when it was fetched since the last change.
func (c *Controller[T]) GoToPage(ctx context.Context, page int) error {
	if page < 1 {
		page = 1
	}

	c.mutex.Lock()
	if err := c.checkReady(); err != nil {
		c.mutex.Unlock()
		return err
	}
	c.settings.Page = page
	c.save()
	cached, ok := c.cache[page]
	if ok {
		// a slower query for another page must not replace the cached one
		if c.cancel != nil {
			c.cancel()
			c.cancel = nil
		}
		c.generation.Inc()
		c.rows = cached.Items
		c.total = cached.Total
		c.state = Ready
		c.err = nil
	}
	c.mutex.Unlock()

	if ok {
		c.publish()
		return nil
	}
	return c.Reload(ctx)
}

// Invalidate drops every cached page, the current rows stay displayed.
func (c *Controller[T]) Invalidate() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.invalidate()
}

func (c *Controller[T]) invalidate() {
	c.cache = make(map[int]m.Page[T])
}

// SetFilter filters column on value, an empty value removes the filter. The first page is shown.
func (c *Controller[T]) SetFilter(ctx context.Context, column, value string) error {
	c.mutex.Lock()
	if err := c.checkReady(); err != nil {
		c.mutex.Unlock()
		return err
	}
	col, ok := findColumn(c.columns, column)
	if !ok || !col.Filterable() {
		c.mutex.Unlock()
		return e.NewPreconditionError("column %s is not filterable", column)
	}
	// reject values that cannot be translated before touching the settings
	if err := query.New().WithFilter(column, col.Type, value); err != nil {
		c.mutex.Unlock()
		return err
	}

	filters := make(map[string]string, len(c.settings.Filters)+1)
	for k, v := range c.settings.Filters {
		filters[k] = v
	}
	if value == "" {
		delete(filters, column)
	} else {
		filters[column] = value
	}
	c.settings.Filters = filters
	c.settings.Page = 1
	c.changed()
	c.mutex.Unlock()

	return c.Reload(ctx)
}

func (c *Controller[T]) ClearFilters(ctx context.Context) error {
	c.mutex.Lock()
	if err := c.checkReady(); err != nil {
		c.mutex.Unlock()
		return err
	}
	c.settings.Filters = nil
	c.settings.Page = 1
	c.changed()
	c.mutex.Unlock()

	return c.Reload(ctx)
}

// SetSort sorts on column. Unless multi-sort is enabled it replaces the current sort.
func (c *Controller[T]) SetSort(ctx context.Context, column string, direction query.Direction) error {
	c.mutex.Lock()
	if err := c.checkReady(); err != nil {
		c.mutex.Unlock()
		return err
	}
	col, ok := findColumn(c.columns, column)
	if !ok || !col.Sortable() {
		c.mutex.Unlock()
		return e.NewPreconditionError("column %s is not sortable", column)
	}

	s := query.Sort{Column: column, Descending: direction == query.Descending}
	sorts := []query.Sort{s}
	if c.opts.MultiSort {
		sorts = append([]query.Sort(nil), c.settings.Sort...)
		replaced := false
		for i := range sorts {
			if sorts[i].Column == column {
				sorts[i] = s
				replaced = true
			}
		}
		if !replaced {
			sorts = append(sorts, s)
		}
	}
	c.settings.Sort = sorts
	c.settings.Page = 1
	c.changed()
	c.mutex.Unlock()

	return c.Reload(ctx)
}

// SelectColumns chooses the visible columns, in display order.
func (c *Controller[T]) SelectColumns(ctx context.Context, names ...string) error {
	c.mutex.Lock()
	if err := c.checkReady(); err != nil {
		c.mutex.Unlock()
		return err
	}
	for _, name := range names {
		if _, ok := findColumn(c.columns, name); !ok {
			c.mutex.Unlock()
			return e.NewPreconditionError("unknown column %s", name)
		}
	}
	c.settings.Columns = append([]string(nil), names...)
	c.changed()
	c.mutex.Unlock()

	return c.Reload(ctx)
}

func (c *Controller[T]) SetPageSize(ctx context.Context, pageSize int) error {
	if pageSize < 1 {
		return e.NewPreconditionError("page size must be positive, got %d", pageSize)
	}
	c.mutex.Lock()
	if err := c.checkReady(); err != nil {
		c.mutex.Unlock()
		return err
	}
	c.settings.PageSize = pageSize
	c.settings.Page = 1
	c.changed()
	c.mutex.Unlock()

	return c.Reload(ctx)
}

func (c *Controller[T]) checkReady() error {
	if c.closed {
		return ErrClosed
	}
	if !c.initialized {
		return ErrNotInitialized
	}
	return nil
}

// dropStaleSettings removes the saved filters and sorts the current columns cannot serve, e.g.
// after a column was removed or changed type. The cleaned settings are written back.
func (c *Controller[T]) dropStaleSettings() {
	cleaned, dropped := staleSettings(c.columns, c.opts.IDColumn, c.settings)
	if len(dropped) == 0 {
		return
	}
	c.logger.Warn("dropping saved settings the columns no longer support",
		"table", c.key,
		"dropped", dropped)
	c.settings = cleaned
	c.save()
}

// staleSettings returns s without the filters and sorts that do not apply to columns, and a
// description of what was removed.
func staleSettings(columns []Column, idColumn string, s settings.QuerySettings) (settings.QuerySettings, []string) {
	var dropped []string

	filters := make(map[string]string, len(s.Filters))
	for name, value := range s.Filters {
		col, ok := findColumn(columns, name)
		if !ok || !col.Filterable() {
			dropped = append(dropped, "filter "+name)
			continue
		}
		if err := query.New().WithFilter(name, col.Type, value); err != nil {
			dropped = append(dropped, "filter "+name)
			continue
		}
		filters[name] = value
	}

	var sorts []query.Sort
	for _, st := range s.Sort {
		if st.Column != idColumn {
			if col, ok := findColumn(columns, st.Column); !ok || !col.Sortable() {
				dropped = append(dropped, "sort "+st.Column)
				continue
			}
		}
		sorts = append(sorts, st)
	}

	if len(dropped) == 0 {
		return s, nil
	}
	sort.Strings(dropped)
	s = s.Clone()
	s.Filters = filters
	s.Sort = sorts
	s.Page = 1
	return s, dropped
}

// changed invalidates the cache and writes the settings through to the store.
func (c *Controller[T]) changed() {
	c.invalidate()
	c.save()
}

func (c *Controller[T]) save() {
	if c.key == "" {
		return
	}
	if err := settings.SaveQuerySettings(c.opts.Store, c.key, c.settings); err != nil {
		c.logger.Warn("unable to save table settings", "table", c.key, "error", err)
	}
}

func (c *Controller[T]) buildQuery() (query.Expression, error) {
	b, err := query.FromParams(query.Params{
		Filters:   c.settings.Filters,
		Types:     columnTypes(c.columns),
		Sort:      c.settings.Sort,
		MultiSort: c.opts.MultiSort,
		Page:      c.settings.Page,
		PageSize:  c.settings.PageSize,
	})
	if err != nil {
		return query.Expression{}, err
	}

	if !c.opts.DisableSortByID && !sortsOn(c.settings.Sort, c.opts.IDColumn) {
		b.WithMultiSort(true).WithSort(c.opts.IDColumn, query.Ascending)
	}
	if c.opts.CustomizeQuery != nil {
		if err := c.opts.CustomizeQuery(b); err != nil {
			return query.Expression{}, err
		}
	}
	return b.Build(), nil
}

func sortsOn(sorts []query.Sort, column string) bool {
	for _, s := range sorts {
		if s.Column == column {
			return true
		}
	}
	return false
}

// ApplyUpdate replaces the visible row with the given id, returning false when it is not visible.
// Cached pages are dropped since they may hold the old value.
func (c *Controller[T]) ApplyUpdate(id string, item T) bool {
	c.mutex.Lock()
	c.invalidate()
	if _, ok := c.selection[id]; ok {
		c.selection[id] = item
	}
	found := false
	for i, row := range c.rows {
		if c.opts.IDFunc(row) == id {
			rows := append([]T(nil), c.rows...)
			rows[i] = item
			c.rows = rows
			found = true
			break
		}
	}
	c.mutex.Unlock()

	if found {
		c.publish()
	}
	return found
}

// ApplyDelete removes the row with the given id from the visible rows and the selection.
func (c *Controller[T]) ApplyDelete(id string) bool {
	c.mutex.Lock()
	c.invalidate()
	c.deselect(id)
	found := false
	for i, row := range c.rows {
		if c.opts.IDFunc(row) == id {
			rows := make([]T, 0, len(c.rows)-1)
			rows = append(rows, c.rows[:i]...)
			c.rows = append(rows, c.rows[i+1:]...)
			if c.total > 0 {
				c.total--
			}
			found = true
			break
		}
	}
	c.mutex.Unlock()

	c.publish()
	return found
}

// Snapshot returns a copy of the current state.
func (c *Controller[T]) Snapshot() Snapshot[T] {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.snapshot()
}

func (c *Controller[T]) snapshot() Snapshot[T] {
	filters := make(map[string]string, len(c.settings.Filters))
	for k, v := range c.settings.Filters {
		filters[k] = v
	}
	return Snapshot[T]{
		State:    c.state,
		Err:      c.err,
		Rows:     append([]T(nil), c.rows...),
		Total:    c.total,
		Page:     c.settings.Page,
		PageSize: c.settings.PageSize,
		Columns:  append([]Column(nil), c.columns...),
		Visible:  visibleColumns(c.columns, c.settings.Columns),
		Filters:  filters,
		Sort:     append([]query.Sort(nil), c.settings.Sort...),
		Selected: append([]string(nil), c.selected...),
	}
}

// Subscribe registers fn to receive a snapshot after every change, starting with the current one.
func (c *Controller[T]) Subscribe(fn func(Snapshot[T])) (unsubscribe func()) {
	c.mutex.Lock()
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = fn
	snapshot := c.snapshot()
	c.mutex.Unlock()

	fn(snapshot)
	return func() {
		c.mutex.Lock()
		defer c.mutex.Unlock()
		delete(c.subscribers, id)
	}
}

func (c *Controller[T]) publish() {
	c.mutex.Lock()
	if len(c.subscribers) == 0 {
		c.mutex.Unlock()
		return
	}
	snapshot := c.snapshot()
	subscribers := make([]func(Snapshot[T]), 0, len(c.subscribers))
	for i := 0; i < c.nextSub; i++ {
		if fn, ok := c.subscribers[i]; ok {
			subscribers = append(subscribers, fn)
		}
	}
	c.mutex.Unlock()

	for _, fn := range subscribers {
		fn(snapshot)
	}
}

// Close cancels the query in flight and drops every subscriber.
func (c *Controller[T]) Close() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.generation.Inc()
	c.closed = true
	c.subscribers = make(map[int]func(Snapshot[T]))
}
