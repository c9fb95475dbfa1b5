package publisher

import (
	"context"

	"github.com/mangoautomation/dashboard-data-apis/bulk"
	"github.com/mangoautomation/dashboard-data-apis/config"
	"github.com/mangoautomation/dashboard-data-apis/live"
	"github.com/mangoautomation/dashboard-data-apis/log"
	"github.com/mangoautomation/dashboard-data-apis/notify"
	"github.com/mangoautomation/dashboard-data-apis/query"
	"github.com/mangoautomation/dashboard-data-apis/rest"
	e "github.com/mangoautomation/dashboard-data-apis/rest/errors"
	m "github.com/mangoautomation/dashboard-data-apis/rest/models"
	"github.com/mangoautomation/dashboard-data-apis/settings"
	"github.com/mangoautomation/dashboard-data-apis/table"
)

// PointsEditor edits the points of one publisher. Pending changes are kept by the bulk editor
// keyed by point xid, the table shows the saved points with the pending changes applied and the
// unsaved points first.
type PointsEditor struct {
	publisherXID  string
	publisherType PublisherType
	client        *rest.Client[PublisherPoint]
	logger        log.Logger

	table *table.Controller[PublisherPoint]
	edits *bulk.Editor[PublisherPoint]
}

// NewPointsEditor creates the editor of a publisher's points. An empty publisherXID is a publisher
// that was not saved yet, it has no published points so the server is not queried.
func NewPointsEditor(cfg config.Config, publisherXID string, publisherType PublisherType,
	client *rest.Client[PublisherPoint], store settings.Store, notifier notify.Notifier) (*PointsEditor, error) {
	p := &PointsEditor{
		publisherXID:  publisherXID,
		publisherType: publisherType,
		client:        client,
		logger:        cfg.Logger(),
		edits:         bulk.NewEditor[PublisherPoint](cfg, client, notifier),
	}

	controller, err := table.NewController[PublisherPoint](cfg, table.Options[PublisherPoint]{
		StorageKey:      StorageKey,
		DefaultColumns:  Columns(publisherType),
		SelectMultiple:  true,
		DisableSortByID: true,
		IDFunc:          func(point PublisherPoint) string { return point.XID },
		Fetch:           p.fetch,
		CustomizeQuery:  p.customizeQuery,
		Store:           store,
		Notifier:        notifier,
	})
	if err != nil {
		return nil, err
	}
	p.table = controller
	return p, nil
}

func (p *PointsEditor) Table() *table.Controller[PublisherPoint] {
	return p.table
}

func (p *PointsEditor) Edits() *bulk.Editor[PublisherPoint] {
	return p.edits
}

func (p *PointsEditor) Init(ctx context.Context) error {
	return p.table.Init(ctx)
}

func (p *PointsEditor) Close() {
	p.table.Close()
}

func (p *PointsEditor) customizeQuery(b *query.Builder) error {
	if p.publisherXID != "" {
		b.Eq("publisherXid", p.publisherXID)
	}
	return nil
}

// fetch queries the saved points and overlays the pending edits: unsaved points are listed first
// on the first page, updated points show their pending value and removed points are hidden.
func (p *PointsEditor) fetch(ctx context.Context, expr query.Expression) (m.Page[PublisherPoint], error) {
	var page m.Page[PublisherPoint]
	if p.publisherXID != "" {
		var err error
		if page, err = p.client.Query(ctx, expr); err != nil {
			return page, err
		}
	}

	pending := make(map[string]bulk.Edit[PublisherPoint])
	var unsaved []PublisherPoint
	for _, edit := range p.edits.Pending() {
		if edit.Action() == m.ActionCreate {
			unsaved = append(unsaved, edit.Row)
			continue
		}
		pending[edit.OriginalXID] = edit
	}

	items := make([]PublisherPoint, 0, len(page.Items)+len(unsaved))
	if expr.Offset == 0 {
		items = append(items, unsaved...)
	}
	total := page.Total + len(unsaved)
	for _, point := range page.Items {
		edit, ok := pending[point.XID]
		switch {
		case !ok:
			items = append(items, point)
		case edit.Remove:
			total--
		default:
			items = append(items, edit.Row)
		}
	}
	return m.Page[PublisherPoint]{Items: items, Total: total}, nil
}

func (p *PointsEditor) newPoint(dataPointXID string) PublisherPoint {
	point := PublisherPoint{
		XID:          NewXID(),
		Name:         dataPointXID,
		Enabled:      true,
		DataPointXID: dataPointXID,
		PublisherXID: p.publisherXID,
		ModelType:    p.publisherType.Type,
	}
	for _, property := range p.publisherType.PointProperties {
		if property.DefaultValue == nil {
			continue
		}
		if point.Properties == nil {
			point.Properties = make(map[string]interface{})
		}
		point.Properties[property.Name] = property.DefaultValue
	}
	return point
}

// AddPoints publishes data points. A data point that already has an unsaved publisher point keeps
// it, the others get a new one. The returned points are in the order of dataPointXIDs.
func (p *PointsEditor) AddPoints(ctx context.Context, dataPointXIDs ...string) ([]PublisherPoint, error) {
	byDataPoint := make(map[string]PublisherPoint)
	for _, edit := range p.edits.Pending() {
		if edit.Action() == m.ActionCreate {
			byDataPoint[edit.Row.DataPointXID] = edit.Row
		}
	}

	points := make([]PublisherPoint, 0, len(dataPointXIDs))
	for _, dataPointXID := range dataPointXIDs {
		point, ok := byDataPoint[dataPointXID]
		if !ok {
			point = p.newPoint(dataPointXID)
			byDataPoint[dataPointXID] = point
			p.edits.Stage(bulk.Edit[PublisherPoint]{Key: point.XID, Row: point})
		}
		points = append(points, point)
	}
	return points, p.refresh(ctx)
}

// UpdatePoint stages a changed point. The xid of a point cannot change.
func (p *PointsEditor) UpdatePoint(ctx context.Context, point PublisherPoint) error {
	if point.XID == "" {
		return e.NewPreconditionError("publisher point has no xid")
	}
	edit := bulk.Edit[PublisherPoint]{Key: point.XID, OriginalXID: point.XID, Row: point}
	if existing, ok := p.pending(point.XID); ok {
		edit.OriginalXID = existing.OriginalXID
	}
	p.edits.Stage(edit)
	p.table.ApplyUpdate(point.XID, point)
	return nil
}

// SetValue edits one cell of a point.
func (p *PointsEditor) SetValue(ctx context.Context, point PublisherPoint, column string, value interface{}) (PublisherPoint, error) {
	updated, err := point.WithValue(column, value)
	if err != nil {
		return point, err
	}
	return updated, p.UpdatePoint(ctx, updated)
}

// RemovePoint drops an unsaved point, or stages the deletion of a saved one.
func (p *PointsEditor) RemovePoint(ctx context.Context, point PublisherPoint) error {
	if !p.edits.MarkRemoved(point.XID) {
		p.edits.Stage(bulk.Edit[PublisherPoint]{Key: point.XID, OriginalXID: point.XID, Row: point, Remove: true})
	}
	p.table.ApplyDelete(point.XID)
	return nil
}

func (p *PointsEditor) pending(key string) (bulk.Edit[PublisherPoint], bool) {
	for _, edit := range p.edits.Pending() {
		if edit.Key == key {
			return edit, true
		}
	}
	return bulk.Edit[PublisherPoint]{}, false
}

// Save submits the pending edits as one bulk task and reloads the table once it is done. Edits
// that failed stay pending with their messages.
func (p *PointsEditor) Save(ctx context.Context, progress bulk.ProgressFunc) (*bulk.Outcome[PublisherPoint], error) {
	outcome, err := p.edits.Submit(ctx, progress)
	if err != nil {
		return outcome, err
	}
	return outcome, p.refresh(ctx)
}

// HandleEvent applies a live notification of the published points collection. Points of other
// publishers are ignored.
func (p *PointsEditor) HandleEvent(event live.Event) {
	err := live.Dispatch[PublisherPoint](event, func(xid string, point PublisherPoint) {
		if point.PublisherXID != p.publisherXID {
			return
		}
		if edit, ok := p.pending(xid); ok && !edit.Remove {
			// the local edit wins until it is saved or discarded
			return
		}
		if !p.table.ApplyUpdate(xid, point) && event.Type == live.Add {
			p.table.Invalidate()
		}
	}, func(xid string) {
		p.edits.Unstage(xid)
		p.table.ApplyDelete(xid)
	})
	if err != nil {
		p.logger.Warn("unable to decode published point notification", "xid", event.XID, "error", err)
	}
}

// Watch applies live notifications until ctx ends.
func (p *PointsEditor) Watch(ctx context.Context, client *live.Client) error {
	return client.Subscribe(ctx, p.HandleEvent)
}

func (p *PointsEditor) refresh(ctx context.Context) error {
	p.table.Invalidate()
	if p.table.Snapshot().State < table.Ready {
		return nil
	}
	return p.table.Reload(ctx)
}
