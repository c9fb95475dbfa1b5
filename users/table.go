package users

import (
	"context"
	"sync"

	"github.com/mangoautomation/dashboard-data-apis/config"
	"github.com/mangoautomation/dashboard-data-apis/notify"
	"github.com/mangoautomation/dashboard-data-apis/query"
	"github.com/mangoautomation/dashboard-data-apis/rest"
	"github.com/mangoautomation/dashboard-data-apis/settings"
	"github.com/mangoautomation/dashboard-data-apis/table"
)

// Table is the user table. Users are identified by username.
type Table struct {
	*table.Controller[User]

	mutex sync.Mutex
	roles []string
}

func NewTable(cfg config.Config, client *rest.Client[User], store settings.Store, notifier notify.Notifier) (*Table, error) {
	t := &Table{}
	controller, err := table.NewController[User](cfg, table.Options[User]{
		StorageKey:     StorageKey,
		DefaultColumns: DefaultColumns(),
		DefaultSort:    DefaultSort(),
		SelectMultiple: true,
		IDFunc:         func(u User) string { return u.Username },
		IDColumn:       "username",
		Fetch:          table.FetchFrom(client),
		CustomizeQuery: t.customizeQuery,
		Store:          store,
		Notifier:       notifier,
	})
	if err != nil {
		return nil, err
	}
	t.Controller = controller
	return t, nil
}

// SetRoles restricts the table to users holding every given role, cached pages are dropped and
// an initialized table reloads.
func (t *Table) SetRoles(ctx context.Context, roles []string) error {
	t.mutex.Lock()
	t.roles = append([]string(nil), roles...)
	t.mutex.Unlock()

	t.Invalidate()
	if t.Snapshot().State < table.Ready {
		return nil
	}
	return t.Reload(ctx)
}

func (t *Table) Roles() []string {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return append([]string(nil), t.roles...)
}

func (t *Table) customizeQuery(b *query.Builder) error {
	for _, role := range t.Roles() {
		b.Contains("inheritedRoles", role)
	}
	return nil
}
