package permission

import (
	"sync"

	"github.com/mitchellh/mapstructure"

	"github.com/mangoautomation/dashboard-data-apis/config"
	"github.com/mangoautomation/dashboard-data-apis/log"
	"github.com/mangoautomation/dashboard-data-apis/settings"
)

const StorageKey = "maPermissionEditorContainer"

// Settings is the persisted layout of the permission editors, shared by every editor of a user.
type Settings struct {
	Minterms     [][]string `json:"minterms" mapstructure:"minterms"`
	AdvancedMode bool       `json:"advancedMode" mapstructure:"advancedMode"`
}

func DefaultSettings() Settings {
	return Settings{
		Minterms: [][]string{{SuperadminRole}, {"user"}},
	}
}

// RenderFunc redraws an editor with the current columns.
type RenderFunc func(columns Permission)

// Container holds the minterm columns shown by all permission editors. Every change is written
// through to the store and redraws the registered editors.
type Container struct {
	store  settings.Store
	key    string
	logger log.Logger

	mutex        sync.Mutex
	columns      Permission
	advancedMode bool
	editors      map[int]RenderFunc
	nextEditor   int
}

func NewContainer(cfg config.Config, store settings.Store) *Container {
	if store == nil {
		store = settings.NewMemoryStore()
	}
	c := &Container{
		store:   store,
		key:     cfg.Naming().ToStorageKey(StorageKey),
		logger:  cfg.Logger(),
		editors: make(map[int]RenderFunc),
	}
	s := c.load()
	c.columns = ParsePermission(s.Minterms)
	c.advancedMode = s.AdvancedMode
	return c
}

// load decodes the stored settings leniently, anything unreadable yields the defaults.
func (c *Container) load() Settings {
	var raw map[string]interface{}
	found, err := c.store.Load(c.key, &raw)
	if err != nil {
		c.logger.Warn("unable to load permission editor settings", "key", c.key, "error", err)
		return DefaultSettings()
	}
	if !found || raw == nil {
		return DefaultSettings()
	}

	var s Settings
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &s,
	})
	if err == nil {
		err = decoder.Decode(raw)
	}
	if err != nil || s.Minterms == nil {
		c.logger.Warn("discarding invalid permission editor settings", "key", c.key, "error", err)
		return DefaultSettings()
	}
	return s
}

func (c *Container) settings() Settings {
	return Settings{Minterms: c.columns.ToArray(), AdvancedMode: c.advancedMode}
}

// Columns returns the minterm columns in display order.
func (c *Container) Columns() Permission {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append(Permission(nil), c.columns...)
}

func (c *Container) AdvancedMode() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.advancedMode
}

// DisabledRoles returns the roles already shown as a single-role column, they are not offered
// again when picking roles.
func (c *Container) DisabledRoles() []string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	var roles []string
	for _, t := range c.columns {
		if t.Size() == 1 {
			roles = append(roles, t.roles[0])
		}
	}
	return roles
}

// AddColumn appends a column for the minterm. It reports false without saving when an equal column
// exists.
func (c *Container) AddColumn(t Minterm) (bool, error) {
	return c.change(func() bool {
		if t.Size() == 0 || c.columns.Has(t) {
			return false
		}
		c.columns = c.columns.Add(t)
		return true
	})
}

func (c *Container) RemoveColumn(t Minterm) (bool, error) {
	return c.change(func() bool {
		if !c.columns.Has(t) {
			return false
		}
		c.columns = c.columns.Remove(t)
		return true
	})
}

// RolesChanged adds the picked roles as one column, unless in advanced mode where minterms are
// edited per cell instead.
func (c *Container) RolesChanged(roles []string) (bool, error) {
	if c.AdvancedMode() || len(roles) == 0 {
		return false, nil
	}
	return c.AddColumn(NewMinterm(roles...))
}

func (c *Container) SetAdvancedMode(enabled bool) error {
	c.mutex.Lock()
	c.advancedMode = enabled
	s := c.settings()
	c.mutex.Unlock()
	return c.store.Save(c.key, s)
}

// Register adds an editor that is redrawn after every column change.
func (c *Container) Register(render RenderFunc) (deregister func()) {
	c.mutex.Lock()
	id := c.nextEditor
	c.nextEditor++
	c.editors[id] = render
	c.mutex.Unlock()

	return func() {
		c.mutex.Lock()
		delete(c.editors, id)
		c.mutex.Unlock()
	}
}

func (c *Container) change(apply func() bool) (bool, error) {
	c.mutex.Lock()
	if !apply() {
		c.mutex.Unlock()
		return false, nil
	}
	s := c.settings()
	columns := append(Permission(nil), c.columns...)
	editors := make([]RenderFunc, 0, len(c.editors))
	for _, render := range c.editors {
		editors = append(editors, render)
	}
	c.mutex.Unlock()

	for _, render := range editors {
		render(columns)
	}
	return true, c.store.Save(c.key, s)
}
