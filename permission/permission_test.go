package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mangoautomation/dashboard-data-apis/config"
	"github.com/mangoautomation/dashboard-data-apis/settings"
)

func TestMinterm(t *testing.T) {
	term := NewMinterm("user", "operators", " user ", "")
	assert.Equal(t, []string{"operators", "user"}, term.Roles())
	assert.Equal(t, 2, term.Size())
	assert.True(t, term.Contains("user"))
	assert.False(t, term.Contains("superadmin"))
	assert.Equal(t, "operators & user", term.String())

	items := []struct {
		a, b     Minterm
		expected bool
	}{
		{NewMinterm("a", "b"), NewMinterm("b", "a"), true},
		{NewMinterm("a"), NewMinterm("a", "b"), false},
		{NewMinterm("a", "c"), NewMinterm("a", "b"), false},
		{NewMinterm(), Minterm{}, true},
	}
	for _, item := range items {
		assert.Equal(t, item.expected, item.a.Equal(item.b), "%s == %s", item.a, item.b)
	}
}

func TestPermissionAllows(t *testing.T) {
	p := ParsePermission([][]string{{"operators", "user"}, {"admins"}, {}})
	assert.Len(t, p, 2)

	items := []struct {
		roles    []string
		expected bool
	}{
		{[]string{"user"}, false},
		{[]string{"user", "operators"}, true},
		{[]string{"admins"}, true},
		{[]string{"superadmin"}, true},
		{nil, false},
	}
	for _, item := range items {
		assert.Equal(t, item.expected, p.Allows(item.roles...), "%v", item.roles)
	}
}

func TestPermissionAddRemove(t *testing.T) {
	p := Permission{}.Add(NewMinterm("a")).Add(NewMinterm("b", "c")).Add(NewMinterm("c", "b"))
	assert.Equal(t, [][]string{{"a"}, {"b", "c"}}, p.ToArray())

	p = p.Remove(NewMinterm("a"))
	assert.Equal(t, [][]string{{"b", "c"}}, p.ToArray())
	assert.Equal(t, p, p.Remove(NewMinterm("x")))
}

func newContainer(store settings.Store) *Container {
	return NewContainer(config.NewConfigMock().Default(), store)
}

func TestContainerDefaults(t *testing.T) {
	c := newContainer(settings.NewMemoryStore())
	assert.Equal(t, [][]string{{"superadmin"}, {"user"}}, c.Columns().ToArray())
	assert.False(t, c.AdvancedMode())
	assert.Equal(t, []string{"superadmin", "user"}, c.DisabledRoles())
}

func TestContainerWritesThrough(t *testing.T) {
	store := settings.NewMemoryStore()
	c := newContainer(store)

	var rendered []Permission
	deregister := c.Register(func(columns Permission) {
		rendered = append(rendered, columns)
	})

	added, err := c.AddColumn(NewMinterm("user", "operators"))
	require.NoError(t, err)
	assert.True(t, added)

	added, err = c.AddColumn(NewMinterm("operators", "user"))
	require.NoError(t, err)
	assert.False(t, added)

	removed, err := c.RemoveColumn(NewMinterm("superadmin"))
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Len(t, rendered, 2)
	assert.Equal(t, []string{"user"}, c.DisabledRoles())

	deregister()
	_, err = c.AddColumn(NewMinterm("admins"))
	require.NoError(t, err)
	assert.Len(t, rendered, 2)

	var saved Settings
	found, err := store.Load(StorageKey, &saved)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, [][]string{{"user"}, {"operators", "user"}, {"admins"}}, saved.Minterms)

	reloaded := newContainer(store)
	assert.Equal(t, c.Columns(), reloaded.Columns())
}

func TestContainerRolesChanged(t *testing.T) {
	store := settings.NewMemoryStore()
	c := newContainer(store)

	added, err := c.RolesChanged([]string{"operators"})
	require.NoError(t, err)
	assert.True(t, added)

	added, err = c.RolesChanged(nil)
	require.NoError(t, err)
	assert.False(t, added)

	require.NoError(t, c.SetAdvancedMode(true))
	added, err = c.RolesChanged([]string{"admins"})
	require.NoError(t, err)
	assert.False(t, added)
	assert.Len(t, c.Columns(), 3)

	assert.True(t, newContainer(store).AdvancedMode())
}

func TestContainerInvalidSettings(t *testing.T) {
	items := []struct {
		name  string
		value interface{}
	}{
		{"wrong type", map[string]interface{}{"minterms": [][]string{{"a"}}, "advancedMode": "maybe"}},
		{"missing minterms", map[string]interface{}{"advancedMode": true}},
		{"not an object", []string{"a"}},
	}

	for _, item := range items {
		store := settings.NewMemoryStore()
		require.NoError(t, store.Save(StorageKey, item.value))
		c := newContainer(store)
		assert.Equal(t, DefaultSettings().Minterms, c.Columns().ToArray(), item.name)
	}
}
