// Package users lists Mango users, optionally restricted to the holders of some roles.
package users

import (
	"time"

	"github.com/mangoautomation/dashboard-data-apis/query"
	"github.com/mangoautomation/dashboard-data-apis/table"
)

const (
	Collection = "users"
	StorageKey = "userTable"
)

type User struct {
	Username              string     `json:"username"`
	Name                  string     `json:"name,omitempty"`
	Email                 string     `json:"email,omitempty"`
	Phone                 string     `json:"phone,omitempty"`
	Organization          string     `json:"organization,omitempty"`
	OrganizationalRole    string     `json:"organizationalRole,omitempty"`
	Roles                 []string   `json:"roles,omitempty"`
	InheritedRoles        []string   `json:"inheritedRoles,omitempty"`
	Disabled              bool       `json:"disabled"`
	Muted                 bool       `json:"muted"`
	Created               *time.Time `json:"created,omitempty"`
	EmailVerified         *time.Time `json:"emailVerified,omitempty"`
	LastLogin             *time.Time `json:"lastLogin,omitempty"`
	LastPasswordChange    *time.Time `json:"lastPasswordChange,omitempty"`
	PasswordLocked        bool       `json:"passwordLocked"`
	Locale                string     `json:"locale,omitempty"`
	Timezone              string     `json:"timezone,omitempty"`
	HomeURL               string     `json:"homeUrl,omitempty"`
	ReceiveAlarmEmails    string     `json:"receiveAlarmEmails,omitempty"`
	ReceiveOwnAuditEvents bool       `json:"receiveOwnAuditEvents"`
}

// HasRole reports whether the user holds role, directly or inherited.
func (u User) HasRole(role string) bool {
	for _, r := range u.InheritedRoles {
		if r == role {
			return true
		}
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func column(name, label string, dataType query.DataType, flags table.ColumnFlags) table.Column {
	return table.Column{Name: name, Label: label, Type: dataType, Flags: flags}
}

// DefaultColumns returns the columns of the user table, username, name and email are shown
// unless the user picks others.
func DefaultColumns() []table.Column {
	const both = table.Sortable | table.Filterable
	return []table.Column{
		column("username", "users.username", query.String, both|table.SelectedByDefault),
		column("name", "users.name", query.String, both|table.SelectedByDefault),
		column("email", "users.email", query.String, both|table.SelectedByDefault),
		column("phone", "users.phone", query.String, both),
		column("organization", "users.organization", query.String, both),
		column("organizationalRole", "users.organizationalRole", query.String, both),
		column("roles", "users.roles", query.Array, table.Filterable),
		column("disabled", "common.disabled", query.Boolean, both),
		column("muted", "users.muted", query.Boolean, both),
		column("created", "ui.app.userCreated", query.Date, both),
		column("emailVerified", "ui.app.userEmailVerified", query.Date, both),
		column("lastLogin", "ui.app.lastLoginStatic", query.Date, both),
		column("lastPasswordChange", "ui.app.lastPasswordChangeStatic", query.Date, both),
		column("passwordLocked", "users.passwordLocked", query.Boolean, 0),
		column("locale", "users.locale", query.String, both),
		column("timezone", "users.timezone", query.String, both),
		column("homeUrl", "users.homeURL", query.String, both),
		column("receiveAlarmEmails", "users.receiveAlarmEmails", query.Enum, both),
		column("receiveOwnAuditEvents", "users.receiveOwnAuditEvents", query.Boolean, both),
	}
}

func DefaultSort() []query.Sort {
	return []query.Sort{{Column: "username"}}
}
