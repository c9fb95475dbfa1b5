package config

import (
	"fmt"
	"strings"
)

// Actions is the set of bulk actions the client is allowed to submit.
type Actions int

const (
	CreateAction Actions = 1 << iota
	UpdateAction
	DeleteAction
)

const AllActions = CreateAction | UpdateAction | DeleteAction

func ParseActions(actions ...string) (Actions, error) {
	var a Actions
	err := a.Add(actions...)
	return a, err
}

func (a *Actions) Set(actions Actions)             { *a |= actions }
func (a *Actions) Clear(actions Actions)           { *a &= ^actions }
func (a Actions) IsSupported(actions Actions) bool { return a&actions == actions }

func (a *Actions) Add(actions ...string) error {
	for _, action := range actions {
		switch strings.ToUpper(strings.TrimSpace(action)) {
		case "CREATE":
			a.Set(CreateAction)
		case "UPDATE":
			a.Set(UpdateAction)
		case "DELETE":
			a.Set(DeleteAction)
		default:
			return fmt.Errorf("invalid bulk action: %s", action)
		}
	}
	return nil
}

// ActionFor maps a wire action name to its flag, zero when the name is unknown.
func ActionFor(name string) Actions {
	var a Actions
	if err := a.Add(name); err != nil {
		return 0
	}
	return a
}
