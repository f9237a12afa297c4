// Package authz derives the actions a role may take on a wiki page. It holds
// no state and is evaluated identically by the server and the client SDK.
package authz

import (
	"github.com/google/uuid"
)

type Role string

const (
	Viewer Role = "Viewer"
	Editor Role = "Editor"
	Admin  Role = "Admin"
)

type Action string

const (
	ActionView      Action = "view"
	ActionCreate    Action = "create"
	ActionEdit      Action = "edit"
	ActionDelete    Action = "delete"
	ActionPublish   Action = "publish"
	ActionUnpublish Action = "unpublish"
)

// Actions lists every action in a stable order.
var Actions = []Action{ActionView, ActionCreate, ActionEdit, ActionDelete, ActionPublish, ActionUnpublish}

// Entry is the part of a page the gate looks at.
type Entry struct {
	AuthorID  uuid.UUID
	Published bool
}

func (r Role) author() bool {
	return r == Editor || r == Admin
}

// Can reports whether an account with role acting as actor may perform
// action on entry. Entry may be nil for ActionCreate. Unknown roles are
// treated as Viewer.
func Can(role Role, action Action, entry *Entry, actor uuid.UUID) bool {
	switch action {
	case ActionView:
		if entry == nil {
			return false
		}
		return entry.Published || role.author()
	case ActionCreate, ActionEdit, ActionPublish, ActionUnpublish:
		return role.author()
	case ActionDelete:
		if role == Admin {
			return true
		}
		return role == Editor && entry != nil && actor != uuid.Nil && entry.AuthorID == actor
	}
	return false
}

// Permitted returns the subset of Actions allowed on entry.
func Permitted(role Role, entry *Entry, actor uuid.UUID) []Action {
	var out []Action
	for _, a := range Actions {
		if Can(role, a, entry, actor) {
			out = append(out, a)
		}
	}
	return out
}
