package models

import "strings"

// Actor identifies the caller of a privileged operation
type Actor struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

// SystemActor is used for scheduled jobs that run without an operator session
var SystemActor = Actor{ID: "system", Email: "scheduler@localhost", Roles: []string{"system"}}

// HasAnyRole reports whether the actor holds one of the given roles (case-insensitive)
func (a Actor) HasAnyRole(roles []string) bool {
	for _, have := range a.Roles {
		for _, want := range roles {
			if strings.EqualFold(strings.TrimSpace(have), strings.TrimSpace(want)) {
				return true
			}
		}
	}
	return false
}

// IsSystem reports whether this is the scheduler actor
func (a Actor) IsSystem() bool {
	return a.ID == SystemActor.ID
}
