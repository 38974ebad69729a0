package domain

import "strings"

// Actor is the authenticated caller resolved by the auth layer.
type Actor struct {
	ID    string
	Email string
}

func (a Actor) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return InvalidArgument("user id is required")
	}
	if err := checkLength("user id", a.ID, MaxUserIDLength); err != nil {
		return err
	}
	return checkLength("user email", a.Name(), MaxActorNameLength)
}

// Name is what audit fields record for the actor.
func (a Actor) Name() string {
	if a.Email != "" {
		return a.Email
	}
	return a.ID
}
