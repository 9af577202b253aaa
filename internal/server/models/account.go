// Package models defines the server-side data persisted in the database and
// the views handed back to callers.
package models

import "time"

// Account is the user record owned by the account store.
type Account struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// AccountView is what callers get to see about an account. It never carries
// credential material.
type AccountView struct {
	ID    string `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
}

// NewAccountView joins an account with its credential login.
func NewAccountView(a *Account, login string) *AccountView {
	return &AccountView{ID: a.ID, Login: login, Name: a.Name}
}

// AccountUpdate lists the account fields a caller may change. Nil fields are
// left as they are.
type AccountUpdate struct {
	Name *string `json:"name" validate:"omitempty,min=1,max=100"`
}

// IsEmpty reports whether the update changes nothing.
func (u AccountUpdate) IsEmpty() bool {
	return u.Name == nil
}

// Apply merges the update into a copy of a and returns it.
func (u AccountUpdate) Apply(a Account) Account {
	if u.Name != nil {
		a.Name = *u.Name
	}
	return a
}
