package domain

import "time"

// Identity is the authenticated context attached to a connection. The zero
// value is an anonymous identity.
type Identity struct {
	UserID    string `json:"id"`
	Role      string `json:"role"`
	Email     string `json:"-"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func Anonymous() Identity { return Identity{} }

func (i Identity) Authenticated() bool { return i.UserID != "" }

// Summary is the public view broadcast with presence events.
func (i Identity) Summary() IdentitySummary {
	return IdentitySummary{UserID: i.UserID, FirstName: i.FirstName, LastName: i.LastName}
}

type IdentitySummary struct {
	UserID    string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// OnlineIdentity is one entry of the presence listing.
type OnlineIdentity struct {
	IdentitySummary
	Connections int       `json:"connections"`
	ConnectedAt time.Time `json:"connectedAt"`
}
