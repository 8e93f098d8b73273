package identity

import "time"

// User represents a wallet owner. Rows originate from a verified identity
// supplied by the upstream consent flow; this service never runs that flow.
type User struct {
	ID        string
	Subject   string
	Email     string
	Name      string
	CreatedAt time.Time
}

// Identity is the trusted output of the external authentication collaborator.
type Identity struct {
	Subject string
	Email   string
	Name    string
}
