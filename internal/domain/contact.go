package domain

import "time"

// Precedence marks a contact's position in its identity group.
type Precedence string

const (
	PrecedencePrimary   Precedence = "primary"
	PrecedenceSecondary Precedence = "secondary"
)

// Contact is one (email, phone) observation of a person plus its position in
// the identity graph. Live contacts form a forest of depth one: primaries are
// roots, secondaries point at a primary via LinkedID.
type Contact struct {
	ID          int64
	Email       *string
	PhoneNumber *string
	LinkedID    *int64
	Precedence  Precedence
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

func (c Contact) IsPrimary() bool {
	return c.Precedence == PrecedencePrimary
}

// RootID returns the id of the primary this contact belongs to: its own id
// for a primary, LinkedID for a secondary.
func (c Contact) RootID() int64 {
	if c.LinkedID != nil {
		return *c.LinkedID
	}
	return c.ID
}

// SamePair reports whether the contact stores exactly the given
// (email, phone) observation, treating absent fields as equal to absent.
func (c Contact) SamePair(email, phone *string) bool {
	return EqualField(c.Email, email) && EqualField(c.PhoneNumber, phone)
}

// EqualField compares two optional fields; two absent values are equal.
func EqualField(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// OlderThan orders contacts by seniority: ascending CreatedAt, ties broken
// by the lower id. The merge survivor is the minimum under this order.
func (c Contact) OlderThan(other Contact) bool {
	if c.CreatedAt.Equal(other.CreatedAt) {
		return c.ID < other.ID
	}
	return c.CreatedAt.Before(other.CreatedAt)
}
