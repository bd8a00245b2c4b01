// Package memory implements the contact store in process memory. It mirrors
// the postgres semantics — soft-delete filters, read ordering, the partial
// unique index with distinct NULLs — under a coarse lock, so reconciler
// tests run hermetically. Single-writer by lock; it does not simulate
// serialization failures.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"linkage/internal/contact"
	"linkage/internal/domain"
	"linkage/pkg/platform/sentinel"
)

type Store struct {
	mu     sync.Mutex
	rows   map[int64]domain.Contact
	nextID int64
	lastAt time.Time
	now    func() time.Time
}

// Option customizes the store, mainly for tests.
type Option func(*Store)

// WithClock replaces the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		rows:   make(map[int64]domain.Contact),
		nextID: 1,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunInTx runs fn under the store lock against a scratch copy of the rows;
// the copy replaces the live map only when fn succeeds, so a failed attempt
// leaves the graph unchanged.
func (s *Store) RunInTx(ctx context.Context, fn func(tx contact.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	scratch := &memTx{store: s, rows: make(map[int64]domain.Contact, len(s.rows)), nextID: s.nextID, lastAt: s.lastAt}
	for id, row := range s.rows {
		scratch.rows[id] = row
	}

	if err := fn(scratch); err != nil {
		return err
	}

	s.rows = scratch.rows
	s.nextID = scratch.nextID
	s.lastAt = scratch.lastAt
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Snapshot returns a copy of all rows, live and deleted, for test
// assertions on the committed graph.
func (s *Store) Snapshot() []domain.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Contact, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, row)
	}
	sortContacts(out)
	return out
}

// SoftDelete stamps deleted_at on a row. The reconciler never does this; it
// exists so tests can exercise the live-row filters.
func (s *Store) SoftDelete(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if row, ok := s.rows[id]; ok {
		at := s.now()
		row.DeletedAt = &at
		s.rows[id] = row
	}
}

type memTx struct {
	store  *Store
	rows   map[int64]domain.Contact
	nextID int64
	lastAt time.Time
}

func (t *memTx) FindLiveMatching(ctx context.Context, email, phone *string) ([]domain.Contact, error) {
	if email == nil && phone == nil {
		return nil, fmt.Errorf("%w: match called without email or phone", sentinel.ErrInvalidState)
	}
	var out []domain.Contact
	for _, row := range t.rows {
		if row.DeletedAt != nil {
			continue
		}
		emailHit := email != nil && row.Email != nil && *row.Email == *email
		phoneHit := phone != nil && row.PhoneNumber != nil && *row.PhoneNumber == *phone
		if emailHit || phoneHit {
			out = append(out, row)
		}
	}
	sortContacts(out)
	return out, nil
}

func (t *memTx) FindLiveByIDs(ctx context.Context, ids []int64) ([]domain.Contact, error) {
	var out []domain.Contact
	for _, id := range ids {
		row, ok := t.rows[id]
		if !ok || row.DeletedAt != nil {
			continue
		}
		out = append(out, row)
	}
	sortContacts(out)
	return out, nil
}

func (t *memTx) FindLiveGroup(ctx context.Context, primaryID int64) ([]domain.Contact, error) {
	var out []domain.Contact
	for _, row := range t.rows {
		if row.DeletedAt != nil {
			continue
		}
		if row.ID == primaryID || (row.LinkedID != nil && *row.LinkedID == primaryID) {
			out = append(out, row)
		}
	}
	sortContacts(out)
	return out, nil
}

func (t *memTx) InsertContact(ctx context.Context, email, phone *string, linkedID *int64, precedence domain.Precedence) (domain.Contact, error) {
	if err := t.checkUnique(email, phone, linkedID); err != nil {
		return domain.Contact{}, err
	}

	at := t.tick()
	row := domain.Contact{
		ID:          t.nextID,
		Email:       copyField(email),
		PhoneNumber: copyField(phone),
		Precedence:  precedence,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	if linkedID != nil {
		v := *linkedID
		row.LinkedID = &v
	}
	t.nextID++
	t.rows[row.ID] = row
	return row, nil
}

func (t *memTx) Demote(ctx context.Context, id, linkedID int64) error {
	row, ok := t.rows[id]
	if !ok || row.DeletedAt != nil {
		return fmt.Errorf("%w: demote target %d is not live", sentinel.ErrInvalidState, id)
	}
	v := linkedID
	row.LinkedID = &v
	row.Precedence = domain.PrecedenceSecondary
	row.UpdatedAt = t.tick()
	t.rows[id] = row
	return nil
}

func (t *memTx) RelinkChildren(ctx context.Context, fromLinkedID, toLinkedID int64) (int64, error) {
	var n int64
	at := t.tick()
	for id, row := range t.rows {
		if row.DeletedAt != nil || row.LinkedID == nil || *row.LinkedID != fromLinkedID {
			continue
		}
		v := toLinkedID
		row.LinkedID = &v
		row.UpdatedAt = at
		t.rows[id] = row
		n++
	}
	return n, nil
}

// checkUnique mirrors the partial unique index on
// (email, phone_number, linked_id) WHERE deleted_at IS NULL. NULLs are
// distinct, as under Postgres defaults: a conflict requires every column to
// be present and equal in both rows.
func (t *memTx) checkUnique(email, phone *string, linkedID *int64) error {
	if email == nil || phone == nil || linkedID == nil {
		return nil
	}
	for _, row := range t.rows {
		if row.DeletedAt != nil {
			continue
		}
		if row.Email == nil || row.PhoneNumber == nil || row.LinkedID == nil {
			continue
		}
		if *row.Email == *email && *row.PhoneNumber == *phone && *row.LinkedID == *linkedID {
			return fmt.Errorf("%w: uq_contacts_email_phone_linked", sentinel.ErrUniqueConflict)
		}
	}
	return nil
}

// tick returns a timestamp that never moves backwards and never repeats, so
// created_at ordering matches id ordering the way a sequence-backed table
// behaves.
func (t *memTx) tick() time.Time {
	at := t.store.now()
	if !at.After(t.lastAt) {
		at = t.lastAt.Add(time.Microsecond)
	}
	t.lastAt = at
	return at
}

func sortContacts(contacts []domain.Contact) {
	sort.Slice(contacts, func(i, j int) bool {
		return contacts[i].OlderThan(contacts[j])
	})
}

func copyField(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
