package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"linkage/internal/domain"
	"linkage/pkg/platform/sentinel"
)

const contactColumns = `id, email, phone_number, linked_id, link_precedence, created_at, updated_at, deleted_at`

// txQueries implements contact.Tx on an open transaction.
type txQueries struct {
	tx *sql.Tx
}

func (q *txQueries) FindLiveMatching(ctx context.Context, email, phone *string) ([]domain.Contact, error) {
	// Build the disjunction from the present fields only; absent is never
	// used as a match predicate.
	var (
		conds []string
		args  []any
	)
	if email != nil {
		args = append(args, *email)
		conds = append(conds, fmt.Sprintf("email = $%d", len(args)))
	}
	if phone != nil {
		args = append(args, *phone)
		conds = append(conds, fmt.Sprintf("phone_number = $%d", len(args)))
	}
	if len(conds) == 0 {
		return nil, fmt.Errorf("%w: match called without email or phone", sentinel.ErrInvalidState)
	}

	where := conds[0]
	if len(conds) == 2 {
		where = conds[0] + " OR " + conds[1]
	}
	query := fmt.Sprintf(`
		SELECT %s FROM contacts
		WHERE (%s) AND deleted_at IS NULL
		ORDER BY created_at ASC, id ASC
	`, contactColumns, where)

	rows, err := q.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(fmt.Errorf("find matching contacts: %w", err))
	}
	defer rows.Close()
	return scanContacts(rows)
}

func (q *txQueries) FindLiveByIDs(ctx context.Context, ids []int64) ([]domain.Contact, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
		SELECT %s FROM contacts
		WHERE id = ANY($1) AND deleted_at IS NULL
		ORDER BY created_at ASC, id ASC
	`, contactColumns)

	rows, err := q.tx.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, classify(fmt.Errorf("find contacts by ids: %w", err))
	}
	defer rows.Close()
	return scanContacts(rows)
}

func (q *txQueries) FindLiveGroup(ctx context.Context, primaryID int64) ([]domain.Contact, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM contacts
		WHERE (id = $1 OR linked_id = $1) AND deleted_at IS NULL
		ORDER BY created_at ASC, id ASC
	`, contactColumns)

	rows, err := q.tx.QueryContext(ctx, query, primaryID)
	if err != nil {
		return nil, classify(fmt.Errorf("find group: %w", err))
	}
	defer rows.Close()
	return scanContacts(rows)
}

func (q *txQueries) InsertContact(ctx context.Context, email, phone *string, linkedID *int64, precedence domain.Precedence) (domain.Contact, error) {
	query := fmt.Sprintf(`
		INSERT INTO contacts (email, phone_number, linked_id, link_precedence)
		VALUES ($1, $2, $3, $4)
		RETURNING %s
	`, contactColumns)

	row := q.tx.QueryRowContext(ctx, query, nullString(email), nullString(phone), nullInt64(linkedID), string(precedence))
	inserted, err := scanContact(row)
	if err != nil {
		return domain.Contact{}, classify(fmt.Errorf("insert contact: %w", err))
	}
	return inserted, nil
}

func (q *txQueries) Demote(ctx context.Context, id, linkedID int64) error {
	query := `
		UPDATE contacts
		SET link_precedence = 'secondary', linked_id = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`
	res, err := q.tx.ExecContext(ctx, query, id, linkedID)
	if err != nil {
		return classify(fmt.Errorf("demote contact %d: %w", id, err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("demote contact %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: demote target %d is not live", sentinel.ErrInvalidState, id)
	}
	return nil
}

func (q *txQueries) RelinkChildren(ctx context.Context, fromLinkedID, toLinkedID int64) (int64, error) {
	query := `
		UPDATE contacts
		SET linked_id = $2, updated_at = now()
		WHERE linked_id = $1 AND deleted_at IS NULL
	`
	res, err := q.tx.ExecContext(ctx, query, fromLinkedID, toLinkedID)
	if err != nil {
		return 0, classify(fmt.Errorf("relink children of %d: %w", fromLinkedID, err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("relink children of %d: %w", fromLinkedID, err)
	}
	return affected, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (domain.Contact, error) {
	var (
		c         domain.Contact
		email     sql.NullString
		phone     sql.NullString
		linkedID  sql.NullInt64
		deletedAt sql.NullTime
	)
	err := row.Scan(&c.ID, &email, &phone, &linkedID, &c.Precedence, &c.CreatedAt, &c.UpdatedAt, &deletedAt)
	if err != nil {
		return domain.Contact{}, err
	}
	if email.Valid {
		c.Email = &email.String
	}
	if phone.Valid {
		c.PhoneNumber = &phone.String
	}
	if linkedID.Valid {
		c.LinkedID = &linkedID.Int64
	}
	if deletedAt.Valid {
		c.DeletedAt = &deletedAt.Time
	}
	return c, nil
}

func scanContacts(rows *sql.Rows) ([]domain.Contact, error) {
	var contacts []domain.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("iterate contacts: %w", err))
	}
	return contacts, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt64(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}
