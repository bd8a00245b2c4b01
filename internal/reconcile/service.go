// Package reconcile implements the identity reconciliation engine: given a
// partial contact observation it returns the consolidated identity group,
// creating a primary, attaching a secondary, or merging groups as needed.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"linkage/internal/audit"
	"linkage/internal/contact"
	"linkage/internal/domain"
	"linkage/internal/platform/metrics"
	dErrors "linkage/pkg/domain-errors"
	"linkage/pkg/platform/sentinel"
)

// maxAttempts bounds the retry loop: one retry after a serialization
// failure or unique conflict, then the error surfaces.
const maxAttempts = 2

// Service orchestrates one reconciliation per call. It holds no mutable
// state between requests; the store is the single source of truth for
// ordering and conflict detection.
type Service struct {
	store    contact.Store
	recorder *audit.Recorder
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewService(store contact.Store, recorder *audit.Recorder, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{store: store, recorder: recorder, logger: logger, metrics: m}
}

// Reconcile runs the pipeline inside one serializable transaction and
// returns the consolidated payload. Inputs are assumed normalized and
// format-validated by the caller; only the at-least-one-field precondition
// is enforced here.
func (s *Service) Reconcile(ctx context.Context, email, phone *string) (ConsolidatedContact, error) {
	if email == nil && phone == nil {
		return ConsolidatedContact{}, dErrors.New(dErrors.CodeBadRequest, "at least one of email or phoneNumber must be present")
	}

	var (
		result ConsolidatedContact
		err    error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err = s.attempt(ctx, email, phone)
		if err == nil {
			return result, nil
		}
		if attempt < maxAttempts && retryable(err) {
			s.metrics.ObserveRetry()
			s.logger.WarnContext(ctx, "reconcile attempt conflicted, retrying",
				"attempt", attempt,
				"error", err.Error(),
			)
			continue
		}
		break
	}
	return ConsolidatedContact{}, translate(err)
}

// attempt is one full pass: match, resolve roots, merge, attach, respond.
// Reads are never cached across attempts; each retry sees a fresh snapshot.
func (s *Service) attempt(ctx context.Context, email, phone *string) (ConsolidatedContact, error) {
	var result ConsolidatedContact
	err := s.store.RunInTx(ctx, func(tx contact.Tx) error {
		matches, err := tx.FindLiveMatching(ctx, email, phone)
		if err != nil {
			return err
		}

		if len(matches) == 0 {
			created, err := tx.InsertContact(ctx, email, phone, nil, domain.PrecedencePrimary)
			if err != nil {
				return err
			}
			result = buildConsolidated(created, []domain.Contact{created})
			s.metrics.ObserveOutcome(string(audit.ActionCreatedPrimary))
			return s.recorder.Emit(ctx, audit.Event{
				Action:    audit.ActionCreatedPrimary,
				PrimaryID: created.ID,
			})
		}

		primaries, err := s.resolvePrimaries(ctx, tx, matches)
		if err != nil {
			return err
		}

		plan := planMerge(primaries)
		if len(plan.losers) > 0 {
			if err := plan.apply(ctx, tx); err != nil {
				return err
			}
		}

		group, err := tx.FindLiveGroup(ctx, plan.survivor.ID)
		if err != nil {
			return err
		}

		attached, err := s.maybeAttach(ctx, tx, plan.survivor.ID, group, email, phone)
		if err != nil {
			return err
		}
		if attached != nil {
			// The new secondary carries the latest created_at, so
			// appending preserves the group's traversal order.
			group = append(group, *attached)
		}

		survivor, ok := findByID(group, plan.survivor.ID)
		if !ok {
			return fmt.Errorf("%w: survivor %d missing from its own group", sentinel.ErrInvalidState, plan.survivor.ID)
		}
		result = buildConsolidated(survivor, group)

		event := audit.Event{Action: audit.ActionNoop, PrimaryID: survivor.ID}
		if attached != nil {
			event.Action = audit.ActionAttachedSecondary
			event.SecondaryID = &attached.ID
		}
		if len(plan.losers) > 0 {
			event.Action = audit.ActionMergedGroups
			for _, loser := range plan.losers {
				event.MergedIDs = append(event.MergedIDs, loser.ID)
			}
			s.metrics.ObserveMergedPrimaries(len(plan.losers))
		}
		s.metrics.ObserveOutcome(string(event.Action))
		return s.recorder.Emit(ctx, event)
	})
	return result, err
}

// resolvePrimaries fetches the distinct root primaries of the matches. A
// root that is missing or not actually a primary is a broken graph
// invariant, surfaced as a non-retryable internal error.
func (s *Service) resolvePrimaries(ctx context.Context, tx contact.Tx, matches []domain.Contact) ([]domain.Contact, error) {
	ids := rootIDs(matches)
	primaries, err := tx.FindLiveByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(primaries) != len(ids) {
		return nil, fmt.Errorf("%w: dangling linked_id among %d matched roots", sentinel.ErrInvalidState, len(ids))
	}
	for _, p := range primaries {
		if !p.IsPrimary() {
			return nil, fmt.Errorf("%w: contact %d is referenced as a root but is secondary", sentinel.ErrInvalidState, p.ID)
		}
	}
	return primaries, nil
}

// maybeAttach inserts a secondary when the request carries an email or
// phone the group does not already hold. The row stores the request's pair
// verbatim, including an absent or already-known companion field. An exact
// duplicate or a request with nothing new is a no-op.
func (s *Service) maybeAttach(ctx context.Context, tx contact.Tx, survivorID int64, group []domain.Contact, email, phone *string) (*domain.Contact, error) {
	newEmail := email != nil
	newPhone := phone != nil
	for _, row := range group {
		if newEmail && row.Email != nil && *row.Email == *email {
			newEmail = false
		}
		if newPhone && row.PhoneNumber != nil && *row.PhoneNumber == *phone {
			newPhone = false
		}
	}
	if !newEmail && !newPhone {
		return nil, nil
	}

	created, err := tx.InsertContact(ctx, email, phone, &survivorID, domain.PrecedenceSecondary)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func findByID(group []domain.Contact, id int64) (domain.Contact, bool) {
	for _, row := range group {
		if row.ID == id {
			return row, true
		}
	}
	return domain.Contact{}, false
}

// retryable reports whether a fresh attempt could succeed: another writer
// got there first (unique conflict) or the store aborted the interleaving.
func retryable(err error) bool {
	return errors.Is(err, sentinel.ErrUniqueConflict) || errors.Is(err, sentinel.ErrSerialization)
}

// translate maps store sentinels onto the coded error surface.
func translate(err error) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return de
	}
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, sentinel.ErrUniqueConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "reconciliation lost a write race twice")
	case errors.Is(err, sentinel.ErrSerialization):
		return dErrors.Wrap(err, dErrors.CodeSerialization, "reconciliation conflicted twice")
	case errors.Is(err, sentinel.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "reconciliation exceeded its time bound")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeInternal, "contact graph invariant broken")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "contact store unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "reconciliation failed")
	}
}
