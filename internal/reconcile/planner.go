package reconcile

import (
	"context"
	"sort"

	"linkage/internal/contact"
	"linkage/internal/domain"
)

// mergePlan names the survivor of a multi-primary collision and the
// primaries to be demoted under it.
type mergePlan struct {
	survivor domain.Contact
	losers   []domain.Contact
}

// planMerge selects the survivor by seniority: lowest created_at, ties
// broken by the lower id. The rest are losers, processed oldest first; the
// order does not change the final state since re-parenting is idempotent.
func planMerge(primaries []domain.Contact) mergePlan {
	sorted := make([]domain.Contact, len(primaries))
	copy(sorted, primaries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OlderThan(sorted[j])
	})
	return mergePlan{survivor: sorted[0], losers: sorted[1:]}
}

// apply demotes every loser to a secondary of the survivor and re-parents
// the loser's children. Depth stays one at every step: children move
// directly to the survivor, never through the demoted loser.
func (p mergePlan) apply(ctx context.Context, tx contact.Tx) error {
	for _, loser := range p.losers {
		if err := tx.Demote(ctx, loser.ID, p.survivor.ID); err != nil {
			return err
		}
		if _, err := tx.RelinkChildren(ctx, loser.ID, p.survivor.ID); err != nil {
			return err
		}
	}
	return nil
}
