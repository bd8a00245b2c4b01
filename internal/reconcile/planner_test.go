package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"linkage/internal/domain"
)

func primaryRow(id int64, createdAt time.Time) domain.Contact {
	email := "p@t.io"
	return domain.Contact{ID: id, Email: &email, Precedence: domain.PrecedencePrimary, CreatedAt: createdAt}
}

func TestPlanMergeSelectsOldestSurvivor(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	plan := planMerge([]domain.Contact{
		primaryRow(5, base.Add(time.Hour)),
		primaryRow(2, base),
		primaryRow(9, base.Add(2*time.Hour)),
	})

	assert.Equal(t, int64(2), plan.survivor.ID)
	assert.Equal(t, []int64{5, 9}, []int64{plan.losers[0].ID, plan.losers[1].ID}, "losers ordered oldest first")
}

func TestPlanMergeBreaksCreationTieByLowerID(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	plan := planMerge([]domain.Contact{
		primaryRow(4, at),
		primaryRow(3, at),
	})

	assert.Equal(t, int64(3), plan.survivor.ID)
	assert.Equal(t, int64(4), plan.losers[0].ID)
}

func TestPlanMergeSinglePrimaryHasNoLosers(t *testing.T) {
	plan := planMerge([]domain.Contact{primaryRow(1, time.Now())})

	assert.Equal(t, int64(1), plan.survivor.ID)
	assert.Empty(t, plan.losers)
}

func TestRootIDsProjectsAndDedupes(t *testing.T) {
	linked := int64(1)
	matches := []domain.Contact{
		{ID: 1, Precedence: domain.PrecedencePrimary},
		{ID: 4, Precedence: domain.PrecedenceSecondary, LinkedID: &linked},
		{ID: 7, Precedence: domain.PrecedencePrimary},
	}

	assert.Equal(t, []int64{1, 7}, rootIDs(matches), "secondary of 1 collapses into its root")
}
