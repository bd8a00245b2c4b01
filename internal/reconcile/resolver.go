package reconcile

import "linkage/internal/domain"

// rootIDs projects matched contacts to the distinct ids of their root
// primaries: a primary contributes its own id, a secondary its linked_id.
// First-seen order is preserved; the store re-sorts when fetching.
func rootIDs(matches []domain.Contact) []int64 {
	seen := make(map[int64]struct{}, len(matches))
	ids := make([]int64, 0, len(matches))
	for _, match := range matches {
		root := match.RootID()
		if _, ok := seen[root]; ok {
			continue
		}
		seen[root] = struct{}{}
		ids = append(ids, root)
	}
	return ids
}
