package reconcile

import (
	"sort"

	"budget/internal/core"
	"budget/internal/store"
)

// Plan is the set of remote writes that brings one month's expenses in line
// with the local list.
type Plan struct {
	Delete []string
	Upsert []store.ExpenseRow
}

// Diff computes the plan for remoteIDs against local: ids present remotely
// but absent locally are deleted, every local expense is upserted.
func Diff(remoteIDs []string, rowID int64, local []core.Expense) Plan {
	keep := make(map[string]struct{}, len(local))
	for _, e := range local {
		keep[e.ID] = struct{}{}
	}
	var plan Plan
	seen := make(map[string]struct{}, len(remoteIDs))
	for _, id := range remoteIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := keep[id]; !ok {
			plan.Delete = append(plan.Delete, id)
		}
	}
	plan.Upsert = store.ExpenseRowsFrom(rowID, local)
	return plan
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
