package cache

import (
	"context"

	"github.com/greenbudget/backend/internal/models"
	"github.com/greenbudget/backend/internal/tree"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Keys maps the resources a write touched to the cache keys that are stale
// afterwards.
//
// Deleted resources must still be part of the snapshot so that their
// relations can be resolved.
func Keys(s *tree.Snapshot, touched []models.Ref) []string {
	if len(touched) == 0 {
		return nil
	}

	keys := make(map[string]bool)
	add := func(k ...string) {
		for _, key := range k {
			if key != "" {
				keys[key] = true
			}
		}
	}

	node := func(ref models.Ref) {
		add(Detail(ref), Children(ref))
		if ref.Kind == models.KindBudget {
			add(BudgetActualOwners(ref.ID))
		}
	}

	budget := s.Budget.ID
	node(s.Budget.Self())

	for _, ref := range touched {
		switch ref.Kind {
		case models.KindBudget:
			node(ref)

		case models.KindAccount, models.KindSubAccount:
			node(ref)
			for _, ancestor := range s.Ancestors(ref) {
				node(ancestor)
			}

		case models.KindFringe:
			add(BudgetFringes(budget))
			for _, id := range s.Holders(ref.ID) {
				add(SubAccountDetail(id))
			}

		case models.KindMarkup:
			m, ok := s.Markups[ref.ID]
			if !ok {
				continue
			}

			add(Markups(m.Parent()), Detail(m.Parent()))
			childKind := models.ChildKind(m.ParentKind)
			for _, id := range m.Children {
				add(Detail(models.Ref{Kind: childKind, ID: id}))
			}

		case models.KindGroup:
			g, ok := s.Groups[ref.ID]
			if !ok {
				continue
			}
			add(Groups(g.Parent()), Children(g.Parent()))

		case models.KindActual:
			add(BudgetActuals(budget))
		}
	}

	result := maps.Keys(keys)
	slices.Sort(result)
	return result
}

// Invalidate drops the keys. Failures are logged and otherwise ignored,
// entries expire on their own.
func Invalidate(ctx context.Context, c Cache, keys []string) {
	if len(keys) == 0 {
		return
	}

	if err := c.Delete(ctx, keys...); err != nil {
		log.Error().Err(err).Strs("keys", keys).Msg("invalidating cache entries")
	}
}
