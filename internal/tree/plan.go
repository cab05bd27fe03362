package tree

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/greenbudget/backend/internal/estimate"
	"github.com/greenbudget/backend/internal/models"
	"golang.org/x/exp/slices"
	"gorm.io/gorm"
)

// node reports if resources of kind k carry derived values.
func node(k models.Kind) bool {
	switch k {
	case models.KindBudget, models.KindAccount, models.KindSubAccount, models.KindMarkup:
		return true
	}
	return false
}

// Plan computes the nodes that need to be recomputed for a set of changed
// nodes, children before their parents.
//
// The plan contains every seed, all of their ancestors and all markups
// that list one of them as a child. Every node appears exactly once.
func (s *Snapshot) Plan(seeds []models.Ref) ([]models.Ref, error) {
	s.index()

	nodes := make(map[models.Ref]bool)
	var add func(models.Ref)
	add = func(ref models.Ref) {
		if nodes[ref] || !node(ref.Kind) || !s.Exists(ref) {
			return
		}
		nodes[ref] = true

		for _, id := range s.MarkupsOf(ref) {
			add(models.Ref{Kind: models.KindMarkup, ID: id})
		}

		if parent, ok := s.Parent(ref); ok {
			add(parent)
		}
	}

	for _, seed := range seeds {
		add(seed)
	}

	// Edges point from a node to the nodes whose values depend on it
	dependents := make(map[models.Ref][]models.Ref, len(nodes))
	indegree := make(map[models.Ref]int, len(nodes))
	for n := range nodes {
		indegree[n] = 0
	}

	for n := range nodes {
		var targets []models.Ref
		if parent, ok := s.Parent(n); ok && nodes[parent] {
			targets = append(targets, parent)
		}

		if n.Kind == models.KindAccount || n.Kind == models.KindSubAccount {
			for _, id := range s.MarkupsOf(n) {
				m := models.Ref{Kind: models.KindMarkup, ID: id}
				if nodes[m] {
					targets = append(targets, m)
				}
			}
		}

		for _, t := range targets {
			dependents[n] = append(dependents[n], t)
			indegree[t]++
		}
	}

	var ready []models.Ref
	for n, d := range indegree {
		if d == 0 {
			ready = append(ready, n)
		}
	}
	slices.SortFunc(ready, compareRefs)

	plan := make([]models.Ref, 0, len(nodes))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		plan = append(plan, n)

		var next []models.Ref
		for _, t := range dependents[n] {
			indegree[t]--
			if indegree[t] == 0 {
				next = append(next, t)
			}
		}

		if len(next) > 0 {
			ready = append(ready, next...)
			slices.SortFunc(ready, compareRefs)
		}
	}

	if len(plan) != len(nodes) {
		return nil, fmt.Errorf("%w: %d of %d nodes could not be ordered", ErrCycle, len(nodes)-len(plan), len(nodes))
	}

	return plan, nil
}

// Full returns the plan to recompute every node of the budget.
func (s *Snapshot) Full() ([]models.Ref, error) {
	seeds := []models.Ref{s.Budget.Self()}

	for id := range s.Accounts {
		seeds = append(seeds, models.Ref{Kind: models.KindAccount, ID: id})
	}

	for id := range s.SubAccounts {
		seeds = append(seeds, models.Ref{Kind: models.KindSubAccount, ID: id})
	}

	for id := range s.Markups {
		seeds = append(seeds, models.Ref{Kind: models.KindMarkup, ID: id})
	}

	return s.Plan(seeds)
}

// Recompute computes the values of all nodes of the plan in order and
// returns the nodes whose values changed.
func (s *Snapshot) Recompute(plan []models.Ref) []models.Ref {
	s.index()

	var changed []models.Ref
	for _, ref := range plan {
		if ref.Kind == models.KindMarkup {
			if s.recomputeMarkup(ref.ID) {
				changed = append(changed, ref)
			}
			continue
		}

		v := estimate.Aggregate(s.input(ref), s.extras(ref))
		if v != s.Values(ref) {
			s.setValues(ref, v)
			changed = append(changed, ref)
		}
	}

	return changed
}

func (s *Snapshot) recomputeMarkup(id uuid.UUID) bool {
	m := s.Markups[id]
	childKind := models.ChildKind(m.ParentKind)

	nominals := make([]float64, 0, len(m.Children))
	for _, c := range m.Children {
		child := models.Ref{Kind: childKind, ID: c}
		if s.Exists(child) {
			nominals = append(nominals, s.Values(child).NominalValue)
		}
	}

	contribution, actual := estimate.MarkupTotals(markupInput(m, 0), nominals, s.actualValues(m.Self()))
	if contribution == m.Contribution && actual == m.Actual {
		return false
	}

	m.Contribution = contribution
	m.Actual = actual
	return true
}

func markupInput(m *models.Markup, actual float64) estimate.Markup {
	return estimate.Markup{
		ID:     m.ID,
		Unit:   m.Unit,
		Rate:   m.Rate,
		Actual: actual,
	}
}

func (s *Snapshot) actualValues(owner models.Ref) []float64 {
	var values []float64
	for _, id := range s.actualsOf[owner] {
		if v := s.Actuals[id].Value; v != nil {
			values = append(values, *v)
		}
	}
	return values
}

// input collects everything the values of a node are computed from.
func (s *Snapshot) input(ref models.Ref) estimate.Input {
	in := estimate.Input{Kind: ref.Kind}

	if ref.Kind == models.KindSubAccount {
		sa := s.SubAccounts[ref.ID]
		in.Quantity = sa.Quantity
		in.Rate = sa.Rate
		in.Multiplier = sa.Multiplier

		for _, id := range sa.Fringes {
			if f, ok := s.Fringes[id]; ok {
				in.Fringes = append(in.Fringes, estimate.Fringe{
					ID:     f.ID,
					Unit:   f.Unit,
					Rate:   f.Rate,
					Cutoff: f.Cutoff,
				})
			}
		}
	}

	for _, c := range s.children[ref] {
		in.Children = append(in.Children, estimate.Child{ID: c.ID, Values: s.Values(c)})
	}

	for _, id := range s.markupsOf[ref] {
		in.Markups = append(in.Markups, markupInput(s.Markups[id], 0))
	}

	for _, id := range s.owned[ref] {
		m := s.Markups[id]
		in.Owned = append(in.Owned, markupInput(m, m.Actual))
	}

	in.Actuals = s.actualValues(ref)

	return in
}

// extras lists the deleted resources the input of a node still refers to.
func (s *Snapshot) extras(ref models.Ref) estimate.Extras {
	var extras estimate.Extras

	for _, c := range s.children[ref] {
		if s.deleted[c] {
			extras.ChildrenToDelete = append(extras.ChildrenToDelete, c.ID)
		}
	}

	for _, ids := range [][]uuid.UUID{s.markupsOf[ref], s.owned[ref]} {
		for _, id := range ids {
			if s.deleted[models.Ref{Kind: models.KindMarkup, ID: id}] {
				extras.MarkupsToBeDeleted = append(extras.MarkupsToBeDeleted, id)
			}
		}
	}

	if ref.Kind == models.KindSubAccount {
		for _, id := range s.SubAccounts[ref.ID].Fringes {
			if s.deleted[models.Ref{Kind: models.KindFringe, ID: id}] {
				extras.FringesToBeDeleted = append(extras.FringesToBeDeleted, id)
			}
		}
	}

	return extras
}

// Values returns the derived values of a budget, account or subaccount.
func (s *Snapshot) Values(ref models.Ref) estimate.Values {
	switch ref.Kind {
	case models.KindBudget:
		return fromEstimation(s.Budget.Estimation)
	case models.KindAccount:
		a := s.Accounts[ref.ID]
		v := fromEstimation(a.Estimation)
		v.MarkupContribution = a.MarkupContribution
		return v
	case models.KindSubAccount:
		sa := s.SubAccounts[ref.ID]
		v := fromEstimation(sa.Estimation)
		v.MarkupContribution = sa.MarkupContribution
		v.FringeContribution = sa.FringeContribution
		return v
	}

	return estimate.Values{}
}

func (s *Snapshot) setValues(ref models.Ref, v estimate.Values) {
	e := models.Estimation{
		NominalValue:                  v.NominalValue,
		AccumulatedFringeContribution: v.AccumulatedFringeContribution,
		AccumulatedMarkupContribution: v.AccumulatedMarkupContribution,
		Actual:                        v.Actual,
	}

	switch ref.Kind {
	case models.KindBudget:
		s.Budget.Estimation = e
	case models.KindAccount:
		a := s.Accounts[ref.ID]
		a.Estimation = e
		a.MarkupContribution = v.MarkupContribution
	case models.KindSubAccount:
		sa := s.SubAccounts[ref.ID]
		sa.Estimation = e
		sa.MarkupContribution = v.MarkupContribution
		sa.FringeContribution = v.FringeContribution
	}
}

func fromEstimation(e models.Estimation) estimate.Values {
	return estimate.Values{
		NominalValue:                  e.NominalValue,
		AccumulatedFringeContribution: e.AccumulatedFringeContribution,
		AccumulatedMarkupContribution: e.AccumulatedMarkupContribution,
		Actual:                        e.Actual,
	}
}

// Save writes the derived values of the nodes to the database.
//
// Only the derived columns are written, hooks and timestamps are skipped.
func (s *Snapshot) Save(tx *gorm.DB, refs []models.Ref) error {
	for _, ref := range refs {
		var err error

		switch ref.Kind {
		case models.KindBudget:
			err = tx.Model(&models.Budget{}).Where("id = ?", ref.ID).UpdateColumns(estimationColumns(s.Budget.Estimation)).Error
		case models.KindAccount:
			a := s.Accounts[ref.ID]
			columns := estimationColumns(a.Estimation)
			columns["markup_contribution"] = a.MarkupContribution
			err = tx.Model(&models.Account{}).Where("id = ?", ref.ID).UpdateColumns(columns).Error
		case models.KindSubAccount:
			sa := s.SubAccounts[ref.ID]
			columns := estimationColumns(sa.Estimation)
			columns["markup_contribution"] = sa.MarkupContribution
			columns["fringe_contribution"] = sa.FringeContribution
			err = tx.Model(&models.SubAccount{}).Where("id = ?", ref.ID).UpdateColumns(columns).Error
		case models.KindMarkup:
			m := s.Markups[ref.ID]
			err = tx.Model(&models.Markup{}).Where("id = ?", ref.ID).UpdateColumns(map[string]any{
				"contribution": m.Contribution,
				"actual":       m.Actual,
			}).Error
		}

		if err != nil {
			return fmt.Errorf("saving derived values of %s: %w", ref, err)
		}
	}

	return nil
}

func estimationColumns(e models.Estimation) map[string]any {
	return map[string]any{
		"nominal_value":                   e.NominalValue,
		"accumulated_fringe_contribution": e.AccumulatedFringeContribution,
		"accumulated_markup_contribution": e.AccumulatedMarkupContribution,
		"actual":                          e.Actual,
	}
}
