// Package estimate computes the derived values of budget tree nodes.
//
// All functions are pure. Sums are built with decimals so that the result
// does not depend on the order of the summands.
package estimate

import (
	"github.com/google/uuid"
	"github.com/greenbudget/backend/internal/models"
	"github.com/shopspring/decimal"
)

// Fringe holds the attributes of a fringe its contribution depends on.
type Fringe struct {
	ID     uuid.UUID
	Unit   models.Unit
	Rate   float64
	Cutoff *float64
}

// Markup holds the attributes of a markup the estimation depends on.
//
// Actual is only used when the markup is aggregated into its parent.
type Markup struct {
	ID     uuid.UUID
	Unit   models.Unit
	Rate   float64
	Actual float64
}

// Values are the derived values of a node.
type Values struct {
	NominalValue                  float64
	FringeContribution            float64
	MarkupContribution            float64
	AccumulatedFringeContribution float64
	AccumulatedMarkupContribution float64
	Actual                        float64
}

// Child is a node below the node that is aggregated.
type Child struct {
	ID uuid.UUID
	Values
}

// Input describes a node and everything its values are computed from.
type Input struct {
	Kind models.Kind

	// Leaf parameters, only used for subaccounts without children
	Quantity   *float64
	Rate       *float64
	Multiplier *float64

	Children []Child
	Fringes  []Fringe  // Fringes of a subaccount
	Markups  []Markup  // Markups that list the node as one of their children
	Owned    []Markup  // Markups that have the node as parent
	Actuals  []float64 // Values of the actuals owned by the node
}

// Extras shadow parts of the input with changes that are not persisted yet.
type Extras struct {
	ChildrenToDelete   []uuid.UUID
	UnsavedChildren    []Child
	MarkupsToBeDeleted []uuid.UUID
	FringesToBeDeleted []uuid.UUID
}

// Aggregate computes the derived values of a node.
func Aggregate(in Input, extras Extras) Values {
	children := effectiveChildren(in.Children, extras)
	leaf := in.Kind == models.KindSubAccount && len(children) == 0

	deletedMarkups := set(extras.MarkupsToBeDeleted)

	var v Values
	if leaf {
		v.NominalValue = Nominal(in.Quantity, in.Rate, in.Multiplier)

		deletedFringes := set(extras.FringesToBeDeleted)
		fringes := make([]Fringe, 0, len(in.Fringes))
		for _, f := range in.Fringes {
			if !deletedFringes[f.ID] {
				fringes = append(fringes, f)
			}
		}
		v.FringeContribution = FringeContribution(v.NominalValue, fringes)
	} else {
		nominal := decimal.Zero
		for _, c := range children {
			nominal = nominal.Add(decimal.NewFromFloat(c.NominalValue))
		}
		v.NominalValue = nominal.InexactFloat64()
	}

	if in.Kind != models.KindBudget {
		contribution := decimal.Zero
		for _, m := range in.Markups {
			if deletedMarkups[m.ID] {
				continue
			}
			contribution = contribution.Add(decimal.NewFromFloat(MarkupContribution(m, v.NominalValue)))
		}
		v.MarkupContribution = contribution.InexactFloat64()
	}

	fringe, markup, actual := decimal.Zero, decimal.Zero, decimal.Zero
	for _, c := range children {
		fringe = fringe.Add(decimal.NewFromFloat(c.FringeContribution)).Add(decimal.NewFromFloat(c.AccumulatedFringeContribution))
		markup = markup.Add(decimal.NewFromFloat(c.MarkupContribution)).Add(decimal.NewFromFloat(c.AccumulatedMarkupContribution))
		actual = actual.Add(decimal.NewFromFloat(c.Actual))
	}

	// Flat markups are credited to their parent once
	for _, m := range in.Owned {
		if deletedMarkups[m.ID] {
			continue
		}

		if m.Unit == models.UnitFlat {
			markup = markup.Add(decimal.NewFromFloat(m.Rate))
		}
		actual = actual.Add(decimal.NewFromFloat(m.Actual))
	}

	for _, a := range in.Actuals {
		actual = actual.Add(decimal.NewFromFloat(a))
	}

	v.AccumulatedFringeContribution = fringe.InexactFloat64()
	v.AccumulatedMarkupContribution = markup.InexactFloat64()
	v.Actual = actual.InexactFloat64()

	return v
}

// Nominal computes the nominal value of a leaf. A missing multiplier counts
// as 1, a missing quantity or rate yields 0.
func Nominal(quantity, rate, multiplier *float64) float64 {
	if quantity == nil || rate == nil {
		return 0
	}

	m := decimal.NewFromInt(1)
	if multiplier != nil {
		m = decimal.NewFromFloat(*multiplier)
	}

	return decimal.NewFromFloat(*quantity).Mul(decimal.NewFromFloat(*rate)).Mul(m).InexactFloat64()
}

// FringeContribution computes the sum of all fringes for a nominal value.
//
// Percent fringes apply to the nominal value capped at their cutoff, flat
// fringes add their rate. The order of the fringes does not matter.
func FringeContribution(nominal float64, fringes []Fringe) float64 {
	sum := decimal.Zero
	base := decimal.NewFromFloat(nominal)

	for _, f := range fringes {
		rate := decimal.NewFromFloat(f.Rate)

		if f.Unit == models.UnitFlat {
			sum = sum.Add(rate)
			continue
		}

		capped := base
		if f.Cutoff != nil {
			capped = decimal.Min(base, decimal.NewFromFloat(*f.Cutoff))
		}
		sum = sum.Add(rate.Mul(capped))
	}

	return sum.InexactFloat64()
}

// MarkupContribution is the share of a markup credited to one of its
// children. Only percent markups credit their children.
func MarkupContribution(m Markup, nominal float64) float64 {
	if m.Unit != models.UnitPercent {
		return 0
	}

	return decimal.NewFromFloat(m.Rate).Mul(decimal.NewFromFloat(nominal)).InexactFloat64()
}

// MarkupTotals computes the contribution and the actual of a markup from
// the nominal values of its children and the values of the actuals it owns.
func MarkupTotals(m Markup, nominals []float64, actuals []float64) (contribution, actual float64) {
	if m.Unit == models.UnitFlat {
		contribution = m.Rate
	} else {
		sum := decimal.Zero
		for _, n := range nominals {
			sum = sum.Add(decimal.NewFromFloat(MarkupContribution(m, n)))
		}
		contribution = sum.InexactFloat64()
	}

	sum := decimal.Zero
	for _, a := range actuals {
		sum = sum.Add(decimal.NewFromFloat(a))
	}

	return contribution, sum.InexactFloat64()
}

// Estimated is the total a node is estimated to cost.
func Estimated(v Values) float64 {
	return decimal.Sum(
		decimal.NewFromFloat(v.NominalValue),
		decimal.NewFromFloat(v.FringeContribution),
		decimal.NewFromFloat(v.AccumulatedFringeContribution),
		decimal.NewFromFloat(v.AccumulatedMarkupContribution),
		decimal.NewFromFloat(v.MarkupContribution),
	).InexactFloat64()
}

// Variance is the difference between the estimated and the actual cost.
func Variance(v Values) float64 {
	return decimal.NewFromFloat(Estimated(v)).Sub(decimal.NewFromFloat(v.Actual)).InexactFloat64()
}

// effectiveChildren applies the extras to the persisted children.
func effectiveChildren(children []Child, extras Extras) []Child {
	deleted := set(extras.ChildrenToDelete)

	unsaved := make(map[uuid.UUID]Child, len(extras.UnsavedChildren))
	for _, c := range extras.UnsavedChildren {
		unsaved[c.ID] = c
	}

	result := make([]Child, 0, len(children)+len(extras.UnsavedChildren))
	seen := make(map[uuid.UUID]bool, len(children))

	for _, c := range children {
		if deleted[c.ID] {
			continue
		}

		seen[c.ID] = true
		if u, ok := unsaved[c.ID]; ok {
			result = append(result, u)
			continue
		}
		result = append(result, c)
	}

	for _, c := range extras.UnsavedChildren {
		if !seen[c.ID] && !deleted[c.ID] {
			seen[c.ID] = true
			result = append(result, c)
		}
	}

	return result
}

func set(ids []uuid.UUID) map[uuid.UUID]bool {
	m := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}
