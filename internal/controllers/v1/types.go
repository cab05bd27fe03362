package v1

import (
	"github.com/google/uuid"
	"github.com/greenbudget/backend/internal/estimate"
	"github.com/greenbudget/backend/internal/models"
)

// Figures are the totals of a node as the API presents them.
//
// Actual and variance are only shown for budgets, templates have no actuals.
type Figures struct {
	Estimated float64  `json:"estimated" example:"180"`          // Total the node is estimated to cost
	Actual    *float64 `json:"actual,omitempty" example:"30"`    // Sum of all actuals of the node
	Variance  *float64 `json:"variance,omitempty" example:"150"` // Estimated minus actual
}

func figures(v estimate.Values) Figures {
	actual := v.Actual
	variance := estimate.Variance(v)

	return Figures{
		Estimated: estimate.Estimated(v),
		Actual:    &actual,
		Variance:  &variance,
	}
}

// redact removes the figures that have no meaning in the domain.
func (f *Figures) redact(domain models.Domain) {
	if domain == models.DomainTemplate {
		f.Actual = nil
		f.Variance = nil
	}
}

func estimation(e models.Estimation) estimate.Values {
	return estimate.Values{
		NominalValue:                  e.NominalValue,
		AccumulatedFringeContribution: e.AccumulatedFringeContribution,
		AccumulatedMarkupContribution: e.AccumulatedMarkupContribution,
		Actual:                        e.Actual,
	}
}

// Budget is the read model of a budget.
//
// Figures shadow the actual of the embedded estimation.
type Budget struct {
	models.Budget
	Figures
}

func newBudget(b *models.Budget) Budget {
	r := Budget{Budget: *b, Figures: figures(estimation(b.Estimation))}
	r.redact(b.Domain)
	return r
}

// Account is the read model of an account.
type Account struct {
	models.Account
	Figures
}

func newAccount(a *models.Account) Account {
	v := estimation(a.Estimation)
	v.MarkupContribution = a.MarkupContribution
	return Account{Account: *a, Figures: figures(v)}
}

// SubAccount is the read model of a subaccount.
type SubAccount struct {
	models.SubAccount
	Figures
}

func newSubAccount(sa *models.SubAccount) SubAccount {
	v := estimation(sa.Estimation)
	v.MarkupContribution = sa.MarkupContribution
	v.FringeContribution = sa.FringeContribution
	return SubAccount{SubAccount: *sa, Figures: figures(v)}
}

// Markup is the read model of a markup.
//
// The actual of a markup is a plain field, so the figures are not embedded.
type Markup struct {
	models.Markup
	Estimated float64  `json:"estimated" example:"5"`
	Actual    *float64 `json:"actual,omitempty" example:"0"`
	Variance  *float64 `json:"variance,omitempty" example:"5"`
}

func newMarkup(m *models.Markup) Markup {
	actual := m.Actual
	variance := estimate.Variance(estimate.Values{NominalValue: m.Contribution, Actual: m.Actual})

	return Markup{Markup: *m, Estimated: m.Contribution, Actual: &actual, Variance: &variance}
}

func (m *Markup) redact(domain models.Domain) {
	if domain == models.DomainTemplate {
		m.Actual = nil
		m.Variance = nil
	}
}

// ActualOwner is a resource actuals can be attributed to.
type ActualOwner struct {
	models.Ref
	Identifier  string `json:"identifier" example:"1101"`
	Description string `json:"description" example:"Writer"`
}

// readModel converts a resource returned by the coordinator.
func readModel(resource any, domain models.Domain) any {
	switch r := resource.(type) {
	case *models.Budget:
		return newBudget(r)
	case *models.Account:
		a := newAccount(r)
		a.redact(domain)
		return a
	case *models.SubAccount:
		sa := newSubAccount(r)
		sa.redact(domain)
		return sa
	case *models.Markup:
		m := newMarkup(r)
		m.redact(domain)
		return m
	}

	return resource
}

type Pagination struct {
	Count  int   `json:"count" example:"25"`  // The amount of records returned in this response
	Offset uint  `json:"offset" example:"50"` // The offset for the first record returned
	Limit  int   `json:"limit" example:"25"`  // The maximum amount of resources to return for this request
	Total  int64 `json:"total" example:"827"` // The total number of resources matching the query
}

// Response is the body of every successful request with data.
type Response[T any] struct {
	Data T `json:"data"`
}

type ListResponse[T any] struct {
	Data       []T         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// BulkResult is the state of a parent after a batch was applied to it.
type BulkResult struct {
	Budget   Budget `json:"budget"`
	Parent   any    `json:"parent"`
	Children []any  `json:"children"`
}

// BulkDelete selects the rows a bulk delete removes.
type BulkDelete struct {
	IDs    []uuid.UUID `json:"ids" binding:"required"`
	Strict bool        `json:"strict"` // Fail if a row does not exist
}

// OrderResponse carries the order key of a moved row.
type OrderResponse struct {
	Order string `json:"order" example:"nt"`
}

// DuplicateRequest configures the duplication of a budget.
type DuplicateRequest struct {
	Name           string        `json:"name" example:"Feature Film (copy)"`
	Domain         models.Domain `json:"domain" binding:"omitempty,oneof=budget template" example:"budget"`
	IncludeActuals bool          `json:"includeActuals" example:"true"`
}
