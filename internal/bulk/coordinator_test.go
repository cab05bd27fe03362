package bulk_test

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/greenbudget/backend/internal/bulk"
	"github.com/greenbudget/backend/internal/cache"
	"github.com/greenbudget/backend/internal/estimate"
	"github.com/greenbudget/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/slices"
)

// TestScenario walks through leaf values, fringes and a percent markup.
func (suite *TestSuiteStandard) TestScenario() {
	budget := suite.createBudget(models.DomainBudget)
	account := suite.createAccount(budget)
	x := suite.createSubAccount(account.Self(), 10, 1, 5)

	s := suite.load(budget.ID)
	suite.Assert().Equal(50.0, s.SubAccounts[x.ID].NominalValue)
	suite.Assert().Equal(50.0, s.Accounts[account.ID].NominalValue)
	suite.Assert().Equal(50.0, s.Budget.NominalValue)
	suite.Assert().Equal(50.0, estimate.Estimated(s.Values(budget.Self())))

	// Fringes
	fringes := suite.create(budget.Self(), models.KindFringe,
		bulk.Payload{Name: bulk.Some("F1"), Unit: bulk.Some(models.UnitPercent), Rate: bulk.Some(ptr(0.5)), Cutoff: bulk.Some(ptr(50.0))},
		bulk.Payload{Name: bulk.Some("F2"), Unit: bulk.Some(models.UnitFlat), Rate: bulk.Some(ptr(100.0))},
	)
	f1, f2 := fringes[0].(*models.Fringe), fringes[1].(*models.Fringe)

	_, err := suite.coordinator.Update(suite.ctx, suite.actor.ID, account.Self(), models.KindSubAccount, []bulk.Patch{
		{ID: x.ID, Payload: bulk.Payload{Fringes: bulk.Some([]uuid.UUID{f1.ID, f2.ID})}},
	})
	suite.Require().Nil(err)

	s = suite.load(budget.ID)
	suite.Assert().Equal(125.0, s.SubAccounts[x.ID].FringeContribution)
	suite.Assert().Equal(125.0, s.Accounts[account.ID].AccumulatedFringeContribution)
	suite.Assert().Equal(175.0, estimate.Estimated(s.Values(budget.Self())))

	// Percent markup
	result, err := suite.coordinator.Create(suite.ctx, suite.actor.ID, account.Self(), models.KindMarkup, []bulk.Payload{
		{Unit: bulk.Some(models.UnitPercent), Rate: bulk.Some(ptr(0.1)), Children: bulk.Some([]uuid.UUID{x.ID})},
	})
	suite.Require().Nil(err)
	markup := result.Children[0].(*models.Markup)
	suite.Assert().Equal(5.0, markup.Contribution)

	s = suite.load(budget.ID)
	suite.Assert().Equal(5.0, s.SubAccounts[x.ID].MarkupContribution)
	suite.Assert().Equal(5.0, s.Accounts[account.ID].AccumulatedMarkupContribution)
	suite.Assert().Equal(180.0, estimate.Estimated(s.Values(budget.Self())))
	suite.Assert().Equal(5.0, s.Markups[markup.ID].Contribution)

	// The result carries the fresh parent
	parent := result.Parent.(*models.Account)
	suite.Assert().Equal(5.0, parent.AccumulatedMarkupContribution)
}

// TestMoveKeepsOtherKeys moves the fifth of ten rows to position 8.
func (suite *TestSuiteStandard) TestMoveKeepsOtherKeys() {
	budget := suite.createBudget(models.DomainBudget)

	keys := []string{"n", "t", "w", "y", "yn", "ynt", "yntw", "yntwy", "yntwyn", "yntwynt"}
	ids := make([]uuid.UUID, len(keys))
	for i, k := range keys {
		a := models.Account{BudgetID: budget.ID, Order: k}
		suite.Require().Nil(models.DB.Create(&a).Error)
		ids[i] = a.ID
	}

	key, err := suite.coordinator.Move(suite.ctx, suite.actor.ID, models.Ref{Kind: models.KindAccount, ID: ids[4]}, bulk.MoveRequest{Order: ptr(8)})
	suite.Require().Nil(err)
	suite.Assert().Equal("yntwynk", key)

	s := suite.load(budget.ID)
	var order []uuid.UUID
	for _, ref := range s.Siblings(models.KindAccount, budget.Self()) {
		order = append(order, ref.ID)
		if ref.ID != ids[4] {
			suite.Assert().Equal(keys[slices.Index(ids, ref.ID)], s.Order(ref))
		}
	}

	suite.Assert().Equal([]uuid.UUID{ids[0], ids[1], ids[2], ids[3], ids[5], ids[6], ids[7], ids[8], ids[4], ids[9]}, order)
}

func (suite *TestSuiteStandard) TestMoveAfterPrevious() {
	budget := suite.createBudget(models.DomainBudget)
	rows := suite.create(budget.Self(), models.KindFringe,
		bulk.Payload{Name: bulk.Some("A")},
		bulk.Payload{Name: bulk.Some("B")},
		bulk.Payload{Name: bulk.Some("C")},
	)
	a, b, c := rows[0].(*models.Fringe), rows[1].(*models.Fringe), rows[2].(*models.Fringe)

	// C to the front
	_, err := suite.coordinator.Move(suite.ctx, suite.actor.ID, c.Self(), bulk.MoveRequest{Previous: bulk.Some[*uuid.UUID](nil)})
	suite.Require().Nil(err)

	// A after B
	_, err = suite.coordinator.Move(suite.ctx, suite.actor.ID, a.Self(), bulk.MoveRequest{Previous: bulk.Some(&b.ID)})
	suite.Require().Nil(err)

	s := suite.load(budget.ID)
	var names []string
	for _, ref := range s.Siblings(models.KindFringe, budget.Self()) {
		names = append(names, s.Fringes[ref.ID].Name)
	}
	suite.Assert().Equal([]string{"C", "B", "A"}, names)

	_, err = suite.coordinator.Move(suite.ctx, suite.actor.ID, a.Self(), bulk.MoveRequest{Previous: bulk.Some(&a.ID)})
	suite.Assert().ErrorIs(err, bulk.ErrValidation)

	_, err = suite.coordinator.Move(suite.ctx, suite.actor.ID, a.Self(), bulk.MoveRequest{Order: ptr(3)})
	suite.Assert().ErrorIs(err, bulk.ErrValidation)

	_, err = suite.coordinator.Move(suite.ctx, suite.actor.ID, a.Self(), bulk.MoveRequest{})
	suite.Assert().ErrorIs(err, bulk.ErrValidation)
}

// TestConcurrentCreate runs two batches of two creates on the same parent
// at the same time.
func (suite *TestSuiteStandard) TestConcurrentCreate() {
	budget := suite.createBudget(models.DomainBudget)
	account := suite.createAccount(budget)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = suite.coordinator.Create(suite.ctx, suite.actor.ID, account.Self(), models.KindSubAccount, []bulk.Payload{{}, {}})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		suite.Require().Nil(err)
	}

	s := suite.load(budget.ID)
	keys := s.SiblingKeys(models.KindSubAccount, account.Self())
	suite.Require().Len(keys, 4)

	seen := make(map[string]bool)
	for i, k := range keys {
		suite.Assert().False(seen[k], "key %s is not unique", k)
		seen[k] = true

		if i > 0 {
			suite.Assert().Less(keys[i-1], k)
		}
	}
}

func (suite *TestSuiteStandard) TestCreateOrder() {
	budget := suite.createBudget(models.DomainBudget)
	rows := suite.create(budget.Self(), models.KindAccount, bulk.Payload{}, bulk.Payload{}, bulk.Payload{})

	suite.Assert().Equal("n", rows[0].(*models.Account).Order)
	suite.Assert().Less(rows[0].(*models.Account).Order, rows[1].(*models.Account).Order)
	suite.Assert().Less(rows[1].(*models.Account).Order, rows[2].(*models.Account).Order)

	more := suite.create(budget.Self(), models.KindAccount, bulk.Payload{})
	suite.Assert().Less(rows[2].(*models.Account).Order, more[0].(*models.Account).Order)
}

// TestDeleteCascade deletes a subaccount with an actual that is the child
// of a markup.
func (suite *TestSuiteStandard) TestDeleteCascade() {
	budget := suite.createBudget(models.DomainBudget)
	account := suite.createAccount(budget)
	x := suite.createSubAccount(account.Self(), 10, 1, 5)
	y := suite.createSubAccount(x.Self(), 2, 3, 1)
	z := suite.createSubAccount(account.Self(), 1, 20, 1)

	markup := suite.create(account.Self(), models.KindMarkup, bulk.Payload{
		Rate:     bulk.Some(ptr(0.1)),
		Children: bulk.Some([]uuid.UUID{x.ID, z.ID}),
	})[0].(*models.Markup)

	actual := suite.create(budget.Self(), models.KindActual, bulk.Payload{
		Owner: bulk.Some(&models.Ref{Kind: models.KindSubAccount, ID: x.ID}),
		Value: bulk.Some(ptr(100.0)),
	})[0].(*models.Actual)

	s := suite.load(budget.ID)
	suite.Require().Equal(100.0, s.Accounts[account.ID].Actual)
	suite.Require().Equal(26.0, s.Accounts[account.ID].NominalValue)
	suite.Require().InDelta(2.6, s.Markups[markup.ID].Contribution, 1e-9)

	result, err := suite.coordinator.Delete(suite.ctx, suite.actor.ID, account.Self(), models.KindSubAccount, []uuid.UUID{x.ID}, bulk.DeleteOptions{Strict: true})
	suite.Require().Nil(err)
	suite.Require().Len(result.Children, 1, "the remaining subaccounts are returned")
	suite.Assert().Equal(z.ID, result.Children[0].(*models.SubAccount).ID)

	s = suite.load(budget.ID)
	suite.Assert().NotContains(s.SubAccounts, x.ID)
	suite.Assert().NotContains(s.SubAccounts, y.ID, "descendants are deleted")
	suite.Assert().Equal(0.0, s.Accounts[account.ID].Actual)
	suite.Assert().Equal(20.0, s.Accounts[account.ID].NominalValue)
	suite.Assert().Equal(2.0, s.Markups[markup.ID].Contribution)
	suite.Assert().Equal([]uuid.UUID{z.ID}, s.Markups[markup.ID].Children)

	// The actual is kept without owner
	suite.Require().Contains(s.Actuals, actual.ID)
	_, owned := s.Actuals[actual.ID].Owner()
	suite.Assert().False(owned)
}

func (suite *TestSuiteStandard) TestDeleteAccountEmptiesBudget() {
	budget := suite.createBudget(models.DomainBudget)
	account := suite.createAccount(budget)
	suite.createSubAccount(account.Self(), 10, 1, 5)

	result, err := suite.coordinator.Delete(suite.ctx, suite.actor.ID, budget.Self(), models.KindAccount, []uuid.UUID{account.ID}, bulk.DeleteOptions{})
	suite.Require().Nil(err)
	suite.Assert().Equal(0.0, result.Budget.NominalValue)
	suite.Assert().Empty(result.Children)

	var count int64
	suite.Require().Nil(models.DB.Model(&models.SubAccount{}).Count(&count).Error)
	suite.Assert().Equal(int64(0), count)
}

func (suite *TestSuiteStandard) TestDeleteStrict() {
	budget := suite.createBudget(models.DomainBudget)
	account := suite.createAccount(budget)

	_, err := suite.coordinator.Delete(suite.ctx, suite.actor.ID, budget.Self(), models.KindAccount, []uuid.UUID{uuid.New()}, bulk.DeleteOptions{Strict: true})
	suite.Assert().ErrorIs(err, bulk.ErrNotFound)

	// Lenient deletes skip missing and repeated rows
	_, err = suite.coordinator.Delete(suite.ctx, suite.actor.ID, budget.Self(), models.KindAccount, []uuid.UUID{uuid.New(), account.ID, account.ID}, bulk.DeleteOptions{})
	suite.Assert().Nil(err)

	_, err = suite.coordinator.Delete(suite.ctx, suite.actor.ID, budget.Self(), models.KindAccount, []uuid.UUID{account.ID}, bulk.DeleteOptions{})
	suite.Assert().Nil(err)
}

func (suite *TestSuiteStandard) TestDeleteFringe() {
	budget := suite.createBudget(models.DomainBudget)
	account := suite.createAccount(budget)
	fringe := suite.create(budget.Self(), models.KindFringe, bulk.Payload{Name: bulk.Some("Tax"), Unit: bulk.Some(models.UnitFlat), Rate: bulk.Some(ptr(10.0))})[0].(*models.Fringe)

	x := suite.create(account.Self(), models.KindSubAccount, bulk.Payload{
		Quantity: bulk.Some(ptr(1.0)),
		Rate:     bulk.Some(ptr(1.0)),
		Fringes:  bulk.Some([]uuid.UUID{fringe.ID}),
	})[0].(*models.SubAccount)

	s := suite.load(budget.ID)
	suite.Require().Equal(10.0, s.SubAccounts[x.ID].FringeContribution)

	_, err := suite.coordinator.Delete(suite.ctx, suite.actor.ID, budget.Self(), models.KindFringe, []uuid.UUID{fringe.ID}, bulk.DeleteOptions{Strict: true})
	suite.Require().Nil(err)

	s = suite.load(budget.ID)
	suite.Assert().Equal(0.0, s.SubAccounts[x.ID].FringeContribution)
	suite.Assert().Empty(s.SubAccounts[x.ID].Fringes)
	suite.Assert().Equal(0.0, s.Budget.AccumulatedFringeContribution)
}

func (suite *TestSuiteStandard) TestDeleteGroup() {
	budget := suite.createBudget(models.DomainBudget)
	group := suite.create(budget.Self(), models.KindGroup, bulk.Payload{Name: bulk.Some("Above the line")})[0].(*models.Group)
	other := suite.create(budget.Self(), models.KindGroup, bulk.Payload{Name: bulk.Some("Below the line")})[0].(*models.Group)
	account := suite.create(budget.Self(), models.KindAccount, bulk.Payload{GroupID: bulk.Some(&group.ID)})[0].(*models.Account)
	suite.create(budget.Self(), models.KindAccount, bulk.Payload{GroupID: bulk.Some(&other.ID)})

	result, err := suite.coordinator.Delete(suite.ctx, suite.actor.ID, budget.Self(), models.KindGroup, []uuid.UUID{group.ID}, bulk.DeleteOptions{Strict: true})
	suite.Require().Nil(err)
	suite.Require().Len(result.Children, 1)
	suite.Assert().Equal(other.ID, result.Children[0].(*models.Group).ID)

	s := suite.load(budget.ID)
	suite.Assert().Nil(s.Accounts[account.ID].GroupID)
	suite.Assert().Len(s.Groups, 1)
}

func (suite *TestSuiteStandard) TestFlatMarkupCreditsParent() {
	budget := suite.createBudget(models.DomainBudget)
	account := suite.createAccount(budget)
	x := suite.createSubAccount(account.Self(), 1, 50, 1)

	markup := suite.create(account.Self(), models.KindMarkup, bulk.Payload{
		Unit:     bulk.Some(models.UnitFlat),
		Rate:     bulk.Some(ptr(100.0)),
		Children: bulk.Some([]uuid.UUID{x.ID}),
	})[0].(*models.Markup)

	s := suite.load(budget.ID)
	suite.Assert().Equal(0.0, s.SubAccounts[x.ID].MarkupContribution)
	suite.Assert().Equal(100.0, s.Accounts[account.ID].AccumulatedMarkupContribution)
	suite.Assert().Equal(150.0, estimate.Estimated(s.Values(budget.Self())))

	_, err := suite.coordinator.Delete(suite.ctx, suite.actor.ID, account.Self(), models.KindMarkup, []uuid.UUID{markup.ID}, bulk.DeleteOptions{Strict: true})
	suite.Require().Nil(err)

	s = suite.load(budget.ID)
	suite.Assert().Equal(50.0, estimate.Estimated(s.Values(budget.Self())))
}

func (suite *TestSuiteStandard) TestUpdateActualOwner() {
	budget := suite.createBudget(models.DomainBudget)
	account := suite.createAccount(budget)
	x := suite.createSubAccount(account.Self(), 1, 1, 1)
	y := suite.createSubAccount(account.Self(), 1, 1, 1)

	actual := suite.create(budget.Self(), models.KindActual, bulk.Payload{
		Owner: bulk.Some(&models.Ref{Kind: models.KindSubAccount, ID: x.ID}),
		Value: bulk.Some(ptr(30.0)),
	})[0].(*models.Actual)

	_, err := suite.coordinator.Update(suite.ctx, suite.actor.ID, budget.Self(), models.KindActual, []bulk.Patch{
		{ID: actual.ID, Payload: bulk.Payload{Owner: bulk.Some(&models.Ref{Kind: models.KindSubAccount, ID: y.ID})}},
	})
	suite.Require().Nil(err)

	s := suite.load(budget.ID)
	suite.Assert().Equal(0.0, s.SubAccounts[x.ID].Actual)
	suite.Assert().Equal(30.0, s.SubAccounts[y.ID].Actual)
	suite.Assert().Equal(30.0, s.Budget.Actual)
}

func (suite *TestSuiteStandard) TestValidation() {
	budget := suite.createBudget(models.DomainBudget)
	account := suite.createAccount(budget)

	tests := []struct {
		name     string
		parent   models.Ref
		kind     models.Kind
		payloads []bulk.Payload
		index    int
		field    string
		code     string
	}{
		{"Field of another kind", budget.Self(), models.KindAccount, []bulk.Payload{{}, {Quantity: bulk.Some(ptr(1.0))}}, 1, "quantity", "not_allowed"},
		{"Missing name", budget.Self(), models.KindFringe, []bulk.Payload{{}}, 0, "name", "required"},
		{"Identifier too long", budget.Self(), models.KindAccount, []bulk.Payload{{Identifier: bulk.Some(strings.Repeat("9", 129))}}, 0, "identifier", "too_long"},
		{"Blank name", budget.Self(), models.KindGroup, []bulk.Payload{{Name: bulk.Some("  ")}}, 0, "name", "required"},
		{"Invalid unit", budget.Self(), models.KindFringe, []bulk.Payload{{Name: bulk.Some("A"), Unit: bulk.Some(models.Unit("weekly"))}}, 0, "unit", "invalid"},
		{"Negative cutoff", budget.Self(), models.KindFringe, []bulk.Payload{{Name: bulk.Some("A"), Cutoff: bulk.Some(ptr(-1.0))}}, 0, "cutoff", "negative"},
		{"Invalid color", budget.Self(), models.KindGroup, []bulk.Payload{{Name: bulk.Some("A"), Color: bulk.Some("red")}}, 0, "color", "invalid"},
		{"Duplicate children", account.Self(), models.KindMarkup, []bulk.Payload{{Children: bulk.Some([]uuid.UUID{account.ID, account.ID})}}, 0, "children", "duplicate"},
		{"Null rate of markup", account.Self(), models.KindMarkup, []bulk.Payload{{Rate: bulk.Some[*float64](nil)}}, 0, "rate", "required"},
		{"Unknown fringe", account.Self(), models.KindSubAccount, []bulk.Payload{{Fringes: bulk.Some([]uuid.UUID{uuid.New()})}}, 0, "fringes", "not_found"},
		{"Unknown group", budget.Self(), models.KindAccount, []bulk.Payload{{GroupID: bulk.Some(ptr(uuid.New()))}}, 0, "groupId", "not_found"},
		{"Invalid owner kind", budget.Self(), models.KindActual, []bulk.Payload{{Owner: bulk.Some(&models.Ref{Kind: models.KindAccount, ID: account.ID})}}, 0, "owner", "invalid"},
		{"Child of another parent", budget.Self(), models.KindMarkup, []bulk.Payload{{Children: bulk.Some([]uuid.UUID{uuid.New()})}}, 0, "children", "not_found"},
	}

	for _, tt := range tests {
		suite.T().Run(tt.name, func(t *testing.T) {
			_, err := suite.coordinator.Create(suite.ctx, suite.actor.ID, tt.parent, tt.kind, tt.payloads)

			var verr bulk.ValidationError
			if assert.ErrorAs(t, err, &verr) {
				assert.ErrorIs(t, err, bulk.ErrValidation)
				assert.Equal(t, tt.index, verr.Index)
				assert.Equal(t, tt.field, verr.Field)
				assert.Equal(t, tt.code, verr.Code)
			}
		})
	}

	// Nothing of the failed batches was persisted
	s := suite.load(budget.ID)
	suite.Assert().Len(s.Accounts, 1)
	suite.Assert().Empty(s.Fringes)
}

func (suite *TestSuiteStandard) TestInvalidParent() {
	budget := suite.createBudget(models.DomainBudget)

	_, err := suite.coordinator.Create(suite.ctx, suite.actor.ID, budget.Self(), models.KindSubAccount, []bulk.Payload{{}})
	suite.Assert().ErrorIs(err, bulk.ErrValidation)

	_, err = suite.coordinator.Create(suite.ctx, suite.actor.ID, models.Ref{Kind: models.KindAccount, ID: uuid.New()}, models.KindSubAccount, []bulk.Payload{{}})
	suite.Assert().ErrorIs(err, bulk.ErrNotFound)
}

func (suite *TestSuiteStandard) TestActualsOnTemplate() {
	template := suite.createBudget(models.DomainTemplate)

	_, err := suite.coordinator.Create(suite.ctx, suite.actor.ID, template.Self(), models.KindActual, []bulk.Payload{{Value: bulk.Some(ptr(1.0))}})
	suite.Assert().ErrorIs(err, models.ErrIntegrity)
}

func (suite *TestSuiteStandard) TestFringeNameUnique() {
	budget := suite.createBudget(models.DomainBudget)

	_, err := suite.coordinator.Create(suite.ctx, suite.actor.ID, budget.Self(), models.KindFringe, []bulk.Payload{
		{Name: bulk.Some("Tax")},
		{Name: bulk.Some("Tax")},
	})
	suite.Assert().ErrorIs(err, models.ErrFringeNameNotUnique)
	suite.Assert().Contains(err.Error(), "row 1")
}

func (suite *TestSuiteStandard) TestUpdateNotFound() {
	budget := suite.createBudget(models.DomainBudget)
	other := suite.createBudget(models.DomainBudget)
	account := suite.createAccount(other)

	_, err := suite.coordinator.Update(suite.ctx, suite.actor.ID, budget.Self(), models.KindAccount, []bulk.Patch{{ID: account.ID}})
	suite.Assert().ErrorIs(err, bulk.ErrNotFound)
}

// TestEmptyBatch verifies that an empty batch does not write anything.
func (suite *TestSuiteStandard) TestEmptyBatch() {
	budget := suite.createBudget(models.DomainBudget)
	before := suite.load(budget.ID).Budget.UpdatedAt

	key := cache.BudgetDetail(budget.ID)
	suite.Require().Nil(suite.cache.Set(suite.ctx, key, []byte("{}"), 0))

	_, err := suite.coordinator.Create(suite.ctx, suite.actor.ID, budget.Self(), models.KindAccount, nil)
	suite.Require().Nil(err)
	_, err = suite.coordinator.Delete(suite.ctx, suite.actor.ID, budget.Self(), models.KindAccount, nil, bulk.DeleteOptions{Strict: true})
	suite.Require().Nil(err)

	suite.Assert().Equal(before, suite.load(budget.ID).Budget.UpdatedAt)

	_, err = suite.cache.Get(suite.ctx, key)
	suite.Assert().Nil(err, "the cache entry must survive")
}

func (suite *TestSuiteStandard) TestBudgetBumpAndInvalidation() {
	budget := suite.createBudget(models.DomainBudget)
	editor := models.User{ID: uuid.New(), Email: "editor@example.com"}
	suite.Require().Nil(models.EnsureUser(models.DB, editor))

	key := cache.BudgetDetail(budget.ID)
	suite.Require().Nil(suite.cache.Set(suite.ctx, key, []byte("{}"), 0))

	_, err := suite.coordinator.Create(suite.ctx, editor.ID, budget.Self(), models.KindAccount, []bulk.Payload{{}})
	suite.Require().Nil(err)

	s := suite.load(budget.ID)
	suite.Assert().Equal(editor.ID, s.Budget.UpdatedByID)
	suite.Assert().Equal(suite.actor.ID, s.Budget.OwnerID)

	_, err = suite.cache.Get(suite.ctx, key)
	suite.Assert().ErrorIs(err, cache.ErrMiss)
}

func (suite *TestSuiteStandard) TestMarkupChildRemovedIsEvicted() {
	budget := suite.createBudget(models.DomainBudget)
	account := suite.createAccount(budget)
	x := suite.createSubAccount(account.Self(), 1, 50, 1)
	z := suite.createSubAccount(account.Self(), 1, 20, 1)

	markup := suite.create(account.Self(), models.KindMarkup, bulk.Payload{
		Unit:     bulk.Some(models.UnitFlat),
		Rate:     bulk.Some(ptr(100.0)),
		Children: bulk.Some([]uuid.UUID{x.ID, z.ID}),
	})[0].(*models.Markup)

	key := cache.Detail(z.Self())
	suite.Require().Nil(suite.cache.Set(suite.ctx, key, []byte("{}"), 0))

	_, err := suite.coordinator.Update(suite.ctx, suite.actor.ID, account.Self(), models.KindMarkup, []bulk.Patch{
		{ID: markup.ID, Payload: bulk.Payload{Children: bulk.Some([]uuid.UUID{x.ID})}},
	})
	suite.Require().Nil(err)

	_, err = suite.cache.Get(suite.ctx, key)
	suite.Assert().ErrorIs(err, cache.ErrMiss)

	s := suite.load(budget.ID)
	suite.Assert().Equal(20.0, s.SubAccounts[z.ID].NominalValue)
	suite.Assert().Equal([]uuid.UUID{x.ID}, s.Markups[markup.ID].Children)
}

func (suite *TestSuiteStandard) TestRecalculate() {
	budget := suite.createBudget(models.DomainBudget)
	account := suite.createAccount(budget)
	suite.createSubAccount(account.Self(), 10, 1, 5)

	suite.Require().Nil(models.DB.Model(&models.Account{}).Where("id = ?", account.ID).UpdateColumn("nominal_value", 999).Error)
	suite.Require().Nil(models.DB.Model(&models.Budget{}).Where("id = ?", budget.ID).UpdateColumn("nominal_value", 999).Error)

	recalculated, err := suite.coordinator.Recalculate(suite.ctx, budget.ID)
	suite.Require().Nil(err)
	suite.Assert().Equal(50.0, recalculated.NominalValue)

	s := suite.load(budget.ID)
	suite.Assert().Equal(50.0, s.Accounts[account.ID].NominalValue)
}

func (suite *TestSuiteStandard) TestRekey() {
	budget := suite.createBudget(models.DomainBudget)
	for _, k := range []string{"b", "bb", "c", "n"} {
		suite.Require().Nil(models.DB.Create(&models.Account{BudgetID: budget.ID, Order: k}).Error)
	}
	before := suite.load(budget.ID).Siblings(models.KindAccount, budget.Self())

	n, err := suite.coordinator.Rekey(suite.ctx)
	suite.Require().Nil(err)
	suite.Assert().Equal(4, n)

	s := suite.load(budget.ID)
	suite.Assert().Equal([]string{"n", "t", "w", "y"}, s.SiblingKeys(models.KindAccount, budget.Self()))
	suite.Assert().Equal(before, s.Siblings(models.KindAccount, budget.Self()))
}

func (suite *TestSuiteStandard) TestBudgetCRUD() {
	budget := suite.createBudget(models.DomainTemplate)

	_, err := suite.coordinator.UpdateBudget(suite.ctx, suite.actor.ID, budget.ID, bulk.BudgetPayload{Community: bulk.Some(true)})
	suite.Assert().ErrorIs(err, models.ErrIntegrity, "only staff can own community templates")

	updated, err := suite.coordinator.UpdateBudget(suite.ctx, suite.actor.ID, budget.ID, bulk.BudgetPayload{Name: bulk.Some("Short Film")})
	suite.Require().Nil(err)
	suite.Assert().Equal("Short Film", updated.Name)

	account := suite.createAccount(budget)
	suite.createSubAccount(account.Self(), 1, 1, 1)

	suite.Require().Nil(suite.coordinator.DeleteBudget(suite.ctx, budget.ID))

	var count int64
	suite.Require().Nil(models.DB.Model(&models.Account{}).Count(&count).Error)
	suite.Assert().Equal(int64(0), count)

	err = suite.coordinator.DeleteBudget(suite.ctx, budget.ID)
	suite.Assert().ErrorIs(err, bulk.ErrNotFound)

	_, err = suite.coordinator.CreateBudget(suite.ctx, suite.actor.ID, bulk.BudgetPayload{})
	suite.Assert().ErrorIs(err, bulk.ErrValidation)
}

func (suite *TestSuiteStandard) TestBudgetDomainIsFixed() {
	budget := suite.createBudget(models.DomainBudget)
	account := suite.createAccount(budget)
	x := suite.createSubAccount(account.Self(), 10, 1, 5)
	suite.create(budget.Self(), models.KindActual, bulk.Payload{
		Owner: bulk.Some(&models.Ref{Kind: models.KindSubAccount, ID: x.ID}),
		Value: bulk.Some(ptr(100.0)),
	})

	_, err := suite.coordinator.UpdateBudget(suite.ctx, suite.actor.ID, budget.ID, bulk.BudgetPayload{Domain: bulk.Some(models.DomainTemplate)})

	var verr bulk.ValidationError
	suite.Require().ErrorAs(err, &verr)
	suite.Assert().Equal("domain", verr.Field)
	suite.Assert().Equal("not_allowed", verr.Code)

	s := suite.load(budget.ID)
	suite.Assert().Equal(models.DomainBudget, s.Budget.Domain)
	suite.Assert().Len(s.Actuals, 1)
	suite.Assert().Equal(100.0, s.Budget.Actual)
}

func (suite *TestSuiteStandard) TestPatchJSON() {
	var patch bulk.Patch
	id := uuid.New()
	suite.Require().Nil(json.Unmarshal([]byte(`{"id": "`+id.String()+`", "quantity": null, "rate": 2.5}`), &patch))

	suite.Assert().Equal(id, patch.ID)
	suite.Assert().True(patch.Quantity.Set)
	suite.Assert().Nil(patch.Quantity.Value)
	suite.Assert().True(patch.Rate.Set)
	suite.Assert().Equal(2.5, *patch.Rate.Value)
	suite.Assert().False(patch.Multiplier.Set)
}
