package duplicate_test

import (
	"github.com/google/uuid"
	"github.com/greenbudget/backend/internal/duplicate"
	"github.com/greenbudget/backend/internal/estimate"
	"github.com/greenbudget/backend/internal/models"
	"github.com/greenbudget/backend/internal/tree"
	"golang.org/x/exp/maps"
)

// assertSameValues verifies that two budgets carry the same derived values
// for resources that correspond to each other.
func (suite *TestSuiteStandard) assertSameValues(original, dup *tree.Snapshot, compareActuals bool) {
	want, got := original.Values(original.Budget.Self()), dup.Values(dup.Budget.Self())
	if !compareActuals {
		want.Actual = 0
	}

	suite.Assert().Equal(want, got)
	suite.Assert().Equal(estimate.Estimated(want), estimate.Estimated(got))
	suite.Assert().Len(dup.Accounts, len(original.Accounts))
	suite.Assert().Len(dup.SubAccounts, len(original.SubAccounts))
	suite.Assert().Len(dup.Fringes, len(original.Fringes))
	suite.Assert().Len(dup.Markups, len(original.Markups))
	suite.Assert().Len(dup.Groups, len(original.Groups))
}

func (suite *TestSuiteStandard) TestDuplicate() {
	src := suite.createSource(models.DomainBudget)

	budget, err := suite.duplicator.Duplicate(suite.ctx, src.budget.ID, duplicate.Options{Owner: suite.actor.ID, IncludeActuals: true})
	suite.Require().Nil(err)
	suite.Assert().NotEqual(src.budget.ID, budget.ID)
	suite.Assert().Equal("Feature Film", budget.Name)
	suite.Assert().Equal(models.DomainBudget, budget.Domain)

	original, dup := suite.load(src.budget.ID), suite.load(budget.ID)
	suite.assertSameValues(original, dup, true)
	suite.Assert().Equal(30.0, dup.Budget.Actual)
	suite.Assert().Len(dup.Actuals, 1)

	// No resource of the copy shares an ID with the source
	for _, id := range maps.Keys(dup.SubAccounts) {
		_, shared := original.SubAccounts[id]
		suite.Assert().False(shared)
	}

	// References point into the copy
	account := dup.Accounts[maps.Keys(dup.Accounts)[0]]
	suite.Require().NotNil(account.GroupID)
	suite.Assert().Contains(dup.Groups, *account.GroupID)

	for _, m := range dup.Markups {
		suite.Assert().Equal(account.ID, m.ParentID)
		suite.Assert().Len(m.Children, 2)
		for _, child := range m.Children {
			suite.Assert().Contains(dup.SubAccounts, child)
		}
		suite.Assert().Equal(original.Markups[src.markup.ID].Contribution, m.Contribution)
	}

	for _, a := range dup.Actuals {
		owner, ok := a.Owner()
		suite.Require().True(ok)
		suite.Assert().Contains(dup.SubAccounts, owner.ID)
		suite.Require().NotNil(a.ContactID)
		suite.Assert().Equal(src.contact.ID, *a.ContactID)
	}

	// Fringe contributions are recomputed from the copied fringes
	holders := 0
	for _, sa := range dup.SubAccounts {
		for _, f := range sa.Fringes {
			suite.Assert().Contains(dup.Fringes, f)
			holders++
		}
	}
	suite.Assert().Equal(1, holders)
}

func (suite *TestSuiteStandard) TestDuplicateWithoutActuals() {
	src := suite.createSource(models.DomainBudget)

	budget, err := suite.duplicator.Duplicate(suite.ctx, src.budget.ID, duplicate.Options{Owner: suite.actor.ID})
	suite.Require().Nil(err)

	dup := suite.load(budget.ID)
	suite.assertSameValues(suite.load(src.budget.ID), dup, false)
	suite.Assert().Len(dup.Actuals, 0)
	suite.Assert().Equal(0.0, dup.Budget.Actual)
}

func (suite *TestSuiteStandard) TestDuplicateTemplateIntoBudget() {
	src := suite.createSource(models.DomainTemplate)

	budget, err := suite.duplicator.Duplicate(suite.ctx, src.budget.ID, duplicate.Options{
		Owner:  suite.other.ID,
		Name:   "From template",
		Domain: models.DomainBudget,
	})
	suite.Require().Nil(err)
	suite.Assert().Equal("From template", budget.Name)
	suite.Assert().Equal(models.DomainBudget, budget.Domain)
	suite.Assert().Equal(suite.other.ID, budget.OwnerID)
	suite.Assert().Equal(suite.other.ID, budget.CreatedByID)

	suite.assertSameValues(suite.load(src.budget.ID), suite.load(budget.ID), false)
}

func (suite *TestSuiteStandard) TestDuplicateDropsForeignContacts() {
	src := suite.createSource(models.DomainBudget)

	budget, err := suite.duplicator.Duplicate(suite.ctx, src.budget.ID, duplicate.Options{Owner: suite.other.ID, IncludeActuals: true})
	suite.Require().Nil(err)

	dup := suite.load(budget.ID)
	for _, sa := range dup.SubAccounts {
		suite.Assert().Nil(sa.ContactID)
		suite.Assert().Equal(suite.other.ID, sa.CreatedByID)
	}
	for _, a := range dup.Actuals {
		suite.Assert().Nil(a.ContactID)
	}
}

func (suite *TestSuiteStandard) TestDuplicateBudgetIntoTemplateSkipsActuals() {
	src := suite.createSource(models.DomainBudget)

	budget, err := suite.duplicator.Duplicate(suite.ctx, src.budget.ID, duplicate.Options{
		Owner:          suite.actor.ID,
		Domain:         models.DomainTemplate,
		IncludeActuals: true,
	})
	suite.Require().Nil(err)

	dup := suite.load(budget.ID)
	suite.Assert().Len(dup.Actuals, 0)
	for _, sa := range dup.SubAccounts {
		suite.Assert().Nil(sa.ContactID)
	}
}

func (suite *TestSuiteStandard) TestDuplicateNotFound() {
	_, err := suite.duplicator.Duplicate(suite.ctx, uuid.New(), duplicate.Options{Owner: suite.actor.ID})
	suite.Assert().ErrorIs(err, models.ErrResourceNotFound)
}
