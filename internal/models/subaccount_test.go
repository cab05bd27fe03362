package models_test

import (
	"github.com/google/uuid"
	"github.com/greenbudget/backend/internal/models"
)

func (suite *TestSuiteStandard) TestSubAccountParents() {
	budget := suite.createTestBudget(models.Budget{})
	account := suite.createTestAccount(models.Account{BudgetID: budget.ID})

	parent := suite.createTestSubAccount(models.SubAccount{
		BudgetID:   budget.ID,
		ParentKind: models.KindAccount,
		ParentID:   account.ID,
	})

	child := suite.createTestSubAccount(models.SubAccount{
		BudgetID:   budget.ID,
		ParentKind: models.KindSubAccount,
		ParentID:   parent.ID,
	})
	suite.Assert().Equal(models.Ref{Kind: models.KindSubAccount, ID: parent.ID}, child.Parent())

	tests := []struct {
		name       string
		subAccount models.SubAccount
	}{
		{"Budget as parent", models.SubAccount{BudgetID: budget.ID, ParentKind: models.KindBudget, ParentID: budget.ID, Order: "t"}},
		{"Markup as parent", models.SubAccount{BudgetID: budget.ID, ParentKind: models.KindMarkup, ParentID: uuid.New(), Order: "t"}},
		{"Missing parent", models.SubAccount{BudgetID: budget.ID, ParentKind: models.KindAccount, ParentID: uuid.New(), Order: "t"}},
		{"Parent in other budget", models.SubAccount{BudgetID: uuid.New(), ParentKind: models.KindAccount, ParentID: account.ID, Order: "t"}},
		{"Unknown unit", models.SubAccount{BudgetID: budget.ID, ParentKind: models.KindAccount, ParentID: account.ID, Order: "t", UnitID: &budget.ID}},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			err := models.DB.Create(&tt.subAccount).Error
			suite.Assert().ErrorIs(err, models.ErrIntegrity)
		})
	}
}

func (suite *TestSuiteStandard) TestSubAccountOrderPerParent() {
	budget := suite.createTestBudget(models.Budget{})
	a1 := suite.createTestAccount(models.Account{BudgetID: budget.ID, Order: "n"})
	a2 := suite.createTestAccount(models.Account{BudgetID: budget.ID, Order: "t"})

	_ = suite.createTestSubAccount(models.SubAccount{BudgetID: budget.ID, ParentKind: models.KindAccount, ParentID: a1.ID, Order: "n"})
	_ = suite.createTestSubAccount(models.SubAccount{BudgetID: budget.ID, ParentKind: models.KindAccount, ParentID: a2.ID, Order: "n"})

	err := models.DB.Create(&models.SubAccount{BudgetID: budget.ID, ParentKind: models.KindAccount, ParentID: a1.ID, Order: "n"}).Error
	suite.Assert().ErrorIs(err, models.ErrOrderNotUnique)
}

func (suite *TestSuiteStandard) TestSubAccountContactInTemplate() {
	user := suite.createTestUser(models.User{})
	contact := models.Contact{UserID: user.ID, FirstName: "Jane"}
	suite.Require().Nil(models.DB.Create(&contact).Error)

	template := suite.createTestBudget(models.Budget{Domain: models.DomainTemplate, OwnerID: user.ID})
	account := suite.createTestAccount(models.Account{BudgetID: template.ID})

	err := models.DB.Create(&models.SubAccount{
		BudgetID:   template.ID,
		ParentKind: models.KindAccount,
		ParentID:   account.ID,
		Order:      "n",
		ContactID:  &contact.ID,
	}).Error
	suite.Assert().ErrorIs(err, models.ErrIntegrity)

	budget := suite.createTestBudget(models.Budget{OwnerID: user.ID})
	budgetAccount := suite.createTestAccount(models.Account{BudgetID: budget.ID})
	_ = suite.createTestSubAccount(models.SubAccount{
		BudgetID:   budget.ID,
		ParentKind: models.KindAccount,
		ParentID:   budgetAccount.ID,
		ContactID:  &contact.ID,
	})
}

func (suite *TestSuiteStandard) TestSubAccountFringeBudget() {
	budget := suite.createTestBudget(models.Budget{})
	other := suite.createTestBudget(models.Budget{})
	account := suite.createTestAccount(models.Account{BudgetID: budget.ID})
	subAccount := suite.createTestSubAccount(models.SubAccount{BudgetID: budget.ID, ParentKind: models.KindAccount, ParentID: account.ID})

	fringe := suite.createTestFringe(models.Fringe{BudgetID: budget.ID})
	foreign := suite.createTestFringe(models.Fringe{BudgetID: other.ID})

	suite.Assert().Nil(models.DB.Create(&models.SubAccountFringe{SubAccountID: subAccount.ID, FringeID: fringe.ID}).Error)

	err := models.DB.Create(&models.SubAccountFringe{SubAccountID: subAccount.ID, FringeID: foreign.ID}).Error
	suite.Assert().ErrorIs(err, models.ErrIntegrity)
}

func (suite *TestSuiteStandard) TestBudgetOf() {
	budget := suite.createTestBudget(models.Budget{})
	account := suite.createTestAccount(models.Account{BudgetID: budget.ID})
	subAccount := suite.createTestSubAccount(models.SubAccount{BudgetID: budget.ID, ParentKind: models.KindAccount, ParentID: account.ID})

	for _, ref := range []models.Ref{budget.Self(), account.Self(), subAccount.Self()} {
		id, err := models.BudgetOf(models.DB, ref)
		suite.Assert().Nil(err)
		suite.Assert().Equal(budget.ID, id, ref.String())
	}

	_, err := models.BudgetOf(models.DB, models.Ref{Kind: models.KindAccount, ID: uuid.New()})
	suite.Assert().ErrorIs(err, models.ErrResourceNotFound)
}
