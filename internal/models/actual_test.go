package models_test

import (
	"time"

	"github.com/greenbudget/backend/internal/models"
)

func (suite *TestSuiteStandard) TestActualOwners() {
	budget := suite.createTestBudget(models.Budget{})
	account := suite.createTestAccount(models.Account{BudgetID: budget.ID})
	subAccount := suite.createTestSubAccount(models.SubAccount{BudgetID: budget.ID, ParentKind: models.KindAccount, ParentID: account.ID})
	markup := suite.createTestMarkup(models.Markup{BudgetID: budget.ID, ParentKind: models.KindAccount, ParentID: account.ID})

	value := 100.0
	date := time.Date(2022, 5, 1, 0, 0, 0, 0, time.FixedZone("CEST", 7200))

	owned := models.Actual{BudgetID: budget.ID, OwnerKind: models.KindSubAccount, OwnerID: &subAccount.ID, Order: "n", Value: &value, Date: &date}
	suite.Require().Nil(models.DB.Create(&owned).Error)
	suite.Assert().Equal(time.UTC, owned.Date.Location())

	ref, ok := owned.Owner()
	suite.Assert().True(ok)
	suite.Assert().Equal(subAccount.Self(), ref)

	markupOwned := models.Actual{BudgetID: budget.ID, OwnerKind: models.KindMarkup, OwnerID: &markup.ID, Order: "t"}
	suite.Assert().Nil(models.DB.Create(&markupOwned).Error)

	orphan := models.Actual{BudgetID: budget.ID, OwnerKind: models.KindSubAccount, Order: "w"}
	suite.Require().Nil(models.DB.Create(&orphan).Error)
	_, ok = orphan.Owner()
	suite.Assert().False(ok)
	suite.Assert().Equal(models.Kind(""), orphan.OwnerKind)

	err := models.DB.Create(&models.Actual{BudgetID: budget.ID, OwnerKind: models.KindAccount, OwnerID: &account.ID, Order: "y"}).Error
	suite.Assert().ErrorIs(err, models.ErrIntegrity)
}

func (suite *TestSuiteStandard) TestActualTemplate() {
	template := suite.createTestBudget(models.Budget{Domain: models.DomainTemplate})

	err := models.DB.Create(&models.Actual{BudgetID: template.ID, Order: "n"}).Error
	suite.Assert().ErrorIs(err, models.ErrIntegrity)
}
