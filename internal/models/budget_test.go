package models_test

import (
	"github.com/greenbudget/backend/internal/models"
)

func (suite *TestSuiteStandard) TestBudgetTrimWhitespace() {
	budget := suite.createTestBudget(models.Budget{Name: "\t Feature Film  "})
	suite.Assert().Equal("Feature Film", budget.Name)
	suite.Assert().Equal(models.DomainBudget, budget.Domain)
}

func (suite *TestSuiteStandard) TestBudgetSaveValidation() {
	staff := suite.createTestUser(models.User{Email: "staff@example.com", IsStaff: true})
	regular := suite.createTestUser(models.User{Email: "someone@example.com"})

	tests := []struct {
		name   string
		budget models.Budget
		ok     bool
	}{
		{"Plain budget", models.Budget{OwnerID: regular.ID, Domain: models.DomainBudget}, true},
		{"Private template", models.Budget{OwnerID: regular.ID, Domain: models.DomainTemplate}, true},
		{"Community template by staff", models.Budget{OwnerID: staff.ID, Domain: models.DomainTemplate, Community: true}, true},
		{"Hidden community template", models.Budget{OwnerID: staff.ID, Domain: models.DomainTemplate, Community: true, Hidden: true}, true},
		{"Community template by regular user", models.Budget{OwnerID: regular.ID, Domain: models.DomainTemplate, Community: true}, false},
		{"Hidden but not community", models.Budget{OwnerID: staff.ID, Domain: models.DomainTemplate, Hidden: true}, false},
		{"Community budget", models.Budget{OwnerID: staff.ID, Domain: models.DomainBudget, Community: true}, false},
		{"Unknown domain", models.Budget{OwnerID: staff.ID, Domain: "spreadsheet"}, false},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			err := models.DB.Create(&tt.budget).Error
			if tt.ok {
				suite.Assert().Nil(err)
				return
			}
			suite.Assert().ErrorIs(err, models.ErrIntegrity)
		})
	}
}

func (suite *TestSuiteStandard) TestBudgetCommunityUnknownOwner() {
	budget := models.Budget{Domain: models.DomainTemplate, Community: true}
	err := models.DB.Create(&budget).Error
	suite.Assert().ErrorIs(err, models.ErrIntegrity)
	suite.Assert().ErrorIs(err, models.ErrResourceNotFound)
}
