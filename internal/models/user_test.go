package models_test

import (
	"github.com/greenbudget/backend/internal/models"
)

func (suite *TestSuiteStandard) TestEnsureUser() {
	user := suite.createTestUser(models.User{Email: " jane@example.com "})

	var stored models.User
	suite.Require().Nil(models.DB.First(&stored, user.ID).Error)
	suite.Assert().Equal("jane@example.com", stored.Email)
	suite.Assert().False(stored.IsStaff)

	user.IsStaff = true
	user.Email = "jane.doe@example.com"
	suite.Require().Nil(models.EnsureUser(models.DB, user))

	suite.Require().Nil(models.DB.First(&stored, user.ID).Error)
	suite.Assert().Equal("jane.doe@example.com", stored.Email)
	suite.Assert().True(stored.IsStaff)

	var count int64
	models.DB.Model(&models.User{}).Count(&count)
	suite.Assert().Equal(int64(1), count)
}
