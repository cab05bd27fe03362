package v1_test

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	v1 "github.com/greenbudget/backend/internal/controllers/v1"
	"github.com/greenbudget/backend/internal/models"
	"github.com/greenbudget/backend/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *TestSuiteStandard) TestGetRoot() {
	r := suite.request(suite.owner, http.MethodGet, "/v1", nil)
	test.AssertHTTPStatus(suite.T(), &r, http.StatusOK)

	var response v1.RootResponse
	test.DecodeResponse(suite.T(), &r, &response)
	suite.Assert().Equal("http://example.com/v1/budgets", response.Links.Budgets)
	suite.Assert().Equal("http://example.com/v1/actuals", response.Links.Actuals)
}

func (suite *TestSuiteStandard) TestUnauthenticated() {
	r := test.Request(suite.T(), http.MethodGet, "http://example.com/v1/budgets", nil)
	test.AssertHTTPStatus(suite.T(), &r, http.StatusUnauthorized)
}

func (suite *TestSuiteStandard) TestCreateBudget() {
	budget := suite.createBudget(suite.owner, map[string]any{"name": "  Feature Film "})

	suite.Assert().Equal("Feature Film", budget.Name)
	suite.Assert().Equal(models.DomainBudget, budget.Domain)
	suite.Assert().Equal(suite.owner.UserID, budget.OwnerID)
	suite.Assert().Equal(0.0, budget.Estimated)
	suite.Require().NotNil(budget.Actual)
	suite.Assert().Equal(0.0, *budget.Actual)
}

func (suite *TestSuiteStandard) TestCreateBudgetInvalid() {
	tests := []struct {
		name  string
		body  any
		field string
	}{
		{"No name", map[string]any{"image": ""}, "name"},
		{"Unknown domain", map[string]any{"name": "A", "domain": "forecast"}, "domain"},
		{"Invalid image", map[string]any{"name": "A", "image": "not a url"}, "image"},
	}

	for _, tt := range tests {
		suite.T().Run(tt.name, func(t *testing.T) {
			r := suite.request(suite.owner, http.MethodPost, "/v1/budgets", tt.body)
			test.AssertHTTPStatus(t, &r, http.StatusBadRequest)

			var response v1.ErrorResponse
			test.DecodeResponse(t, &r, &response)
			require.NotNil(t, response.Details)
			assert.Equal(t, tt.field, response.Details.Field)
			assert.Nil(t, response.Details.Index)
		})
	}

	r := suite.request(suite.owner, http.MethodPost, "/v1/budgets", "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusBadRequest)
}

func (suite *TestSuiteStandard) TestCommunityTemplateRequiresStaff() {
	r := suite.request(suite.owner, http.MethodPost, "/v1/budgets", map[string]any{"name": "Shared", "domain": "template", "community": true})
	test.AssertHTTPStatus(suite.T(), &r, http.StatusBadRequest)

	template := suite.createBudget(suite.staff, map[string]any{"name": "Shared", "domain": "template", "community": true})
	suite.Assert().True(template.Community)
}

func (suite *TestSuiteStandard) TestTemplateHidesActuals() {
	template := suite.createBudget(suite.owner, map[string]any{"name": "Template", "domain": "template"})

	r := suite.request(suite.owner, http.MethodGet, "/v1/budgets/"+template.ID.String(), nil)
	test.AssertHTTPStatus(suite.T(), &r, http.StatusOK)

	var response struct {
		Data map[string]any `json:"data"`
	}
	test.DecodeResponse(suite.T(), &r, &response)
	suite.Assert().Contains(response.Data, "estimated")
	suite.Assert().NotContains(response.Data, "actual")
	suite.Assert().NotContains(response.Data, "variance")
}

func (suite *TestSuiteStandard) TestGetBudgets() {
	suite.createBudget(suite.owner, map[string]any{"name": "Commercial"})
	suite.createBudget(suite.owner, map[string]any{"name": "Blank", "domain": "template"})
	suite.createBudget(suite.other, map[string]any{"name": "Not mine"})
	suite.createBudget(suite.staff, map[string]any{"name": "Community", "domain": "template", "community": true})
	hidden := suite.createBudget(suite.staff, map[string]any{"name": "Hidden", "domain": "template", "community": true})

	r := suite.request(suite.staff, http.MethodPatch, "/v1/budgets/"+hidden.ID.String(), map[string]any{"hidden": true})
	test.AssertHTTPStatus(suite.T(), &r, http.StatusOK)

	tests := []struct {
		name  string
		query string
		names []string
	}{
		{"All", "", []string{"Blank", "Commercial", "Community"}},
		{"Budgets", "?domain=budget", []string{"Commercial"}},
		{"Templates", "?domain=template", []string{"Blank", "Community"}},
		{"Search", "?search=omm", []string{"Commercial", "Community"}},
		{"Limit", "?limit=1", []string{"Blank"}},
		{"Offset", "?offset=2", []string{"Community"}},
	}

	for _, tt := range tests {
		suite.T().Run(tt.name, func(t *testing.T) {
			r := suite.request(suite.owner, http.MethodGet, "/v1/budgets"+tt.query, nil)
			test.AssertHTTPStatus(t, &r, http.StatusOK)

			var response v1.ListResponse[v1.Budget]
			test.DecodeResponse(t, &r, &response)

			names := make([]string, 0, len(response.Data))
			for _, b := range response.Data {
				names = append(names, b.Name)
			}
			assert.Equal(t, tt.names, names)
		})
	}

	// Staff users see hidden community templates
	r = suite.request(suite.staff, http.MethodGet, "/v1/budgets", nil)
	var response v1.ListResponse[v1.Budget]
	test.DecodeResponse(suite.T(), &r, &response)
	suite.Assert().Len(response.Data, 2)
	suite.Assert().Equal(int64(2), response.Pagination.Total)
}

func (suite *TestSuiteStandard) TestBudgetPermissions() {
	budget := suite.createBudget(suite.owner, map[string]any{"name": "Private"})
	template := suite.createBudget(suite.staff, map[string]any{"name": "Community", "domain": "template", "community": true})

	tests := []struct {
		name   string
		method string
		id     uuid.UUID
		body   any
		status int
	}{
		{"Foreign budget is not found", http.MethodGet, budget.ID, nil, http.StatusNotFound},
		{"Foreign budget cannot be changed", http.MethodPatch, budget.ID, map[string]any{"name": "Mine"}, http.StatusNotFound},
		{"Foreign budget cannot be deleted", http.MethodDelete, budget.ID, nil, http.StatusNotFound},
		{"Community template is visible", http.MethodGet, template.ID, nil, http.StatusOK},
		{"Community template is read only", http.MethodPatch, template.ID, map[string]any{"name": "Mine"}, http.StatusForbidden},
		{"Community template cannot be deleted", http.MethodDelete, template.ID, nil, http.StatusForbidden},
		{"Missing budget", http.MethodGet, uuid.New(), nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		suite.T().Run(tt.name, func(t *testing.T) {
			r := suite.request(suite.other, tt.method, "/v1/budgets/"+tt.id.String(), tt.body)
			test.AssertHTTPStatus(t, &r, tt.status)
		})
	}

	r := suite.request(suite.other, http.MethodGet, "/v1/budgets/not-a-uuid", nil)
	test.AssertHTTPStatus(suite.T(), &r, http.StatusBadRequest)
}

func (suite *TestSuiteStandard) TestUpdateBudget() {
	budget := suite.createBudget(suite.owner, map[string]any{"name": "Draft"})

	r := suite.request(suite.owner, http.MethodPatch, "/v1/budgets/"+budget.ID.String(), map[string]any{"name": "Final"})
	test.AssertHTTPStatus(suite.T(), &r, http.StatusOK)

	r, updated := suite.getBudget(suite.owner, budget.ID)
	test.AssertHTTPStatus(suite.T(), &r, http.StatusOK)
	suite.Assert().Equal("Final", updated.Name)

	// Budgets cannot be community templates
	r = suite.request(suite.owner, http.MethodPatch, "/v1/budgets/"+budget.ID.String(), map[string]any{"community": true})
	test.AssertHTTPStatus(suite.T(), &r, http.StatusBadRequest)

	// The domain is fixed after creation
	r = suite.request(suite.owner, http.MethodPatch, "/v1/budgets/"+budget.ID.String(), map[string]any{"domain": "template"})
	test.AssertHTTPStatus(suite.T(), &r, http.StatusBadRequest)

	var response v1.ErrorResponse
	test.DecodeResponse(suite.T(), &r, &response)
	suite.Require().NotNil(response.Details)
	suite.Assert().Equal("domain", response.Details.Field)
	suite.Assert().Equal("not_allowed", response.Details.Code)

	r, updated = suite.getBudget(suite.owner, budget.ID)
	test.AssertHTTPStatus(suite.T(), &r, http.StatusOK)
	suite.Assert().Equal(models.DomainBudget, updated.Domain)
}

func (suite *TestSuiteStandard) TestDeleteBudget() {
	l := suite.createLedger(models.DomainBudget)

	r := suite.request(suite.owner, http.MethodDelete, "/v1/budgets/"+l.budget.ID.String(), nil)
	test.AssertHTTPStatus(suite.T(), &r, http.StatusNoContent)

	r, _ = suite.getBudget(suite.owner, l.budget.ID)
	test.AssertHTTPStatus(suite.T(), &r, http.StatusNotFound)

	r = suite.request(suite.owner, http.MethodGet, "/v1/subaccounts/"+l.subAccount.ID.String(), nil)
	test.AssertHTTPStatus(suite.T(), &r, http.StatusNotFound)
}

func (suite *TestSuiteStandard) TestDuplicateBudget() {
	l := suite.createLedger(models.DomainBudget)

	r := suite.request(suite.owner, http.MethodPost, "/v1/budgets/"+l.budget.ID.String()+"/duplicate", map[string]any{"name": "Copy"})
	test.AssertHTTPStatus(suite.T(), &r, http.StatusCreated)

	var response v1.Response[v1.Budget]
	test.DecodeResponse(suite.T(), &r, &response)
	suite.Assert().Equal("Copy", response.Data.Name)
	suite.Assert().NotEqual(l.budget.ID, response.Data.ID)
	suite.Assert().Equal(50.0, response.Data.Estimated)

	// Without body, everything is kept
	r = suite.request(suite.owner, http.MethodPost, "/v1/budgets/"+l.budget.ID.String()+"/duplicate", nil)
	test.AssertHTTPStatus(suite.T(), &r, http.StatusCreated)
	test.DecodeResponse(suite.T(), &r, &response)
	suite.Assert().Equal("Feature Film", response.Data.Name)

	// Foreign budgets cannot be duplicated
	r = suite.request(suite.other, http.MethodPost, "/v1/budgets/"+l.budget.ID.String()+"/duplicate", nil)
	test.AssertHTTPStatus(suite.T(), &r, http.StatusNotFound)
}

func (suite *TestSuiteStandard) TestDuplicateCommunityTemplate() {
	template := suite.createBudget(suite.staff, map[string]any{"name": "Community", "domain": "template", "community": true})

	r := suite.request(suite.other, http.MethodPost, "/v1/budgets/"+template.ID.String()+"/duplicate", map[string]any{"domain": "budget", "name": "From template"})
	test.AssertHTTPStatus(suite.T(), &r, http.StatusCreated)

	var response v1.Response[v1.Budget]
	test.DecodeResponse(suite.T(), &r, &response)
	suite.Assert().Equal(models.DomainBudget, response.Data.Domain)
	suite.Assert().Equal(suite.other.UserID, response.Data.OwnerID)
	suite.Assert().False(response.Data.Community)
}
