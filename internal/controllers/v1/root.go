package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/greenbudget/backend/internal/httputil"
)

type Links struct {
	Budgets     string `json:"budgets" example:"https://example.com/api/v1/budgets"`
	Accounts    string `json:"accounts" example:"https://example.com/api/v1/accounts"`
	SubAccounts string `json:"subaccounts" example:"https://example.com/api/v1/subaccounts"`
	Fringes     string `json:"fringes" example:"https://example.com/api/v1/fringes"`
	Markups     string `json:"markups" example:"https://example.com/api/v1/markups"`
	Groups      string `json:"groups" example:"https://example.com/api/v1/groups"`
	Actuals     string `json:"actuals" example:"https://example.com/api/v1/actuals"`
}

type RootResponse struct {
	Links Links `json:"links"`
}

// Get returns general information about the v1 API.
func Get(c *gin.Context) {
	url := httputil.RequestURL(c)

	c.JSON(http.StatusOK, RootResponse{
		Links: Links{
			Budgets:     url + "/budgets",
			Accounts:    url + "/accounts",
			SubAccounts: url + "/subaccounts",
			Fringes:     url + "/fringes",
			Markups:     url + "/markups",
			Groups:      url + "/groups",
			Actuals:     url + "/actuals",
		},
	})
}

// Options sets the allow header.
func Options(c *gin.Context) {
	httputil.OptionsGet(c)
}
