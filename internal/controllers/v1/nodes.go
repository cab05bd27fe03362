package v1

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/greenbudget/backend/internal/cache"
	"github.com/greenbudget/backend/internal/httputil"
	"github.com/greenbudget/backend/internal/models"
	"github.com/greenbudget/backend/internal/tree"
)

// registerNodeRoutes registers the routes that list the resources below a
// budget, account or subaccount.
func (co *Controller) registerNodeRoutes(r *gin.RouterGroup, kind models.Kind) {
	r.OPTIONS("/:id/children", httputil.OptionsGet)
	r.GET("/:id/children", co.GetChildren(kind))
	r.OPTIONS("/:id/markups", httputil.OptionsGet)
	r.GET("/:id/markups", co.GetMarkups(kind))
	r.OPTIONS("/:id/groups", httputil.OptionsGet)
	r.GET("/:id/groups", co.GetGroups(kind))
}

// cached loads a list derived from the snapshot of the budget through the cache.
func cached[T any](ctx context.Context, co *Controller, key string, budget Budget, build func(*tree.Snapshot) []T) ([]T, error) {
	return cache.Fetch(ctx, co.store, key, func(ctx context.Context) ([]T, error) {
		s, err := co.snapshot(ctx, budget.ID)
		if err != nil {
			return nil, err
		}

		result := build(s)
		if result == nil {
			result = make([]T, 0)
		}
		return result, nil
	})
}

// GetChildren lists the accounts of a budget or the subaccounts of an
// account or subaccount in their order.
func (co *Controller) GetChildren(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		ref, err := uriRef(c, kind)
		if err != nil {
			fail(c, err)
			return
		}

		_, budget, err := co.authorize(c, ref, false)
		if err != nil {
			fail(c, err)
			return
		}

		ctx := c.Request.Context()
		if kind == models.KindBudget {
			accounts, err := cached(ctx, co, cache.Children(ref), budget, func(s *tree.Snapshot) []Account {
				var accounts []Account
				for _, child := range s.Children(ref) {
					accounts = append(accounts, newAccount(s.Accounts[child.ID]))
				}
				return accounts
			})
			if err != nil {
				fail(c, err)
				return
			}

			for i := range accounts {
				accounts[i].redact(budget.Domain)
			}
			c.JSON(http.StatusOK, ListResponse[Account]{Data: accounts})
			return
		}

		subAccounts, err := cached(ctx, co, cache.Children(ref), budget, func(s *tree.Snapshot) []SubAccount {
			var subAccounts []SubAccount
			for _, child := range s.Children(ref) {
				subAccounts = append(subAccounts, newSubAccount(s.SubAccounts[child.ID]))
			}
			return subAccounts
		})
		if err != nil {
			fail(c, err)
			return
		}

		for i := range subAccounts {
			subAccounts[i].redact(budget.Domain)
		}
		c.JSON(http.StatusOK, ListResponse[SubAccount]{Data: subAccounts})
	}
}

// GetMarkups lists the markups that have the node as parent.
func (co *Controller) GetMarkups(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		ref, err := uriRef(c, kind)
		if err != nil {
			fail(c, err)
			return
		}

		_, budget, err := co.authorize(c, ref, false)
		if err != nil {
			fail(c, err)
			return
		}

		markups, err := cached(c.Request.Context(), co, cache.Markups(ref), budget, func(s *tree.Snapshot) []Markup {
			var markups []Markup
			for _, id := range s.OwnedMarkups(ref) {
				markups = append(markups, newMarkup(s.Markups[id]))
			}
			return markups
		})
		if err != nil {
			fail(c, err)
			return
		}

		for i := range markups {
			markups[i].redact(budget.Domain)
		}
		c.JSON(http.StatusOK, ListResponse[Markup]{Data: markups})
	}
}

// GetGroups lists the groups that have the node as parent.
func (co *Controller) GetGroups(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		ref, err := uriRef(c, kind)
		if err != nil {
			fail(c, err)
			return
		}

		_, budget, err := co.authorize(c, ref, false)
		if err != nil {
			fail(c, err)
			return
		}

		groups, err := cached(c.Request.Context(), co, cache.Groups(ref), budget, func(s *tree.Snapshot) []models.Group {
			var groups []models.Group
			for _, id := range s.GroupsOf(ref) {
				groups = append(groups, *s.Groups[id])
			}
			return groups
		})
		if err != nil {
			fail(c, err)
			return
		}

		c.JSON(http.StatusOK, ListResponse[models.Group]{Data: groups})
	}
}
