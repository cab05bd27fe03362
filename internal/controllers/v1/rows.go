package v1

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/greenbudget/backend/internal/bulk"
	"github.com/greenbudget/backend/internal/cache"
	"github.com/greenbudget/backend/internal/httputil"
	"github.com/greenbudget/backend/internal/models"
	"github.com/greenbudget/backend/internal/tree"
)

// RegisterAccountRoutes registers the routes for Accounts with
// the RouterGroup that is passed.
func (co *Controller) RegisterAccountRoutes(r *gin.RouterGroup) {
	co.RegisterRowRoutes(r, models.KindAccount)
	co.registerNodeRoutes(r, models.KindAccount)
	co.registerBulkRoutes(r, models.KindAccount, models.KindSubAccount, models.KindMarkup, models.KindGroup)
}

// RegisterSubAccountRoutes registers the routes for SubAccounts with
// the RouterGroup that is passed.
func (co *Controller) RegisterSubAccountRoutes(r *gin.RouterGroup) {
	co.RegisterRowRoutes(r, models.KindSubAccount)
	co.registerNodeRoutes(r, models.KindSubAccount)
	co.registerBulkRoutes(r, models.KindSubAccount, models.KindSubAccount, models.KindMarkup, models.KindGroup)
}

// RegisterRowRoutes registers the routes for a single row of kind.
func (co *Controller) RegisterRowRoutes(r *gin.RouterGroup, kind models.Kind) {
	r.OPTIONS("/:id", httputil.OptionsGetPatchDelete)
	r.GET("/:id", co.GetRow(kind))
	r.PATCH("/:id", co.UpdateRow(kind))
	r.DELETE("/:id", co.DeleteRow(kind))
}

// RowPatch either moves a row or changes its fields, never both.
type RowPatch struct {
	bulk.MoveRequest
	bulk.Payload
}

func (p RowPatch) move() bool {
	return p.Order != nil || p.Previous.Set
}

// row returns the read model of a row.
func (co *Controller) row(ctx context.Context, ref models.Ref, budget Budget) (any, error) {
	load := func(ctx context.Context) (*tree.Snapshot, error) {
		s, err := co.snapshot(ctx, budget.ID)
		if err != nil {
			return nil, err
		}

		if !s.Exists(ref) {
			return nil, fmt.Errorf("%w %s matching your query", models.ErrResourceNotFound, ref.Kind)
		}
		return s, nil
	}

	switch ref.Kind {
	case models.KindAccount:
		a, err := cache.Fetch(ctx, co.store, cache.AccountDetail(ref.ID), func(ctx context.Context) (Account, error) {
			s, err := load(ctx)
			if err != nil {
				return Account{}, err
			}
			return newAccount(s.Accounts[ref.ID]), nil
		})
		a.redact(budget.Domain)
		return a, err

	case models.KindSubAccount:
		sa, err := cache.Fetch(ctx, co.store, cache.SubAccountDetail(ref.ID), func(ctx context.Context) (SubAccount, error) {
			s, err := load(ctx)
			if err != nil {
				return SubAccount{}, err
			}
			return newSubAccount(s.SubAccounts[ref.ID]), nil
		})
		sa.redact(budget.Domain)
		return sa, err
	}

	s, err := load(ctx)
	if err != nil {
		return nil, err
	}

	switch ref.Kind {
	case models.KindMarkup:
		m := newMarkup(s.Markups[ref.ID])
		m.redact(budget.Domain)
		return m, nil
	case models.KindFringe:
		return s.Fringes[ref.ID], nil
	case models.KindGroup:
		return s.Groups[ref.ID], nil
	case models.KindActual:
		return s.Actuals[ref.ID], nil
	}

	return nil, fmt.Errorf("%w: unknown kind '%s'", models.ErrIntegrity, ref.Kind)
}

// parent returns the parent of a row.
func (co *Controller) parent(ctx context.Context, ref models.Ref, budget Budget) (models.Ref, error) {
	s, err := co.snapshot(ctx, budget.ID)
	if err != nil {
		return models.Ref{}, err
	}

	parent, ok := s.Parent(ref)
	if !ok {
		return models.Ref{}, fmt.Errorf("%w %s matching your query", models.ErrResourceNotFound, ref.Kind)
	}
	return parent, nil
}

// GetRow returns a specific account, subaccount, fringe, markup, group or actual.
func (co *Controller) GetRow(kind models.Kind) gin.HandlerFunc {
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

		data, err := co.row(c.Request.Context(), ref, budget)
		if err != nil {
			fail(c, err)
			return
		}

		c.JSON(http.StatusOK, Response[any]{Data: data})
	}
}

// UpdateRow updates a row. With "order" or "previous", the row is moved
// instead and the response contains its new order key.
func (co *Controller) UpdateRow(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		ref, err := uriRef(c, kind)
		if err != nil {
			fail(c, err)
			return
		}

		a, budget, err := co.authorize(c, ref, true)
		if err != nil {
			fail(c, err)
			return
		}

		var patch RowPatch
		if err := httputil.BindData(c, &patch); err != nil {
			fail(c, err)
			return
		}

		ctx := c.Request.Context()
		if patch.move() {
			if !patch.Payload.Empty() {
				fail(c, bulk.ValidationError{Index: -1, Field: "order", Code: "not_allowed"})
				return
			}

			key, err := co.coordinator.Move(ctx, a.UserID, ref, patch.MoveRequest)
			if err != nil {
				fail(c, err)
				return
			}

			c.JSON(http.StatusOK, Response[OrderResponse]{Data: OrderResponse{Order: key}})
			return
		}

		parent, err := co.parent(ctx, ref, budget)
		if err != nil {
			fail(c, err)
			return
		}

		result, err := co.coordinator.Update(ctx, a.UserID, parent, kind, []bulk.Patch{{ID: ref.ID, Payload: patch.Payload}})
		if err != nil {
			fail(c, err)
			return
		}

		c.JSON(http.StatusOK, Response[BulkResult]{Data: bulkResult(result)})
	}
}

// DeleteRow deletes a row together with everything below it.
func (co *Controller) DeleteRow(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		ref, err := uriRef(c, kind)
		if err != nil {
			fail(c, err)
			return
		}

		a, budget, err := co.authorize(c, ref, true)
		if err != nil {
			fail(c, err)
			return
		}

		ctx := c.Request.Context()
		parent, err := co.parent(ctx, ref, budget)
		if err != nil {
			fail(c, err)
			return
		}

		_, err = co.coordinator.Delete(ctx, a.UserID, parent, kind, []uuid.UUID{ref.ID}, bulk.DeleteOptions{Strict: true})
		if err != nil {
			fail(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}
