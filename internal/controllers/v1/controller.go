// Package v1 contains the handlers of the v1 API.
package v1

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/greenbudget/backend/internal/auth"
	"github.com/greenbudget/backend/internal/bulk"
	"github.com/greenbudget/backend/internal/cache"
	"github.com/greenbudget/backend/internal/duplicate"
	"github.com/greenbudget/backend/internal/httputil"
	"github.com/greenbudget/backend/internal/models"
	"github.com/greenbudget/backend/internal/tree"
	"gorm.io/gorm"
)

// Controller holds everything the handlers need.
type Controller struct {
	db          *gorm.DB
	coordinator *bulk.Coordinator
	duplicator  *duplicate.Duplicator
	store       *cache.Store
}

// New returns a controller. A nil store disables caching.
func New(db *gorm.DB, store *cache.Store) *Controller {
	if store == nil {
		store = cache.NewStore(nil, 0)
	}

	return &Controller{
		db:          db,
		coordinator: bulk.New(db, store),
		duplicator:  duplicate.New(db),
		store:       store,
	}
}

// RegisterRoutes registers all routes of the v1 API with the RouterGroup.
func (co *Controller) RegisterRoutes(r *gin.RouterGroup) {
	{
		r.GET("", Get)
		r.OPTIONS("", Options)
	}

	co.RegisterBudgetRoutes(r.Group("/budgets"))
	co.RegisterAccountRoutes(r.Group("/accounts"))
	co.RegisterSubAccountRoutes(r.Group("/subaccounts"))
	co.RegisterRowRoutes(r.Group("/fringes"), models.KindFringe)
	co.RegisterRowRoutes(r.Group("/markups"), models.KindMarkup)
	co.RegisterRowRoutes(r.Group("/groups"), models.KindGroup)
	co.RegisterRowRoutes(r.Group("/actuals"), models.KindActual)
}

// URIID is the ID of the resource in the path.
type URIID struct {
	ID string `uri:"id" binding:"required" format:"UUID"` // ID of the resource
}

// uriRef parses the ID in the path into a reference of kind.
func uriRef(c *gin.Context, kind models.Kind) (models.Ref, error) {
	var uri URIID
	if err := c.ShouldBindUri(&uri); err != nil {
		return models.Ref{}, httputil.ErrInvalidUUID
	}

	id, err := httputil.UUIDFromString(uri.ID)
	if err != nil {
		return models.Ref{}, err
	}

	return models.Ref{Kind: kind, ID: id}, nil
}

// actor returns the authenticated actor of the request.
func actor(c *gin.Context) (auth.Actor, error) {
	a, ok := auth.FromContext(c)
	if !ok {
		return auth.Actor{}, auth.ErrUnauthenticated
	}
	return a, nil
}

// budget returns the read model of a budget.
func (co *Controller) budget(ctx context.Context, id uuid.UUID) (Budget, error) {
	return cache.Fetch(ctx, co.store, cache.BudgetDetail(id), func(ctx context.Context) (Budget, error) {
		var budget models.Budget
		if err := co.db.WithContext(ctx).First(&budget, id).Error; err != nil {
			return Budget{}, err
		}
		return newBudget(&budget), nil
	})
}

// authorize resolves the budget of a resource and checks that the actor may
// view it or, with edit set, change it.
func (co *Controller) authorize(c *gin.Context, ref models.Ref, edit bool) (auth.Actor, Budget, error) {
	a, err := actor(c)
	if err != nil {
		return a, Budget{}, err
	}

	ctx := c.Request.Context()
	budgetID, err := models.BudgetOf(co.db.WithContext(ctx), ref)
	if err != nil {
		return a, Budget{}, err
	}

	budget, err := co.budget(ctx, budgetID)
	if err != nil {
		return a, Budget{}, err
	}

	if edit {
		err = auth.CanEdit(a, &budget.Budget)
	} else {
		err = auth.CanView(a, &budget.Budget)
	}

	// Budgets the actor cannot see do not exist for them
	if err != nil && auth.CanView(a, &budget.Budget) != nil {
		return a, Budget{}, fmt.Errorf("%w budget matching your query", models.ErrResourceNotFound)
	}

	return a, budget, err
}

// snapshot loads all resources of a budget.
func (co *Controller) snapshot(ctx context.Context, budgetID uuid.UUID) (*tree.Snapshot, error) {
	return tree.Load(co.db.WithContext(ctx), budgetID)
}
