package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/greenbudget/backend/internal/bulk"
	"github.com/greenbudget/backend/internal/cache"
	"github.com/greenbudget/backend/internal/duplicate"
	"github.com/greenbudget/backend/internal/httputil"
	"github.com/greenbudget/backend/internal/models"
	"github.com/greenbudget/backend/internal/tree"
	"gorm.io/gorm"
)

// RegisterBudgetRoutes registers the routes for Budgets with
// the RouterGroup that is passed.
func (co *Controller) RegisterBudgetRoutes(r *gin.RouterGroup) {
	// Root group
	{
		r.OPTIONS("", httputil.OptionsGetPost)
		r.GET("", co.GetBudgets)
		r.POST("", co.CreateBudget)
	}

	// Budget with ID
	{
		r.OPTIONS("/:id", httputil.OptionsGetPatchDelete)
		r.GET("/:id", co.GetBudget)
		r.PATCH("/:id", co.UpdateBudget)
		r.DELETE("/:id", co.DeleteBudget)

		r.OPTIONS("/:id/duplicate", httputil.OptionsPost)
		r.POST("/:id/duplicate", co.DuplicateBudget)

		r.OPTIONS("/:id/fringes", httputil.OptionsGet)
		r.GET("/:id/fringes", co.GetBudgetFringes)
		r.OPTIONS("/:id/actuals", httputil.OptionsGet)
		r.GET("/:id/actuals", co.GetBudgetActuals)
		r.OPTIONS("/:id/actual-owners", httputil.OptionsGet)
		r.GET("/:id/actual-owners", co.GetBudgetActualOwners)
	}

	co.registerNodeRoutes(r, models.KindBudget)
	co.registerBulkRoutes(r, models.KindBudget,
		models.KindAccount,
		models.KindFringe,
		models.KindMarkup,
		models.KindGroup,
		models.KindActual,
	)
}

type BudgetQueryFilter struct {
	Domain models.Domain `form:"domain"`                     // Only budgets of this domain
	Search string        `form:"search" filterField:"false"` // Search for this text in the name
	Offset uint          `form:"offset" filterField:"false"` // The offset of the first budget returned
	Limit  int           `form:"limit" filterField:"false"`  // Maximum number of budgets to return
}

func (f BudgetQueryFilter) model() models.Budget {
	return models.Budget{
		Domain: f.Domain,
	}
}

// GetBudgets lists the budgets and templates of the user together with
// the community templates visible to them.
func (co *Controller) GetBudgets(c *gin.Context) {
	a, err := actor(c)
	if err != nil {
		fail(c, err)
		return
	}

	var filter BudgetQueryFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		fail(c, httputil.ErrInvalidQueryString)
		return
	}

	// Get the fields that we're filtering for
	fields := httputil.ParseFilter(c.Request.URL, filter)

	community := co.db.Where("community = ?", true)
	if !a.Staff {
		community = community.Where("hidden = ?", false)
	}

	// Always sort by name
	q := co.db.WithContext(c.Request.Context()).
		Model(&models.Budget{}).
		Where(co.db.Where("owner_id = ?", a.UserID).Or(community)).
		Order("name ASC")

	q = fields.Where(q, filter.model())

	if filter.Search != "" {
		q = q.Where("name LIKE ?", "%"+filter.Search+"%")
	}

	// The query is used for counting and for finding
	q = q.Session(&gorm.Session{})

	var count int64
	if err := q.Count(&count).Error; err != nil {
		fail(c, err)
		return
	}

	limit := 50
	if fields.IsSet("Limit") {
		limit = filter.Limit
	}

	var budgets []models.Budget
	err = q.Offset(int(filter.Offset)).Limit(limit).Find(&budgets).Error
	if err != nil {
		fail(c, err)
		return
	}

	data := make([]Budget, 0, len(budgets))
	for i := range budgets {
		data = append(data, newBudget(&budgets[i]))
	}

	c.JSON(http.StatusOK, ListResponse[Budget]{
		Data: data,
		Pagination: &Pagination{
			Count:  len(data),
			Total:  count,
			Offset: filter.Offset,
			Limit:  limit,
		},
	})
}

// CreateBudget creates an empty budget or template owned by the user.
func (co *Controller) CreateBudget(c *gin.Context) {
	a, err := actor(c)
	if err != nil {
		fail(c, err)
		return
	}

	var payload bulk.BudgetPayload
	if err := httputil.BindData(c, &payload); err != nil {
		fail(c, err)
		return
	}

	budget, err := co.coordinator.CreateBudget(c.Request.Context(), a.UserID, payload)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response[Budget]{Data: newBudget(budget)})
}

func (co *Controller) GetBudget(c *gin.Context) {
	ref, err := uriRef(c, models.KindBudget)
	if err != nil {
		fail(c, err)
		return
	}

	_, budget, err := co.authorize(c, ref, false)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, Response[Budget]{Data: budget})
}

// UpdateBudget changes the fields present in the body. The domain cannot
// be changed.
func (co *Controller) UpdateBudget(c *gin.Context) {
	ref, err := uriRef(c, models.KindBudget)
	if err != nil {
		fail(c, err)
		return
	}

	a, _, err := co.authorize(c, ref, true)
	if err != nil {
		fail(c, err)
		return
	}

	var payload bulk.BudgetPayload
	if err := httputil.BindData(c, &payload); err != nil {
		fail(c, err)
		return
	}

	budget, err := co.coordinator.UpdateBudget(c.Request.Context(), a.UserID, ref.ID, payload)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, Response[Budget]{Data: newBudget(budget)})
}

// DeleteBudget deletes a budget with all of its resources.
func (co *Controller) DeleteBudget(c *gin.Context) {
	ref, err := uriRef(c, models.KindBudget)
	if err != nil {
		fail(c, err)
		return
	}

	_, _, err = co.authorize(c, ref, true)
	if err != nil {
		fail(c, err)
		return
	}

	err = co.coordinator.DeleteBudget(c.Request.Context(), ref.ID)
	if err != nil {
		fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// DuplicateBudget copies a budget or template with all of its resources.
// The copy is owned by the user.
func (co *Controller) DuplicateBudget(c *gin.Context) {
	ref, err := uriRef(c, models.KindBudget)
	if err != nil {
		fail(c, err)
		return
	}

	a, _, err := co.authorize(c, ref, false)
	if err != nil {
		fail(c, err)
		return
	}

	// All options are optional, so is the body
	var request DuplicateRequest
	err = httputil.BindData(c, &request)
	if err != nil && !errors.Is(err, httputil.ErrRequestBodyEmpty) {
		fail(c, err)
		return
	}

	budget, err := co.duplicator.Duplicate(c.Request.Context(), ref.ID, duplicate.Options{
		Owner:          a.UserID,
		Name:           request.Name,
		Domain:         request.Domain,
		IncludeActuals: request.IncludeActuals,
	})
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response[Budget]{Data: newBudget(budget)})
}

// GetBudgetFringes returns the fringes of a budget in their order.
func (co *Controller) GetBudgetFringes(c *gin.Context) {
	ref, err := uriRef(c, models.KindBudget)
	if err != nil {
		fail(c, err)
		return
	}

	_, budget, err := co.authorize(c, ref, false)
	if err != nil {
		fail(c, err)
		return
	}

	fringes, err := cached(c.Request.Context(), co, cache.BudgetFringes(ref.ID), budget, func(s *tree.Snapshot) []models.Fringe {
		var fringes []models.Fringe
		for _, f := range s.Siblings(models.KindFringe, ref) {
			fringes = append(fringes, *s.Fringes[f.ID])
		}
		return fringes
	})
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, ListResponse[models.Fringe]{Data: fringes})
}

// GetBudgetActuals returns the actuals of a budget in their order.
func (co *Controller) GetBudgetActuals(c *gin.Context) {
	ref, err := uriRef(c, models.KindBudget)
	if err != nil {
		fail(c, err)
		return
	}

	_, budget, err := co.authorize(c, ref, false)
	if err != nil {
		fail(c, err)
		return
	}

	actuals, err := cached(c.Request.Context(), co, cache.BudgetActuals(ref.ID), budget, func(s *tree.Snapshot) []models.Actual {
		var actuals []models.Actual
		for _, a := range s.Siblings(models.KindActual, ref) {
			actuals = append(actuals, *s.Actuals[a.ID])
		}
		return actuals
	})
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, ListResponse[models.Actual]{Data: actuals})
}

// GetBudgetActualOwners lists the subaccounts and markups actuals can be
// attributed to.
func (co *Controller) GetBudgetActualOwners(c *gin.Context) {
	ref, err := uriRef(c, models.KindBudget)
	if err != nil {
		fail(c, err)
		return
	}

	_, budget, err := co.authorize(c, ref, false)
	if err != nil {
		fail(c, err)
		return
	}

	owners, err := cached(c.Request.Context(), co, cache.BudgetActualOwners(ref.ID), budget, actualOwners)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, ListResponse[ActualOwner]{Data: owners})
}

// actualOwners lists the subaccounts depth first in the order of the tree,
// each followed by the markups it is the parent of.
func actualOwners(s *tree.Snapshot) []ActualOwner {
	var owners []ActualOwner

	markups := func(parent models.Ref) {
		for _, id := range s.OwnedMarkups(parent) {
			m := s.Markups[id]
			owners = append(owners, ActualOwner{Ref: m.Self(), Identifier: m.Identifier, Description: m.Description})
		}
	}

	var walk func(parent models.Ref)
	walk = func(parent models.Ref) {
		for _, child := range s.Children(parent) {
			if child.Kind == models.KindSubAccount {
				sa := s.SubAccounts[child.ID]
				owners = append(owners, ActualOwner{Ref: child, Identifier: sa.Identifier, Description: sa.Description})
			}

			walk(child)
			markups(child)
		}
	}

	markups(s.Budget.Self())
	walk(s.Budget.Self())

	return owners
}
