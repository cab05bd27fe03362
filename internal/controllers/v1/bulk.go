package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/greenbudget/backend/internal/bulk"
	"github.com/greenbudget/backend/internal/httputil"
	"github.com/greenbudget/backend/internal/models"
)

// registerBulkRoutes registers the batched endpoints for every child kind
// of the parent kind.
func (co *Controller) registerBulkRoutes(r *gin.RouterGroup, parent models.Kind, kinds ...models.Kind) {
	for _, kind := range kinds {
		plural := string(kind) + "s"

		r.OPTIONS("/:id/bulk-create-"+plural, httputil.OptionsPost)
		r.POST("/:id/bulk-create-"+plural, co.BulkCreate(parent, kind))
		r.OPTIONS("/:id/bulk-update-"+plural, httputil.OptionsPatch)
		r.PATCH("/:id/bulk-update-"+plural, co.BulkUpdate(parent, kind))
		r.OPTIONS("/:id/bulk-delete-"+plural, httputil.OptionsPatch)
		r.PATCH("/:id/bulk-delete-"+plural, co.BulkDelete(parent, kind))
	}
}

// bulkResult converts the result of the coordinator into read models.
func bulkResult(result *bulk.Result) BulkResult {
	domain := result.Budget.Domain

	children := make([]any, 0, len(result.Children))
	for _, child := range result.Children {
		children = append(children, readModel(child, domain))
	}

	return BulkResult{
		Budget:   newBudget(result.Budget),
		Parent:   readModel(result.Parent, domain),
		Children: children,
	}
}

// BulkCreate creates rows below the parent in one transaction. Rows are
// appended after all existing rows, in the order of the payloads.
func (co *Controller) BulkCreate(parentKind, kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		parent, err := uriRef(c, parentKind)
		if err != nil {
			fail(c, err)
			return
		}

		a, _, err := co.authorize(c, parent, true)
		if err != nil {
			fail(c, err)
			return
		}

		var payloads []bulk.Payload
		if err := httputil.BindData(c, &payloads); err != nil {
			fail(c, err)
			return
		}

		result, err := co.coordinator.Create(c.Request.Context(), a.UserID, parent, kind, payloads)
		if err != nil {
			fail(c, err)
			return
		}

		c.JSON(http.StatusCreated, Response[BulkResult]{Data: bulkResult(result)})
	}
}

// BulkUpdate updates rows below the parent in one transaction.
func (co *Controller) BulkUpdate(parentKind, kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		parent, err := uriRef(c, parentKind)
		if err != nil {
			fail(c, err)
			return
		}

		a, _, err := co.authorize(c, parent, true)
		if err != nil {
			fail(c, err)
			return
		}

		var patches []bulk.Patch
		if err := httputil.BindData(c, &patches); err != nil {
			fail(c, err)
			return
		}

		result, err := co.coordinator.Update(c.Request.Context(), a.UserID, parent, kind, patches)
		if err != nil {
			fail(c, err)
			return
		}

		c.JSON(http.StatusOK, Response[BulkResult]{Data: bulkResult(result)})
	}
}

// BulkDelete deletes rows below the parent together with everything below
// them. Missing rows are skipped unless strict is set.
func (co *Controller) BulkDelete(parentKind, kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		parent, err := uriRef(c, parentKind)
		if err != nil {
			fail(c, err)
			return
		}

		a, _, err := co.authorize(c, parent, true)
		if err != nil {
			fail(c, err)
			return
		}

		var data BulkDelete
		if err := httputil.BindData(c, &data); err != nil {
			fail(c, err)
			return
		}

		result, err := co.coordinator.Delete(c.Request.Context(), a.UserID, parent, kind, data.IDs, bulk.DeleteOptions{Strict: data.Strict})
		if err != nil {
			fail(c, err)
			return
		}

		c.JSON(http.StatusOK, Response[BulkResult]{Data: bulkResult(result)})
	}
}
