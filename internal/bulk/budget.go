package bulk

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/greenbudget/backend/internal/cache"
	"github.com/greenbudget/backend/internal/models"
	"github.com/greenbudget/backend/internal/tree"
	"gorm.io/gorm"
)

// BudgetPayload holds the fields of a created or updated budget.
type BudgetPayload struct {
	Name      Optional[string]        `json:"name"`
	Image     Optional[string]        `json:"image"`
	Domain    Optional[models.Domain] `json:"domain"`
	Community Optional[bool]          `json:"community"`
	Hidden    Optional[bool]          `json:"hidden"`
}

// Validate checks the fields of a budget payload.
//
// The domain is fixed once a budget exists: actuals and contacts only
// belong to budgets and would be stranded on a template.
func (p BudgetPayload) Validate(create bool) error {
	if create && !p.Name.Set {
		return invalid(-1, "name", "required")
	}

	if !create && p.Domain.Set {
		return invalid(-1, "domain", "not_allowed")
	}

	if p.Name.Set {
		if err := check(-1, "name", p.Name.Value, "required,max=255"); err != nil {
			return err
		}
	}

	if p.Image.Set {
		if err := check(-1, "image", p.Image.Value, "omitempty,url"); err != nil {
			return err
		}
	}

	if p.Domain.Set {
		if err := check(-1, "domain", string(p.Domain.Value), "oneof=budget template"); err != nil {
			return err
		}
	}

	return nil
}

func (p BudgetPayload) apply(b *models.Budget) {
	p.Name.apply(&b.Name)
	p.Image.apply(&b.Image)
	p.Domain.apply(&b.Domain)
	p.Community.apply(&b.Community)
	p.Hidden.apply(&b.Hidden)
}

// CreateBudget creates an empty budget owned by the actor.
func (c *Coordinator) CreateBudget(ctx context.Context, actor uuid.UUID, p BudgetPayload) (*models.Budget, error) {
	if err := p.Validate(true); err != nil {
		return nil, err
	}

	budget := &models.Budget{
		OwnerID:     actor,
		CreatedByID: actor,
		UpdatedByID: actor,
	}
	p.apply(budget)

	err := instrument(ctx, "create", models.KindBudget, func(ctx context.Context) error {
		return c.db.WithContext(ctx).Create(budget).Error
	})
	if err != nil {
		return nil, err
	}

	return budget, nil
}

// UpdateBudget changes the attributes of a budget.
func (c *Coordinator) UpdateBudget(ctx context.Context, actor uuid.UUID, id uuid.UUID, p BudgetPayload) (*models.Budget, error) {
	if err := p.Validate(false); err != nil {
		return nil, err
	}

	ref := models.Ref{Kind: models.KindBudget, ID: id}
	b, err := c.run(ctx, "update", models.KindBudget, ref, actor, func(b *batch) error {
		p.apply(b.s.Budget)
		b.s.Budget.UpdatedByID = actor

		if err := b.tx.Save(b.s.Budget).Error; err != nil {
			return err
		}

		b.touch(ref)
		b.rows++
		return nil
	})
	if err != nil {
		return nil, err
	}

	return b.s.Budget, nil
}

// DeleteBudget deletes a budget and all of its resources.
func (c *Coordinator) DeleteBudget(ctx context.Context, id uuid.UUID) error {
	var keys []string

	err := instrument(ctx, "delete", models.KindBudget, func(ctx context.Context) error {
		return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			s, err := tree.LoadForUpdate(tx, id)
			if err != nil {
				return missing(err)
			}

			keys = cache.Keys(s, everything(s))
			return deleteBudgetRows(tx, id)
		})
	})
	if err != nil {
		return err
	}

	c.store.Invalidate(ctx, keys)
	return nil
}

// deleteBudgetRows deletes all rows that belong to a budget.
func deleteBudgetRows(tx *gorm.DB, id uuid.UUID) error {
	subAccounts := tx.Model(&models.SubAccount{}).Select("id").Where("budget_id = ?", id)
	markups := tx.Model(&models.Markup{}).Select("id").Where("budget_id = ?", id)

	err := tx.Where("sub_account_id IN (?)", subAccounts).Delete(&models.SubAccountFringe{}).Error
	if err != nil {
		return err
	}

	err = tx.Where("markup_id IN (?)", markups).Delete(&models.MarkupChild{}).Error
	if err != nil {
		return err
	}

	for _, kind := range []models.Kind{models.KindActual, models.KindMarkup, models.KindGroup, models.KindSubAccount, models.KindAccount, models.KindFringe} {
		err = tx.Where("budget_id = ?", id).Delete(model(kind)).Error
		if err != nil {
			return fmt.Errorf("deleting %s rows: %w", kind, err)
		}
	}

	return tx.Where("id = ?", id).Delete(&models.Budget{}).Error
}

// everything lists all resources of a snapshot.
func everything(s *tree.Snapshot) []models.Ref {
	refs := []models.Ref{s.Budget.Self()}

	for _, a := range s.Accounts {
		refs = append(refs, a.Self())
	}
	for _, sa := range s.SubAccounts {
		refs = append(refs, sa.Self())
	}
	for _, f := range s.Fringes {
		refs = append(refs, f.Self())
	}
	for _, m := range s.Markups {
		refs = append(refs, m.Self())
	}
	for _, g := range s.Groups {
		refs = append(refs, g.Self())
	}
	for _, a := range s.Actuals {
		refs = append(refs, a.Self())
	}

	return refs
}

// instrument records metrics and a span for operations that do not need a
// snapshot of an existing budget.
func instrument(ctx context.Context, op string, kind models.Kind, fn func(context.Context) error) (err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "bulk."+op)

	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
			span.RecordError(err)
		}
		span.End()

		operationsTotal.WithLabelValues(string(kind), op, result).Inc()
		operationDuration.WithLabelValues(string(kind), op).Observe(time.Since(start).Seconds())
		logResult(op, kind, models.Ref{Kind: kind}, nil, err)
	}()

	return fn(ctx)
}
