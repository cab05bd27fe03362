package bulk

import (
	"context"

	"github.com/google/uuid"
	"github.com/greenbudget/backend/internal/models"
	"github.com/greenbudget/backend/internal/ordering"
)

// Rekey redistributes the order keys of every table of every budget.
// The order of the rows does not change. It returns the number of rows
// that received a new key.
func (c *Coordinator) Rekey(ctx context.Context) (int, error) {
	var ids []uuid.UUID
	if err := c.db.WithContext(ctx).Model(&models.Budget{}).Pluck("id", &ids).Error; err != nil {
		return 0, err
	}

	total := 0
	for _, id := range ids {
		n, err := c.RekeyBudget(ctx, id)
		if err != nil {
			return total, err
		}
		total += n
	}

	return total, nil
}

// RekeyBudget redistributes the order keys of every table of a budget.
func (c *Coordinator) RekeyBudget(ctx context.Context, id uuid.UUID) (int, error) {
	budget := models.Ref{Kind: models.KindBudget, ID: id}

	b, err := c.run(ctx, "rekey", models.KindBudget, budget, uuid.Nil, func(b *batch) error {
		tables := [][]models.Ref{
			b.s.Siblings(models.KindAccount, budget),
			b.s.Siblings(models.KindFringe, budget),
			b.s.Siblings(models.KindActual, budget),
		}

		for _, a := range b.s.Accounts {
			tables = append(tables, b.s.Siblings(models.KindSubAccount, a.Self()))
		}
		for _, sa := range b.s.SubAccounts {
			tables = append(tables, b.s.Siblings(models.KindSubAccount, sa.Self()))
		}

		for _, rows := range tables {
			if err := b.rekey(rows); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return b.rows, nil
}

// rekey assigns evenly spread keys to the rows of one table, sorted by their
// current order.
func (b *batch) rekey(rows []models.Ref) error {
	keys := ordering.Rekey(len(rows))

	var changed []int
	for i, r := range rows {
		if b.s.Order(r) != keys[i] {
			changed = append(changed, i)
		}
	}

	// Move the rows out of the way first so that no intermediate state
	// violates the uniqueness of the keys
	for _, i := range changed {
		r := rows[i]
		err := b.tx.Model(model(r.Kind)).Where("id = ?", r.ID).UpdateColumn("order_key", "~"+r.ID.String()).Error
		if err != nil {
			return err
		}
	}

	for _, i := range changed {
		r := rows[i]
		err := b.tx.Model(model(r.Kind)).Where("id = ?", r.ID).UpdateColumn("order_key", keys[i]).Error
		if err != nil {
			return err
		}

		row := b.resource(r)
		setOrder(row, keys[i])
		b.s.Put(row)
		b.touch(r)
		b.rows++
	}

	return nil
}
