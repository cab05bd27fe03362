package bulk

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/greenbudget/backend/internal/models"
	"github.com/greenbudget/backend/internal/ordering"
)

// ordered reports if rows of kind carry an order key.
func ordered(kind models.Kind) bool {
	switch kind {
	case models.KindAccount, models.KindSubAccount, models.KindFringe, models.KindActual:
		return true
	}
	return false
}

func (b *batch) create(parent models.Ref, kind models.Kind, payloads []Payload) ([]any, error) {
	var keys []string
	if ordered(kind) {
		var last string
		if siblings := b.s.SiblingKeys(kind, parent); len(siblings) > 0 {
			last = siblings[len(siblings)-1]
		}

		var err error
		keys, err = ordering.Sequence(last, "", len(payloads))
		if err != nil {
			return nil, err
		}
	}

	created := make([]any, 0, len(payloads))
	for i, p := range payloads {
		row, err := b.build(i, parent, kind, p)
		if err != nil {
			return nil, err
		}

		if keys != nil {
			setOrder(row, keys[i])
		}

		err = b.insert(i, row)
		if errors.Is(err, models.ErrOrderNotUnique) && keys != nil {
			conflictRetries.Inc()

			var fresh []string
			fresh, err = b.freshKeys(kind, parent, len(payloads)-i)
			if err != nil {
				return nil, err
			}

			keys = append(keys[:i], fresh...)
			setOrder(row, keys[i])
			err = b.insert(i, row)
			if errors.Is(err, models.ErrOrderNotUnique) {
				return nil, fmt.Errorf("%w: row %d: %w", ErrConflict, i, err)
			}
		}
		if err != nil {
			return nil, rowError(i, err)
		}

		if err := b.writeLinks(row); err != nil {
			return nil, rowError(i, err)
		}

		b.s.Put(row)
		ref := refOf(row)
		b.affect(b.s.Affected(ref)...)
		b.touch(ref)
		b.rows++

		created = append(created, row)
	}

	return created, nil
}

// build creates the row for a payload and verifies its references against
// the snapshot.
func (b *batch) build(i int, parent models.Ref, kind models.Kind, p Payload) (any, error) {
	budget := b.s.Budget.ID

	switch kind {
	case models.KindAccount:
		a := &models.Account{BudgetID: budget, CreatedByID: b.actor, UpdatedByID: b.actor}
		p.applyAccount(a)
		return a, b.checkGroup(i, a.GroupID, parent)

	case models.KindSubAccount:
		sa := &models.SubAccount{BudgetID: budget, ParentKind: parent.Kind, ParentID: parent.ID, CreatedByID: b.actor, UpdatedByID: b.actor}
		p.applySubAccount(sa)
		if err := b.checkGroup(i, sa.GroupID, parent); err != nil {
			return nil, err
		}
		return sa, b.checkFringes(i, sa.Fringes)

	case models.KindFringe:
		f := &models.Fringe{BudgetID: budget, Unit: models.UnitPercent, CreatedByID: b.actor, UpdatedByID: b.actor}
		p.applyFringe(f)
		return f, nil

	case models.KindMarkup:
		m := &models.Markup{BudgetID: budget, ParentKind: parent.Kind, ParentID: parent.ID, Unit: models.UnitPercent, CreatedByID: b.actor, UpdatedByID: b.actor}
		p.applyMarkup(m)
		return m, b.checkChildren(i, m)

	case models.KindGroup:
		g := &models.Group{BudgetID: budget, ParentKind: parent.Kind, ParentID: parent.ID, CreatedByID: b.actor, UpdatedByID: b.actor}
		p.applyGroup(g)
		return g, nil

	case models.KindActual:
		a := &models.Actual{BudgetID: budget, CreatedByID: b.actor, UpdatedByID: b.actor}
		p.applyActual(a)
		return a, b.checkOwner(i, a)
	}

	return nil, invalid(-1, "kind", "not_supported")
}

// insert creates a row. A failed insert is rolled back to a savepoint so
// that the transaction stays usable.
func (b *batch) insert(i int, row any) error {
	name := fmt.Sprintf("bulk_row_%d", i)

	if err := b.tx.SavePoint(name).Error; err != nil {
		return err
	}

	err := b.tx.Create(row).Error
	if err != nil {
		if rollbackErr := b.tx.RollbackTo(name).Error; rollbackErr != nil {
			return errors.Join(err, rollbackErr)
		}
	}

	return err
}

// freshKeys reads the largest order key of a table from the database and
// returns n keys after it.
func (b *batch) freshKeys(kind models.Kind, parent models.Ref, n int) ([]string, error) {
	query := b.tx.Model(model(kind)).Select("COALESCE(MAX(order_key), '')")
	if kind == models.KindSubAccount {
		query = query.Where("parent_kind = ? AND parent_id = ?", parent.Kind, parent.ID)
	} else {
		query = query.Where("budget_id = ?", b.s.Budget.ID)
	}

	var last string
	if err := query.Row().Scan(&last); err != nil {
		return nil, err
	}

	return ordering.Sequence(last, "", n)
}

// writeLinks replaces the fringes of a subaccount or the children of a markup.
func (b *batch) writeLinks(row any) error {
	switch r := row.(type) {
	case *models.SubAccount:
		err := b.tx.Where("sub_account_id = ?", r.ID).Delete(&models.SubAccountFringe{}).Error
		if err != nil {
			return err
		}

		for _, id := range r.Fringes {
			err = b.tx.Create(&models.SubAccountFringe{SubAccountID: r.ID, FringeID: id}).Error
			if err != nil {
				return err
			}
		}

	case *models.Markup:
		err := b.tx.Where("markup_id = ?", r.ID).Delete(&models.MarkupChild{}).Error
		if err != nil {
			return err
		}

		kind := models.ChildKind(r.ParentKind)
		for _, id := range r.Children {
			err = b.tx.Create(&models.MarkupChild{MarkupID: r.ID, ChildKind: kind, ChildID: id}).Error
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func (b *batch) checkGroup(i int, id *uuid.UUID, parent models.Ref) error {
	if id == nil {
		return nil
	}

	ref := models.Ref{Kind: models.KindGroup, ID: *id}
	if !b.s.Exists(ref) {
		return invalid(i, "groupId", "not_found")
	}

	if b.s.Groups[*id].Parent() != parent {
		return invalid(i, "groupId", "invalid")
	}

	return nil
}

func (b *batch) checkFringes(i int, ids []uuid.UUID) error {
	for _, id := range ids {
		if !b.s.Exists(models.Ref{Kind: models.KindFringe, ID: id}) {
			return invalid(i, "fringes", "not_found")
		}
	}
	return nil
}

// checkChildren verifies that all children of a markup share its parent.
func (b *batch) checkChildren(i int, m *models.Markup) error {
	kind := models.ChildKind(m.ParentKind)

	for _, id := range m.Children {
		child := models.Ref{Kind: kind, ID: id}
		if !b.s.Exists(child) {
			return invalid(i, "children", "not_found")
		}

		if parent, _ := b.s.Parent(child); parent != m.Parent() {
			return invalid(i, "children", "invalid")
		}
	}

	return nil
}

func (b *batch) checkOwner(i int, a *models.Actual) error {
	owner, ok := a.Owner()
	if !ok {
		return nil
	}

	if !b.s.Exists(owner) {
		return invalid(i, "owner", "not_found")
	}

	return nil
}

func rowError(i int, err error) error {
	return fmt.Errorf("row %d: %w", i, err)
}

// model returns an empty row of kind to select its table.
func model(kind models.Kind) any {
	switch kind {
	case models.KindBudget:
		return &models.Budget{}
	case models.KindAccount:
		return &models.Account{}
	case models.KindSubAccount:
		return &models.SubAccount{}
	case models.KindFringe:
		return &models.Fringe{}
	case models.KindMarkup:
		return &models.Markup{}
	case models.KindGroup:
		return &models.Group{}
	case models.KindActual:
		return &models.Actual{}
	}
	panic(fmt.Sprintf("bulk: no table for kind '%s'", kind))
}

func refOf(row any) models.Ref {
	switch r := row.(type) {
	case *models.Account:
		return r.Self()
	case *models.SubAccount:
		return r.Self()
	case *models.Fringe:
		return r.Self()
	case *models.Markup:
		return r.Self()
	case *models.Group:
		return r.Self()
	case *models.Actual:
		return r.Self()
	}
	panic(fmt.Sprintf("bulk: %T is not a row", row))
}

func setOrder(row any, key string) {
	switch r := row.(type) {
	case *models.Account:
		r.Order = key
	case *models.SubAccount:
		r.Order = key
	case *models.Fringe:
		r.Order = key
	case *models.Actual:
		r.Order = key
	}
}
