package bulk

import (
	"github.com/google/uuid"
	"github.com/greenbudget/backend/internal/models"
	"golang.org/x/exp/slices"
)

func (b *batch) delete(parent models.Ref, kind models.Kind, ids []uuid.UUID, strict bool) error {
	for i, id := range ids {
		ref := models.Ref{Kind: kind, ID: id}

		p, _ := b.s.Parent(ref)
		if !b.s.Exists(ref) || p != parent {
			if strict {
				return notFound(i, ref)
			}
			continue
		}

		if err := b.remove(ref); err != nil {
			return rowError(i, err)
		}
		b.rows++
	}

	return nil
}

// remove deletes a resource and everything that depends on it.
func (b *batch) remove(ref models.Ref) error {
	switch ref.Kind {
	case models.KindAccount, models.KindSubAccount:
		return b.removeNode(ref)

	case models.KindFringe:
		b.affect(b.s.Affected(ref)...)

		for _, id := range b.s.Holders(ref.ID) {
			sa := b.s.SubAccounts[id]
			sa.Fringes = slices.DeleteFunc(sa.Fringes, func(f uuid.UUID) bool { return f == ref.ID })
			b.s.Put(sa)
			b.touch(sa.Self())
		}

		err := b.tx.Where("fringe_id = ?", ref.ID).Delete(&models.SubAccountFringe{}).Error
		if err != nil {
			return err
		}

		b.s.Remove(ref)
		b.touch(ref)
		return b.tx.Where("id = ?", ref.ID).Delete(&models.Fringe{}).Error

	case models.KindMarkup:
		b.affect(b.s.Affected(ref)...)
		b.touch(ref)

		if err := b.detachActuals(ref); err != nil {
			return err
		}

		b.s.Remove(ref)
		return b.deleteRows(models.KindMarkup, []uuid.UUID{ref.ID})

	case models.KindGroup:
		if err := b.ungroup(ref.ID); err != nil {
			return err
		}

		b.s.Remove(ref)
		b.touch(ref)
		return b.tx.Where("id = ?", ref.ID).Delete(&models.Group{}).Error

	case models.KindActual:
		b.affect(b.s.Affected(ref)...)
		b.s.Remove(ref)
		b.touch(ref)
		return b.tx.Where("id = ?", ref.ID).Delete(&models.Actual{}).Error
	}

	return invalid(-1, "kind", "not_supported")
}

// removeNode deletes an account or subaccount with all subaccounts,
// markups and groups below it.
func (b *batch) removeNode(ref models.Ref) error {
	doomed := append(b.s.Descendants(ref), ref)

	if parent, ok := b.s.Parent(ref); ok {
		b.affect(parent)
	}

	// Markups next to the node lose it as a child
	for _, id := range b.s.MarkupsOf(ref) {
		m := b.s.Markups[id]
		b.affect(m.Self())
		m.Children = slices.DeleteFunc(m.Children, func(c uuid.UUID) bool { return c == ref.ID })
		b.s.Put(m)
		b.touch(m.Self())
	}

	byKind := make(map[models.Kind][]uuid.UUID)
	for _, d := range doomed {
		if d.Kind == models.KindSubAccount || d.Kind == models.KindMarkup {
			if err := b.detachActuals(d); err != nil {
				return err
			}
		}

		byKind[d.Kind] = append(byKind[d.Kind], d.ID)
		b.s.Remove(d)
		b.touch(d)
	}

	for _, kind := range []models.Kind{models.KindMarkup, models.KindGroup, models.KindSubAccount, models.KindAccount} {
		if err := b.deleteRows(kind, byKind[kind]); err != nil {
			return err
		}
	}

	return nil
}

// deleteRows deletes rows of one kind together with their link rows.
func (b *batch) deleteRows(kind models.Kind, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	var err error
	switch kind {
	case models.KindSubAccount:
		err = b.tx.Where("sub_account_id IN ?", ids).Delete(&models.SubAccountFringe{}).Error
		if err == nil {
			err = b.tx.Where("child_kind = ? AND child_id IN ?", kind, ids).Delete(&models.MarkupChild{}).Error
		}
	case models.KindAccount:
		err = b.tx.Where("child_kind = ? AND child_id IN ?", kind, ids).Delete(&models.MarkupChild{}).Error
	case models.KindMarkup:
		err = b.tx.Where("markup_id IN ?", ids).Delete(&models.MarkupChild{}).Error
	}
	if err != nil {
		return err
	}

	return b.tx.Where("id IN ?", ids).Delete(model(kind)).Error
}

// detachActuals removes the owner from all actuals of a subaccount or
// markup. The actuals are kept.
func (b *batch) detachActuals(owner models.Ref) error {
	ids := b.s.ActualsOf(owner)
	if len(ids) == 0 {
		return nil
	}

	err := b.tx.Model(&models.Actual{}).Where("id IN ?", ids).UpdateColumns(map[string]any{
		"owner_kind": "",
		"owner_id":   nil,
	}).Error
	if err != nil {
		return err
	}

	for _, id := range ids {
		a := b.s.Actuals[id]
		a.OwnerKind = ""
		a.OwnerID = nil
		b.s.Put(a)
		b.touch(a.Self())
	}

	return nil
}

// ungroup removes all accounts and subaccounts from a group.
func (b *batch) ungroup(groupID uuid.UUID) error {
	for _, child := range b.s.GroupChildren(groupID) {
		err := b.tx.Model(model(child.Kind)).Where("id = ?", child.ID).UpdateColumn("group_id", nil).Error
		if err != nil {
			return err
		}

		if child.Kind == models.KindAccount {
			b.s.Accounts[child.ID].GroupID = nil
		} else {
			b.s.SubAccounts[child.ID].GroupID = nil
		}
		b.touch(child)
	}

	return nil
}
