package bulk

import (
	"github.com/google/uuid"
	"github.com/greenbudget/backend/internal/models"
)

func (b *batch) update(parent models.Ref, kind models.Kind, patches []Patch) ([]any, error) {
	seen := make(map[uuid.UUID]bool, len(patches))
	updated := make([]any, 0, len(patches))

	for i, patch := range patches {
		ref := models.Ref{Kind: kind, ID: patch.ID}
		if seen[patch.ID] {
			return nil, invalid(i, "id", "duplicate")
		}
		seen[patch.ID] = true

		if !b.s.Exists(ref) {
			return nil, notFound(i, ref)
		}

		if p, _ := b.s.Parent(ref); p != parent {
			return nil, notFound(i, ref)
		}

		// Old relations, e.g. the previous owner of an actual
		b.affect(b.s.Affected(ref)...)

		// Rows a markup drops keep their values, so nothing else evicts them
		if kind == models.KindMarkup && patch.Children.Set {
			b.touch(b.markupChildren(patch.ID)...)
		}

		row, links, err := b.patch(i, parent, ref, patch.Payload)
		if err != nil {
			return nil, err
		}

		if err := b.tx.Save(row).Error; err != nil {
			return nil, rowError(i, err)
		}

		if links {
			if err := b.writeLinks(row); err != nil {
				return nil, rowError(i, err)
			}
		}

		b.s.Put(row)
		b.affect(b.s.Affected(ref)...)
		b.touch(ref)
		b.rows++

		updated = append(updated, row)
	}

	return updated, nil
}

// patch applies a payload to a row of the snapshot and reports if its link
// rows need to be rewritten.
func (b *batch) patch(i int, parent models.Ref, ref models.Ref, p Payload) (any, bool, error) {
	switch ref.Kind {
	case models.KindAccount:
		a := b.s.Accounts[ref.ID]
		p.applyAccount(a)
		a.UpdatedByID = b.actor
		return a, false, b.checkGroup(i, a.GroupID, parent)

	case models.KindSubAccount:
		sa := b.s.SubAccounts[ref.ID]
		p.applySubAccount(sa)
		sa.UpdatedByID = b.actor
		if err := b.checkGroup(i, sa.GroupID, parent); err != nil {
			return nil, false, err
		}
		return sa, p.Fringes.Set, b.checkFringes(i, sa.Fringes)

	case models.KindFringe:
		f := b.s.Fringes[ref.ID]
		p.applyFringe(f)
		f.UpdatedByID = b.actor
		return f, false, nil

	case models.KindMarkup:
		m := b.s.Markups[ref.ID]
		p.applyMarkup(m)
		m.UpdatedByID = b.actor
		return m, p.Children.Set, b.checkChildren(i, m)

	case models.KindGroup:
		g := b.s.Groups[ref.ID]
		p.applyGroup(g)
		g.UpdatedByID = b.actor
		return g, false, nil

	case models.KindActual:
		a := b.s.Actuals[ref.ID]
		p.applyActual(a)
		a.UpdatedByID = b.actor
		return a, false, b.checkOwner(i, a)
	}

	return nil, false, invalid(-1, "kind", "not_supported")
}

// markupChildren returns references to the current children of a markup.
func (b *batch) markupChildren(id uuid.UUID) []models.Ref {
	m := b.s.Markups[id]
	kind := models.ChildKind(m.ParentKind)

	refs := make([]models.Ref, 0, len(m.Children))
	for _, child := range m.Children {
		refs = append(refs, models.Ref{Kind: kind, ID: child})
	}
	return refs
}
