// Package tree holds an in-memory snapshot of one budget and plans the
// recomputation of derived values after the budget changed.
package tree

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/greenbudget/backend/internal/models"
	"golang.org/x/exp/slices"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrCycle = errors.New("the budget tree contains a cycle")

// Snapshot is the arena of all resources of one budget.
//
// Resources are addressed by their ID. Relations are kept in indexes that
// are rebuilt lazily after the snapshot has been changed, no resource points
// to another one.
type Snapshot struct {
	Budget      *models.Budget
	Accounts    map[uuid.UUID]*models.Account
	SubAccounts map[uuid.UUID]*models.SubAccount
	Markups     map[uuid.UUID]*models.Markup
	Fringes     map[uuid.UUID]*models.Fringe
	Actuals     map[uuid.UUID]*models.Actual
	Groups      map[uuid.UUID]*models.Group

	deleted map[models.Ref]bool
	stale   bool

	children  map[models.Ref][]models.Ref // accounts and subaccounts by parent, including deleted ones
	owned     map[models.Ref][]uuid.UUID  // markups by parent
	markupsOf map[models.Ref][]uuid.UUID  // markups by child
	holders   map[uuid.UUID][]uuid.UUID   // subaccounts by fringe
	actualsOf map[models.Ref][]uuid.UUID  // live actuals by owner
	groupsOf  map[models.Ref][]uuid.UUID  // groups by parent
}

// New returns an empty snapshot for the budget.
func New(budget *models.Budget) *Snapshot {
	return &Snapshot{
		Budget:      budget,
		Accounts:    make(map[uuid.UUID]*models.Account),
		SubAccounts: make(map[uuid.UUID]*models.SubAccount),
		Markups:     make(map[uuid.UUID]*models.Markup),
		Fringes:     make(map[uuid.UUID]*models.Fringe),
		Actuals:     make(map[uuid.UUID]*models.Actual),
		Groups:      make(map[uuid.UUID]*models.Group),
		deleted:     make(map[models.Ref]bool),
		stale:       true,
	}
}

// Load reads all resources of a budget.
func Load(db *gorm.DB, budgetID uuid.UUID) (*Snapshot, error) {
	return load(db, db, budgetID)
}

// LoadForUpdate reads all resources of a budget and locks the budget row
// until the end of the transaction. All writers of a budget lock it first,
// which serializes them.
func LoadForUpdate(tx *gorm.DB, budgetID uuid.UUID) (*Snapshot, error) {
	return load(tx, tx.Clauses(clause.Locking{Strength: "UPDATE"}), budgetID)
}

func load(db, lock *gorm.DB, budgetID uuid.UUID) (*Snapshot, error) {
	var budget models.Budget
	err := lock.First(&budget, budgetID).Error
	if err != nil {
		return nil, err
	}

	s := New(&budget)

	var accounts []models.Account
	err = db.Where(&models.Account{BudgetID: budgetID}).Find(&accounts).Error
	if err != nil {
		return nil, err
	}

	var subAccounts []models.SubAccount
	err = db.Where(&models.SubAccount{BudgetID: budgetID}).Find(&subAccounts).Error
	if err != nil {
		return nil, err
	}

	var fringeLinks []models.SubAccountFringe
	err = db.Where("sub_account_id IN (?)", db.Model(&models.SubAccount{}).Select("id").Where("budget_id = ?", budgetID)).Find(&fringeLinks).Error
	if err != nil {
		return nil, err
	}

	var markups []models.Markup
	err = db.Where(&models.Markup{BudgetID: budgetID}).Find(&markups).Error
	if err != nil {
		return nil, err
	}

	var markupLinks []models.MarkupChild
	err = db.Where("markup_id IN (?)", db.Model(&models.Markup{}).Select("id").Where("budget_id = ?", budgetID)).Find(&markupLinks).Error
	if err != nil {
		return nil, err
	}

	var fringes []models.Fringe
	err = db.Where(&models.Fringe{BudgetID: budgetID}).Find(&fringes).Error
	if err != nil {
		return nil, err
	}

	var actuals []models.Actual
	err = db.Where(&models.Actual{BudgetID: budgetID}).Find(&actuals).Error
	if err != nil {
		return nil, err
	}

	var groups []models.Group
	err = db.Where(&models.Group{BudgetID: budgetID}).Find(&groups).Error
	if err != nil {
		return nil, err
	}

	for i := range accounts {
		s.Accounts[accounts[i].ID] = &accounts[i]
	}

	for i := range subAccounts {
		s.SubAccounts[subAccounts[i].ID] = &subAccounts[i]
	}

	for _, link := range fringeLinks {
		if sa, ok := s.SubAccounts[link.SubAccountID]; ok {
			sa.Fringes = append(sa.Fringes, link.FringeID)
		}
	}

	for i := range markups {
		s.Markups[markups[i].ID] = &markups[i]
	}

	for _, link := range markupLinks {
		if m, ok := s.Markups[link.MarkupID]; ok {
			m.Children = append(m.Children, link.ChildID)
		}
	}

	for i := range fringes {
		s.Fringes[fringes[i].ID] = &fringes[i]
	}

	for i := range actuals {
		s.Actuals[actuals[i].ID] = &actuals[i]
	}

	for i := range groups {
		s.Groups[groups[i].ID] = &groups[i]
	}

	for _, sa := range s.SubAccounts {
		sortIDs(sa.Fringes)
	}

	for _, m := range s.Markups {
		sortIDs(m.Children)
	}

	return s, nil
}

// Put adds a resource to the snapshot or replaces it.
func (s *Snapshot) Put(resource any) {
	s.stale = true

	switch r := resource.(type) {
	case *models.Budget:
		s.Budget = r
	case *models.Account:
		s.Accounts[r.ID] = r
	case *models.SubAccount:
		s.SubAccounts[r.ID] = r
	case *models.Markup:
		s.Markups[r.ID] = r
	case *models.Fringe:
		s.Fringes[r.ID] = r
	case *models.Actual:
		s.Actuals[r.ID] = r
	case *models.Group:
		s.Groups[r.ID] = r
	default:
		panic(fmt.Sprintf("tree: cannot put %T into a snapshot", resource))
	}
}

// Remove marks a resource as deleted. It stays addressable until the
// snapshot is discarded, but is excluded from all computations.
func (s *Snapshot) Remove(ref models.Ref) {
	s.stale = true
	s.deleted[ref] = true
}

// Deleted reports if the resource has been removed.
func (s *Snapshot) Deleted(ref models.Ref) bool {
	return s.deleted[ref]
}

// Exists reports if the resource is part of the snapshot and not deleted.
func (s *Snapshot) Exists(ref models.Ref) bool {
	if s.deleted[ref] {
		return false
	}

	switch ref.Kind {
	case models.KindBudget:
		return s.Budget != nil && s.Budget.ID == ref.ID
	case models.KindAccount:
		return s.Accounts[ref.ID] != nil
	case models.KindSubAccount:
		return s.SubAccounts[ref.ID] != nil
	case models.KindMarkup:
		return s.Markups[ref.ID] != nil
	case models.KindFringe:
		return s.Fringes[ref.ID] != nil
	case models.KindActual:
		return s.Actuals[ref.ID] != nil
	case models.KindGroup:
		return s.Groups[ref.ID] != nil
	}

	return false
}

// Parent returns the parent of a resource. Budgets do not have a parent.
func (s *Snapshot) Parent(ref models.Ref) (models.Ref, bool) {
	switch ref.Kind {
	case models.KindAccount:
		if a, ok := s.Accounts[ref.ID]; ok {
			return a.Parent(), true
		}
	case models.KindSubAccount:
		if sa, ok := s.SubAccounts[ref.ID]; ok {
			return sa.Parent(), true
		}
	case models.KindMarkup:
		if m, ok := s.Markups[ref.ID]; ok {
			return m.Parent(), true
		}
	case models.KindGroup:
		if g, ok := s.Groups[ref.ID]; ok {
			return g.Parent(), true
		}
	case models.KindFringe, models.KindActual:
		if s.Exists(ref) {
			return s.Budget.Self(), true
		}
	}

	return models.Ref{}, false
}

// Ancestors returns the chain of parents of a resource, nearest first.
func (s *Snapshot) Ancestors(ref models.Ref) []models.Ref {
	var ancestors []models.Ref
	seen := map[models.Ref]bool{ref: true}

	for {
		parent, ok := s.Parent(ref)
		if !ok || seen[parent] {
			return ancestors
		}

		seen[parent] = true
		ancestors = append(ancestors, parent)
		ref = parent
	}
}

// Children returns the live accounts or subaccounts below a node, sorted by
// their order.
func (s *Snapshot) Children(ref models.Ref) []models.Ref {
	s.index()

	var children []models.Ref
	for _, c := range s.children[ref] {
		if !s.deleted[c] {
			children = append(children, c)
		}
	}
	return children
}

// OwnedMarkups returns the live markups that have the node as parent.
func (s *Snapshot) OwnedMarkups(ref models.Ref) []uuid.UUID {
	s.index()
	return s.live(models.KindMarkup, s.owned[ref])
}

// MarkupsOf returns the live markups that list the node as a child.
func (s *Snapshot) MarkupsOf(ref models.Ref) []uuid.UUID {
	s.index()
	return s.live(models.KindMarkup, s.markupsOf[ref])
}

// Holders returns the live subaccounts a fringe is applied to.
func (s *Snapshot) Holders(fringeID uuid.UUID) []uuid.UUID {
	s.index()
	return s.live(models.KindSubAccount, s.holders[fringeID])
}

// ActualsOf returns the live actuals attributed to a subaccount or markup.
func (s *Snapshot) ActualsOf(ref models.Ref) []uuid.UUID {
	s.index()
	return s.live(models.KindActual, s.actualsOf[ref])
}

// GroupsOf returns the live groups that have the node as parent.
func (s *Snapshot) GroupsOf(ref models.Ref) []uuid.UUID {
	s.index()
	return s.live(models.KindGroup, s.groupsOf[ref])
}

// GroupChildren returns the live accounts or subaccounts assigned to a group.
func (s *Snapshot) GroupChildren(groupID uuid.UUID) []models.Ref {
	g, ok := s.Groups[groupID]
	if !ok {
		return nil
	}

	var children []models.Ref
	for _, c := range s.Children(g.Parent()) {
		var assigned *uuid.UUID
		if c.Kind == models.KindAccount {
			assigned = s.Accounts[c.ID].GroupID
		} else {
			assigned = s.SubAccounts[c.ID].GroupID
		}

		if assigned != nil && *assigned == groupID {
			children = append(children, c)
		}
	}
	return children
}

// Descendants returns all live resources below a node, children before
// their parents. It contains subaccounts, markups and groups.
func (s *Snapshot) Descendants(ref models.Ref) []models.Ref {
	var result []models.Ref
	seen := map[models.Ref]bool{ref: true}

	var walk func(models.Ref)
	walk = func(node models.Ref) {
		for _, c := range s.Children(node) {
			if seen[c] {
				continue
			}
			seen[c] = true

			walk(c)
			result = append(result, c)
		}

		for _, id := range s.OwnedMarkups(node) {
			result = append(result, models.Ref{Kind: models.KindMarkup, ID: id})
		}

		for _, id := range s.GroupsOf(node) {
			result = append(result, models.Ref{Kind: models.KindGroup, ID: id})
		}
	}

	walk(ref)
	return result
}

// Affected returns the nodes whose values have to be recomputed when the
// resource has been created, changed or deleted.
//
// Call it before and after a resource is changed to cover both its old and
// new relations.
func (s *Snapshot) Affected(ref models.Ref) []models.Ref {
	s.index()

	switch ref.Kind {
	case models.KindBudget, models.KindAccount, models.KindSubAccount:
		if s.Exists(ref) {
			return []models.Ref{ref}
		}

		var affected []models.Ref
		if parent, ok := s.Parent(ref); ok {
			affected = append(affected, parent)
		}
		for _, id := range s.markupsOf[ref] {
			affected = append(affected, models.Ref{Kind: models.KindMarkup, ID: id})
		}
		return affected

	case models.KindMarkup:
		m, ok := s.Markups[ref.ID]
		if !ok {
			return nil
		}

		affected := []models.Ref{m.Parent()}
		if s.Exists(ref) {
			affected = append(affected, ref)
		}

		childKind := models.ChildKind(m.ParentKind)
		for _, id := range m.Children {
			affected = append(affected, models.Ref{Kind: childKind, ID: id})
		}
		return affected

	case models.KindFringe:
		var affected []models.Ref
		for _, id := range s.holders[ref.ID] {
			affected = append(affected, models.Ref{Kind: models.KindSubAccount, ID: id})
		}
		return affected

	case models.KindActual:
		a, ok := s.Actuals[ref.ID]
		if !ok {
			return nil
		}

		if owner, ok := a.Owner(); ok {
			return []models.Ref{owner}
		}
	}

	return nil
}

// SiblingKeys returns the sorted order keys of the live rows of a table.
//
// Tables are the accounts of a budget, the subaccounts of an account or
// subaccount, and the fringes and actuals of a budget.
func (s *Snapshot) SiblingKeys(kind models.Kind, parent models.Ref) []string {
	rows := s.Siblings(kind, parent)
	keys := make([]string, 0, len(rows))

	for _, r := range rows {
		keys = append(keys, s.Order(r))
	}
	return keys
}

// Siblings returns the live rows of a table sorted by their order.
func (s *Snapshot) Siblings(kind models.Kind, parent models.Ref) []models.Ref {
	var rows []models.Ref

	switch kind {
	case models.KindAccount, models.KindSubAccount:
		for _, c := range s.Children(parent) {
			if c.Kind == kind {
				rows = append(rows, c)
			}
		}
		return rows
	case models.KindFringe:
		for id := range s.Fringes {
			rows = append(rows, models.Ref{Kind: kind, ID: id})
		}
	case models.KindActual:
		for id := range s.Actuals {
			rows = append(rows, models.Ref{Kind: kind, ID: id})
		}
	}

	rows = slices.DeleteFunc(rows, func(r models.Ref) bool { return s.deleted[r] })
	s.sortByOrder(rows)
	return rows
}

// Order returns the order key of a row.
func (s *Snapshot) Order(ref models.Ref) string {
	switch ref.Kind {
	case models.KindAccount:
		return s.Accounts[ref.ID].Order
	case models.KindSubAccount:
		return s.SubAccounts[ref.ID].Order
	case models.KindFringe:
		return s.Fringes[ref.ID].Order
	case models.KindActual:
		return s.Actuals[ref.ID].Order
	}
	return ""
}

func (s *Snapshot) live(kind models.Kind, ids []uuid.UUID) []uuid.UUID {
	var result []uuid.UUID
	for _, id := range ids {
		if !s.deleted[models.Ref{Kind: kind, ID: id}] {
			result = append(result, id)
		}
	}
	return result
}

// index rebuilds the relation indexes if the snapshot changed.
func (s *Snapshot) index() {
	if !s.stale {
		return
	}

	s.children = make(map[models.Ref][]models.Ref)
	s.owned = make(map[models.Ref][]uuid.UUID)
	s.markupsOf = make(map[models.Ref][]uuid.UUID)
	s.holders = make(map[uuid.UUID][]uuid.UUID)
	s.actualsOf = make(map[models.Ref][]uuid.UUID)
	s.groupsOf = make(map[models.Ref][]uuid.UUID)

	for _, a := range s.Accounts {
		s.children[a.Parent()] = append(s.children[a.Parent()], a.Self())
	}

	for _, sa := range s.SubAccounts {
		s.children[sa.Parent()] = append(s.children[sa.Parent()], sa.Self())

		for _, f := range sa.Fringes {
			s.holders[f] = append(s.holders[f], sa.ID)
		}
	}

	for _, m := range s.Markups {
		s.owned[m.Parent()] = append(s.owned[m.Parent()], m.ID)

		childKind := models.ChildKind(m.ParentKind)
		for _, c := range m.Children {
			child := models.Ref{Kind: childKind, ID: c}
			s.markupsOf[child] = append(s.markupsOf[child], m.ID)
		}
	}

	for _, a := range s.Actuals {
		if s.deleted[a.Self()] {
			continue
		}

		if owner, ok := a.Owner(); ok {
			s.actualsOf[owner] = append(s.actualsOf[owner], a.ID)
		}
	}

	for _, g := range s.Groups {
		s.groupsOf[g.Parent()] = append(s.groupsOf[g.Parent()], g.ID)
	}

	for _, children := range s.children {
		s.sortByOrder(children)
	}

	for _, m := range []map[models.Ref][]uuid.UUID{s.owned, s.markupsOf, s.actualsOf, s.groupsOf} {
		for _, ids := range m {
			sortIDs(ids)
		}
	}

	for _, ids := range s.holders {
		sortIDs(ids)
	}

	s.stale = false
}

func (s *Snapshot) sortByOrder(refs []models.Ref) {
	slices.SortFunc(refs, func(a, b models.Ref) int {
		oa, ob := s.Order(a), s.Order(b)
		if oa != ob {
			if oa < ob {
				return -1
			}
			return 1
		}
		return compareRefs(a, b)
	})
}

func compareRefs(a, b models.Ref) int {
	as, bs := a.String(), b.String()
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}

func sortIDs(ids []uuid.UUID) {
	slices.SortFunc(ids, func(a, b uuid.UUID) int {
		as, bs := a.String(), b.String()
		switch {
		case as < bs:
			return -1
		case as > bs:
			return 1
		}
		return 0
	})
}
