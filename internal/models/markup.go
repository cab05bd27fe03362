package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Markup is an additive charge on a subset of the children of its parent.
type Markup struct {
	DefaultModel
	BudgetID     uuid.UUID `json:"budgetId" gorm:"type:uuid;index" example:"1e777d24-3f5b-4c43-8000-04f65f895578"`
	ParentKind   Kind      `json:"parentKind" gorm:"index:markup_parent,priority:1;check:parent_kind IN ('budget','account','subaccount')" example:"account"`
	ParentID     uuid.UUID `json:"parentId" gorm:"type:uuid;index:markup_parent,priority:2" example:"2f0a2b52-3e22-4c87-9e6d-5b0f8d1f5a11"`
	Identifier   string    `json:"identifier" example:"MU-1"`
	Description  string    `json:"description" example:"Production fee"`
	Unit         Unit      `json:"unit" gorm:"default:percent;check:unit IN ('percent','flat')" example:"percent"`
	Rate         float64   `json:"rate" example:"0.1"`
	Contribution float64   `json:"contribution" example:"5"` // Percent: rate · nominal value of all children. Flat: the rate.
	Actual       float64   `json:"actual" example:"0"`       // Sum of all actuals attributed to the markup
	CreatedByID  uuid.UUID `json:"createdById" gorm:"type:uuid"`
	UpdatedByID  uuid.UUID `json:"updatedById" gorm:"type:uuid"`

	Children []uuid.UUID `json:"children" gorm:"-"` // IDs of the accounts or subaccounts the markup applies to
}

// Self returns the reference to the markup.
func (m Markup) Self() Ref {
	return Ref{Kind: KindMarkup, ID: m.ID}
}

// Parent returns the reference to the parent of the markup.
func (m Markup) Parent() Ref {
	return Ref{Kind: m.ParentKind, ID: m.ParentID}
}

// BeforeSave verifies the markup.
//
// It trims whitespace from all strings.
func (m *Markup) BeforeSave(tx *gorm.DB) error {
	m.Identifier = strings.TrimSpace(m.Identifier)
	m.Description = strings.TrimSpace(m.Description)

	if m.Unit == "" {
		m.Unit = UnitPercent
	}

	if !m.Unit.Valid() {
		return fmt.Errorf("%w: '%s' is not a valid markup unit", ErrIntegrity, m.Unit)
	}

	if !AllowsParent(KindMarkup, m.ParentKind) {
		return fmt.Errorf("%w: a markup cannot have a parent of kind '%s'", ErrIntegrity, m.ParentKind)
	}

	parentBudget, err := BudgetOf(tx, m.Parent())
	if err != nil {
		return integrityError(err)
	}

	if parentBudget != m.BudgetID {
		return fmt.Errorf("%w: the parent %s belongs to budget %s, not %s", ErrIntegrity, m.Parent(), parentBudget, m.BudgetID)
	}

	return nil
}

// MarkupChild assigns an account or subaccount to a markup.
type MarkupChild struct {
	MarkupID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	ChildKind Kind      `gorm:"primaryKey"`
	ChildID   uuid.UUID `gorm:"type:uuid;primaryKey;index"`
}

// Child returns the reference to the child.
func (c MarkupChild) Child() Ref {
	return Ref{Kind: c.ChildKind, ID: c.ChildID}
}

// BeforeCreate verifies that the child shares the parent of the markup.
func (c *MarkupChild) BeforeCreate(tx *gorm.DB) error {
	var markup Markup
	err := tx.First(&markup, c.MarkupID).Error
	if err != nil {
		return integrityError(err)
	}

	parent, err := ParentOf(tx, c.Child())
	if err != nil {
		return integrityError(err)
	}

	if parent != markup.Parent() {
		return fmt.Errorf("%w: %s does not share the parent of markup %s", ErrIntegrity, c.Child(), markup.ID)
	}

	return nil
}

// ParentOf returns the parent of an account or subaccount.
func ParentOf(db *gorm.DB, ref Ref) (Ref, error) {
	switch ref.Kind {
	case KindAccount:
		var account Account
		err := db.Select("id", "budget_id").First(&account, ref.ID).Error
		return account.Parent(), err
	case KindSubAccount:
		var subAccount SubAccount
		err := db.Select("id", "parent_kind", "parent_id").First(&subAccount, ref.ID).Error
		return subAccount.Parent(), err
	}

	return Ref{}, fmt.Errorf("%w: %s cannot be the child of a markup", ErrIntegrity, ref)
}
