package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Group visually bundles accounts or subaccounts that share a parent.
type Group struct {
	DefaultModel
	BudgetID    uuid.UUID  `json:"budgetId" gorm:"type:uuid;index" example:"1e777d24-3f5b-4c43-8000-04f65f895578"`
	ParentKind  Kind       `json:"parentKind" gorm:"check:parent_kind IN ('budget','account','subaccount')" example:"budget"`
	ParentID    uuid.UUID  `json:"parentId" gorm:"type:uuid;index" example:"1e777d24-3f5b-4c43-8000-04f65f895578"`
	Name        string     `json:"name" example:"Above the line"`
	Color       string     `json:"color" example:"#5E1775"`
	CreatedByID uuid.UUID  `json:"createdById" gorm:"type:uuid"`
	UpdatedByID uuid.UUID  `json:"updatedById" gorm:"type:uuid"`
	EmptySince  *time.Time `json:"-"` // Set while the group has no children
}

// TableName avoids the GROUPS keyword.
func (Group) TableName() string {
	return "budget_groups"
}

// Self returns the reference to the group.
func (g Group) Self() Ref {
	return Ref{Kind: KindGroup, ID: g.ID}
}

// Parent returns the reference to the parent of the group.
func (g Group) Parent() Ref {
	return Ref{Kind: g.ParentKind, ID: g.ParentID}
}

// BeforeSave verifies the group.
//
// It trims whitespace from all strings.
func (g *Group) BeforeSave(tx *gorm.DB) error {
	g.Name = strings.TrimSpace(g.Name)
	g.Color = strings.TrimSpace(g.Color)

	if g.Name == "" {
		return fmt.Errorf("%w: the group name must not be empty", ErrIntegrity)
	}

	if !AllowsParent(KindGroup, g.ParentKind) {
		return fmt.Errorf("%w: a group cannot have a parent of kind '%s'", ErrIntegrity, g.ParentKind)
	}

	parentBudget, err := BudgetOf(tx, g.Parent())
	if err != nil {
		return integrityError(err)
	}

	if parentBudget != g.BudgetID {
		return fmt.Errorf("%w: the parent %s belongs to budget %s, not %s", ErrIntegrity, g.Parent(), parentBudget, g.BudgetID)
	}

	return nil
}
