package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account is a top level line of a budget.
type Account struct {
	DefaultModel
	BudgetID    uuid.UUID  `json:"budgetId" gorm:"type:uuid;uniqueIndex:account_order,priority:1" example:"1e777d24-3f5b-4c43-8000-04f65f895578"`
	Identifier  string     `json:"identifier" example:"1100"`
	Description string     `json:"description" example:"Story & Rights"`
	Order       string     `json:"order" gorm:"column:order_key;uniqueIndex:account_order,priority:2" example:"n"`
	GroupID     *uuid.UUID `json:"groupId" gorm:"type:uuid;index" example:"a0909e84-e8f9-4cb6-82a5-025dff105ff2"`
	CreatedByID uuid.UUID  `json:"createdById" gorm:"type:uuid"`
	UpdatedByID uuid.UUID  `json:"updatedById" gorm:"type:uuid"`
	Estimation
	MarkupContribution float64 `json:"markupContribution" example:"5"` // Sum of all percent markups that list the account as child
}

// Self returns the reference to the account.
func (a Account) Self() Ref {
	return Ref{Kind: KindAccount, ID: a.ID}
}

// Parent returns the reference to the budget of the account.
func (a Account) Parent() Ref {
	return Ref{Kind: KindBudget, ID: a.BudgetID}
}

// BeforeSave verifies the references of the account.
//
// It trims whitespace from all strings.
func (a *Account) BeforeSave(tx *gorm.DB) error {
	a.Identifier = strings.TrimSpace(a.Identifier)
	a.Description = strings.TrimSpace(a.Description)

	err := checkOrder(a.Order)
	if err != nil {
		return err
	}

	err = tx.First(&Budget{}, a.BudgetID).Error
	if err != nil {
		return integrityError(err)
	}

	return checkGroup(tx, a.GroupID, a.Parent())
}

// checkGroup verifies that the group exists and belongs to the same parent
// as the resource it is assigned to.
func checkGroup(tx *gorm.DB, id *uuid.UUID, parent Ref) error {
	if id == nil {
		return nil
	}

	var group Group
	err := tx.First(&group, *id).Error
	if err != nil {
		return integrityError(err)
	}

	if group.Parent() != parent {
		return fmt.Errorf("%w: group %s does not belong to %s", ErrIntegrity, group.ID, parent)
	}

	return nil
}
