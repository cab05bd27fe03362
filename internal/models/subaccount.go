package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SubAccount is a line below an account or another subaccount.
//
// SubAccounts without children are the leaves of the budget tree. Their
// nominal value is computed from quantity, rate and multiplier.
type SubAccount struct {
	DefaultModel
	BudgetID    uuid.UUID  `json:"budgetId" gorm:"type:uuid;index" example:"1e777d24-3f5b-4c43-8000-04f65f895578"`
	ParentKind  Kind       `json:"parentKind" gorm:"uniqueIndex:subaccount_order,priority:1;check:parent_kind IN ('account','subaccount')" example:"account"`
	ParentID    uuid.UUID  `json:"parentId" gorm:"type:uuid;uniqueIndex:subaccount_order,priority:2" example:"2f0a2b52-3e22-4c87-9e6d-5b0f8d1f5a11"`
	Order       string     `json:"order" gorm:"column:order_key;uniqueIndex:subaccount_order,priority:3" example:"t"`
	Identifier  string     `json:"identifier" example:"1101"`
	Description string     `json:"description" example:"Writer"`
	GroupID     *uuid.UUID `json:"groupId" gorm:"type:uuid;index"`
	UnitID      *uuid.UUID `json:"unitId" gorm:"type:uuid"`
	Quantity    *float64   `json:"quantity" example:"10"`
	Rate        *float64   `json:"rate" example:"1"`
	Multiplier  *float64   `json:"multiplier" example:"5"`
	ContactID   *uuid.UUID `json:"contactId" gorm:"type:uuid"`
	CreatedByID uuid.UUID  `json:"createdById" gorm:"type:uuid"`
	UpdatedByID uuid.UUID  `json:"updatedById" gorm:"type:uuid"`
	Estimation
	MarkupContribution float64     `json:"markupContribution" example:"5"`   // Sum of all percent markups that list the subaccount as child
	FringeContribution float64     `json:"fringeContribution" example:"125"` // Sum of all fringes of the subaccount. Leaves only.
	Fringes            []uuid.UUID `json:"fringes" gorm:"-"`                 // IDs of the fringes applied to the subaccount
}

// Self returns the reference to the subaccount.
func (s SubAccount) Self() Ref {
	return Ref{Kind: KindSubAccount, ID: s.ID}
}

// Parent returns the reference to the parent of the subaccount.
func (s SubAccount) Parent() Ref {
	return Ref{Kind: s.ParentKind, ID: s.ParentID}
}

// BeforeSave verifies the references of the subaccount.
//
// It trims whitespace from all strings.
func (s *SubAccount) BeforeSave(tx *gorm.DB) error {
	s.Identifier = strings.TrimSpace(s.Identifier)
	s.Description = strings.TrimSpace(s.Description)

	if !AllowsParent(KindSubAccount, s.ParentKind) {
		return fmt.Errorf("%w: a subaccount cannot have a parent of kind '%s'", ErrIntegrity, s.ParentKind)
	}

	err := checkOrder(s.Order)
	if err != nil {
		return err
	}

	if s.ParentKind == KindSubAccount && s.ParentID == s.ID {
		return fmt.Errorf("%w: a subaccount cannot be its own parent", ErrIntegrity)
	}

	parentBudget, err := BudgetOf(tx, s.Parent())
	if err != nil {
		return integrityError(err)
	}

	if parentBudget != s.BudgetID {
		return fmt.Errorf("%w: the parent %s belongs to budget %s, not %s", ErrIntegrity, s.Parent(), parentBudget, s.BudgetID)
	}

	err = checkGroup(tx, s.GroupID, s.Parent())
	if err != nil {
		return err
	}

	if s.UnitID != nil {
		err = tx.First(&SubAccountUnit{}, *s.UnitID).Error
		if err != nil {
			return integrityError(err)
		}
	}

	if s.ContactID != nil {
		var budget Budget
		err = tx.First(&budget, s.BudgetID).Error
		if err != nil {
			return integrityError(err)
		}

		if budget.Domain != DomainBudget {
			return fmt.Errorf("%w: contacts can only be assigned in budgets, not templates", ErrIntegrity)
		}

		err = tx.First(&Contact{}, *s.ContactID).Error
		if err != nil {
			return integrityError(err)
		}
	}

	return nil
}

// SubAccountFringe assigns a fringe to a subaccount.
type SubAccountFringe struct {
	SubAccountID uuid.UUID `gorm:"type:uuid;primaryKey"`
	FringeID     uuid.UUID `gorm:"type:uuid;primaryKey;index"`
}

// BeforeCreate verifies that the fringe and the subaccount share the same budget.
func (f *SubAccountFringe) BeforeCreate(tx *gorm.DB) error {
	var subAccount SubAccount
	err := tx.First(&subAccount, f.SubAccountID).Error
	if err != nil {
		return integrityError(err)
	}

	var fringe Fringe
	err = tx.First(&fringe, f.FringeID).Error
	if err != nil {
		return integrityError(err)
	}

	if fringe.BudgetID != subAccount.BudgetID {
		return fmt.Errorf("%w: fringe %s does not belong to the budget of subaccount %s", ErrIntegrity, fringe.ID, subAccount.ID)
	}

	return nil
}

// BudgetOf returns the ID of the budget the node belongs to.
func BudgetOf(db *gorm.DB, ref Ref) (uuid.UUID, error) {
	switch ref.Kind {
	case KindBudget:
		var budget Budget
		err := db.Select("id").First(&budget, ref.ID).Error
		return budget.ID, err
	case KindAccount:
		var account Account
		err := db.Select("id", "budget_id").First(&account, ref.ID).Error
		return account.BudgetID, err
	case KindSubAccount:
		var subAccount SubAccount
		err := db.Select("id", "budget_id").First(&subAccount, ref.ID).Error
		return subAccount.BudgetID, err
	case KindMarkup:
		var markup Markup
		err := db.Select("id", "budget_id").First(&markup, ref.ID).Error
		return markup.BudgetID, err
	case KindGroup:
		var group Group
		err := db.Select("id", "budget_id").First(&group, ref.ID).Error
		return group.BudgetID, err
	case KindFringe:
		var fringe Fringe
		err := db.Select("id", "budget_id").First(&fringe, ref.ID).Error
		return fringe.BudgetID, err
	case KindActual:
		var actual Actual
		err := db.Select("id", "budget_id").First(&actual, ref.ID).Error
		return actual.BudgetID, err
	}

	return uuid.Nil, fmt.Errorf("%w: unknown kind '%s'", ErrIntegrity, ref.Kind)
}
