package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Actual is a realized expenditure of a budget.
//
// It is attributed to a subaccount or a markup. Actuals whose owner has been
// deleted are kept, but are not attributed to anything.
type Actual struct {
	DefaultModel
	BudgetID      uuid.UUID  `json:"budgetId" gorm:"type:uuid;uniqueIndex:actual_order,priority:1" example:"1e777d24-3f5b-4c43-8000-04f65f895578"`
	OwnerKind     Kind       `json:"ownerKind" gorm:"index:actual_owner,priority:1" example:"subaccount"`
	OwnerID       *uuid.UUID `json:"ownerId" gorm:"type:uuid;index:actual_owner,priority:2" example:"4e743e94-6a4b-44d6-aba5-d77c87103ff7"`
	Order         string     `json:"order" gorm:"column:order_key;uniqueIndex:actual_order,priority:2" example:"n"`
	Description   string     `json:"description" example:"Camera rental deposit"`
	Value         *float64   `json:"value" example:"100"`
	Date          *time.Time `json:"date" example:"2022-05-01T00:00:00Z"`
	PaymentID     string     `json:"paymentId" example:"CHK-1042"`
	PurchaseOrder string     `json:"purchaseOrder" example:"PO-7"`
	ContactID     *uuid.UUID `json:"contactId" gorm:"type:uuid"`
	ActualTypeID  *uuid.UUID `json:"actualTypeId" gorm:"type:uuid"`
	CreatedByID   uuid.UUID  `json:"createdById" gorm:"type:uuid"`
	UpdatedByID   uuid.UUID  `json:"updatedById" gorm:"type:uuid"`
}

// Self returns the reference to the actual.
func (a Actual) Self() Ref {
	return Ref{Kind: KindActual, ID: a.ID}
}

// Owner returns the reference to the owner of the actual and if it has one.
func (a Actual) Owner() (Ref, bool) {
	if a.OwnerID == nil || a.OwnerKind == "" {
		return Ref{}, false
	}
	return Ref{Kind: a.OwnerKind, ID: *a.OwnerID}, true
}

// BeforeSave verifies the actual.
//
// It trims whitespace from all strings.
func (a *Actual) BeforeSave(tx *gorm.DB) error {
	a.Description = strings.TrimSpace(a.Description)
	a.PaymentID = strings.TrimSpace(a.PaymentID)
	a.PurchaseOrder = strings.TrimSpace(a.PurchaseOrder)

	if a.Date != nil {
		d := a.Date.In(time.UTC)
		a.Date = &d
	}

	err := checkOrder(a.Order)
	if err != nil {
		return err
	}

	var budget Budget
	err = tx.First(&budget, a.BudgetID).Error
	if err != nil {
		return integrityError(err)
	}

	if budget.Domain != DomainBudget {
		return fmt.Errorf("%w: actuals can only be added to budgets, not templates", ErrIntegrity)
	}

	if a.ContactID != nil {
		err = tx.First(&Contact{}, *a.ContactID).Error
		if err != nil {
			return integrityError(err)
		}
	}

	if a.ActualTypeID != nil {
		err = tx.First(&ActualType{}, *a.ActualTypeID).Error
		if err != nil {
			return integrityError(err)
		}
	}

	owner, ok := a.Owner()
	if !ok {
		a.OwnerKind = ""
		a.OwnerID = nil
		return nil
	}

	if owner.Kind != KindSubAccount && owner.Kind != KindMarkup {
		return fmt.Errorf("%w: an actual cannot be owned by a resource of kind '%s'", ErrIntegrity, owner.Kind)
	}

	ownerBudget, err := BudgetOf(tx, owner)
	if err != nil {
		return integrityError(err)
	}

	if ownerBudget != a.BudgetID {
		return fmt.Errorf("%w: the owner %s does not belong to budget %s", ErrIntegrity, owner, a.BudgetID)
	}

	return nil
}
