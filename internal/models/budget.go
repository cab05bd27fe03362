package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Domain distinguishes budgets from templates.
type Domain string

const (
	DomainBudget   Domain = "budget"
	DomainTemplate Domain = "template"
)

// Budget is the root of the budget tree.
type Budget struct {
	DefaultModel
	Name        string    `json:"name" example:"Feature Film"`
	Image       string    `json:"image" example:"https://example.com/poster.png"`
	Domain      Domain    `json:"domain" gorm:"default:budget" example:"budget"`
	OwnerID     uuid.UUID `json:"ownerId" gorm:"type:uuid;index" example:"52f1b3e2-3a5c-4f8d-8c6e-6a1d7e0c3b9a"`
	CreatedByID uuid.UUID `json:"createdById" gorm:"type:uuid" example:"52f1b3e2-3a5c-4f8d-8c6e-6a1d7e0c3b9a"`
	UpdatedByID uuid.UUID `json:"updatedById" gorm:"type:uuid" example:"52f1b3e2-3a5c-4f8d-8c6e-6a1d7e0c3b9a"`
	Community   bool      `json:"community" example:"false"` // Templates only: visible to every user
	Hidden      bool      `json:"hidden" example:"false"`    // Community templates only: not listed
	Estimation
}

// Self returns the reference to the budget.
func (b Budget) Self() Ref {
	return Ref{Kind: KindBudget, ID: b.ID}
}

// BeforeSave verifies the domain invariants of the budget.
//
// It trims whitespace from all strings.
func (b *Budget) BeforeSave(tx *gorm.DB) error {
	b.Name = strings.TrimSpace(b.Name)
	b.Image = strings.TrimSpace(b.Image)

	if b.Domain == "" {
		b.Domain = DomainBudget
	}

	if b.Domain != DomainBudget && b.Domain != DomainTemplate {
		return fmt.Errorf("%w: '%s' is not a valid domain", ErrIntegrity, b.Domain)
	}

	if b.Domain == DomainBudget && (b.Community || b.Hidden) {
		return fmt.Errorf("%w: only templates can be community templates", ErrIntegrity)
	}

	if b.Hidden && !b.Community {
		return fmt.Errorf("%w: only community templates can be hidden", ErrIntegrity)
	}

	if b.Community {
		var owner User
		err := tx.First(&owner, b.OwnerID).Error
		if err != nil {
			return integrityError(err)
		}

		if !owner.IsStaff {
			return fmt.Errorf("%w: only staff users can own community templates", ErrIntegrity)
		}
	}

	return nil
}

// integrityError wraps lookup failures of referenced resources.
func integrityError(err error) error {
	if errors.Is(err, ErrResourceNotFound) {
		return fmt.Errorf("%w: %w", ErrIntegrity, err)
	}
	return err
}
