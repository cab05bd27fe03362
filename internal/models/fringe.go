package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Unit is the way a fringe or markup rate is applied.
type Unit string

const (
	UnitPercent Unit = "percent"
	UnitFlat    Unit = "flat"
)

// Valid reports if u is a known unit.
func (u Unit) Valid() bool {
	return u == UnitPercent || u == UnitFlat
}

// Fringe is an overhead that is applied to the subaccounts it is assigned to.
type Fringe struct {
	DefaultModel
	BudgetID    uuid.UUID `json:"budgetId" gorm:"type:uuid;uniqueIndex:fringe_order,priority:1;uniqueIndex:fringe_name,priority:1" example:"1e777d24-3f5b-4c43-8000-04f65f895578"`
	Name        string    `json:"name" gorm:"uniqueIndex:fringe_name,priority:2" example:"Payroll Tax"`
	Description string    `json:"description" example:"Employer share"`
	Order       string    `json:"order" gorm:"column:order_key;uniqueIndex:fringe_order,priority:2" example:"n"`
	Rate        float64   `json:"rate" example:"0.5"`
	Cutoff      *float64  `json:"cutoff" example:"50"` // Upper limit of the nominal value percent fringes apply to. Ignored for flat fringes.
	Unit        Unit      `json:"unit" gorm:"default:percent;check:unit IN ('percent','flat')" example:"percent"`
	Color       string    `json:"color" example:"#D58A8A"`
	CreatedByID uuid.UUID `json:"createdById" gorm:"type:uuid"`
	UpdatedByID uuid.UUID `json:"updatedById" gorm:"type:uuid"`
}

// Self returns the reference to the fringe.
func (f Fringe) Self() Ref {
	return Ref{Kind: KindFringe, ID: f.ID}
}

// BeforeSave verifies the fringe.
//
// It trims whitespace from all strings.
func (f *Fringe) BeforeSave(tx *gorm.DB) error {
	f.Name = strings.TrimSpace(f.Name)
	f.Description = strings.TrimSpace(f.Description)
	f.Color = strings.TrimSpace(f.Color)

	if f.Unit == "" {
		f.Unit = UnitPercent
	}

	if !f.Unit.Valid() {
		return fmt.Errorf("%w: '%s' is not a valid fringe unit", ErrIntegrity, f.Unit)
	}

	if f.Name == "" {
		return fmt.Errorf("%w: the fringe name must not be empty", ErrIntegrity)
	}

	err := checkOrder(f.Order)
	if err != nil {
		return err
	}

	return integrityError(tx.First(&Budget{}, f.BudgetID).Error)
}
