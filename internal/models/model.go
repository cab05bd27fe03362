package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultModel is the base model for all resources that are identified by a UUID.
//
// Rows are hard deleted. Soft deleted rows would keep their order keys and
// block them for new siblings.
type DefaultModel struct {
	ID uuid.UUID `json:"id" gorm:"type:uuid;primaryKey" example:"65392deb-5e92-4268-b114-297faad6cdce"` // UUID for the resource
	Timestamps
}

// Timestamps only contains the timestamps that gorm sets automatically.
type Timestamps struct {
	CreatedAt time.Time `json:"createdAt" example:"2022-04-02T19:28:44.491514Z"` // Time the resource was created
	UpdatedAt time.Time `json:"updatedAt" example:"2022-04-17T20:14:01.048145Z"` // Last time the resource was updated
}

// AfterFind updates the timestamps to use UTC as
// timezone, not +0000. Yes, this is different.
//
// We already store them in UTC, but somehow reading
// them from the database returns them as +0000.
func (m *DefaultModel) AfterFind(_ *gorm.DB) (err error) {
	m.CreatedAt = m.CreatedAt.In(time.UTC)
	m.UpdatedAt = m.UpdatedAt.In(time.UTC)

	return nil
}

// BeforeCreate generates a UUID for the resource unless one
// has been allocated already.
func (m *DefaultModel) BeforeCreate(_ *gorm.DB) (err error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Estimation holds the derived values every node of the budget tree carries.
type Estimation struct {
	NominalValue                  float64 `json:"nominalValue" example:"50"`                  // Sum of quantity · rate · multiplier of all leaves below
	AccumulatedFringeContribution float64 `json:"accumulatedFringeContribution" example:"25"` // Fringe contributions of all descendants
	AccumulatedMarkupContribution float64 `json:"accumulatedMarkupContribution" example:"5"`  // Markup contributions of all descendants
	Actual                        float64 `json:"actual" example:"30"`                        // Sum of all actuals attributed to the node or its descendants
}
