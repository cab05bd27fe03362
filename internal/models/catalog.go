package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Contact is a person or company owned by a user.
type Contact struct {
	DefaultModel
	UserID    uuid.UUID `json:"userId" gorm:"type:uuid;index" example:"52f1b3e2-3a5c-4f8d-8c6e-6a1d7e0c3b9a"`
	FirstName string    `json:"firstName" example:"Jane"`
	LastName  string    `json:"lastName" example:"Doe"`
	Company   string    `json:"company" example:"Rentals Inc."`
	Email     string    `json:"email" example:"jane@example.com"`
}

func (c *Contact) BeforeSave(_ *gorm.DB) error {
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Company = strings.TrimSpace(c.Company)
	c.Email = strings.TrimSpace(c.Email)

	return nil
}

// SubAccountUnit is the unit the quantity of a subaccount is measured in,
// e.g. days or weeks.
type SubAccountUnit struct {
	DefaultModel
	Title string `json:"title" gorm:"uniqueIndex" example:"Days"`
	Color string `json:"color" example:"#EFEFEF"`
}

func (u *SubAccountUnit) BeforeSave(_ *gorm.DB) error {
	u.Title = strings.TrimSpace(u.Title)
	if u.Title == "" {
		return fmt.Errorf("%w: the unit title must not be empty", ErrIntegrity)
	}

	return nil
}

// ActualType categorizes actuals, e.g. as check or wire transfer.
type ActualType struct {
	DefaultModel
	Title string `json:"title" gorm:"uniqueIndex" example:"Wire"`
	Color string `json:"color" example:"#6F8FD1"`
}

func (t *ActualType) BeforeSave(_ *gorm.DB) error {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return fmt.Errorf("%w: the actual type title must not be empty", ErrIntegrity)
	}

	return nil
}
