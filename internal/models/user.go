package models

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// User is the identity the authentication provider vouches for.
//
// Users are not managed by this service. They are upserted whenever
// an authenticated request comes in so that ownership and the staff
// flag can be verified when resources are saved.
type User struct {
	ID uuid.UUID `json:"id" gorm:"type:uuid;primaryKey" example:"52f1b3e2-3a5c-4f8d-8c6e-6a1d7e0c3b9a"`
	Timestamps
	Email   string `json:"email" example:"jane@example.com"`
	IsStaff bool   `json:"isStaff" example:"false"`
}

func (u *User) BeforeSave(_ *gorm.DB) error {
	u.Email = strings.TrimSpace(u.Email)
	return nil
}

// EnsureUser creates the user or updates email and staff flag of an
// existing one.
func EnsureUser(db *gorm.DB, user User) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "is_staff", "updated_at"}),
	}).Create(&user).Error
}
