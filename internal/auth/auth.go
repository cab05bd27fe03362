// Package auth turns bearer tokens into actors and decides what an actor
// may do with a budget.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/greenbudget/backend/internal/models"
)

var (
	ErrUnauthenticated  = errors.New("you are not authenticated")
	ErrPermissionDenied = errors.New("you do not have permission to perform this action")
)

// Actor is the authenticated user a request is made by.
type Actor struct {
	UserID uuid.UUID
	Email  string
	Staff  bool
}

// User returns the user record of the actor.
func (a Actor) User() models.User {
	return models.User{ID: a.UserID, Email: a.Email, IsStaff: a.Staff}
}

// Claims are the claims of an access token. The subject is the user ID.
type Claims struct {
	Email string `json:"email"`
	Staff bool   `json:"staff"`
	jwt.RegisteredClaims
}

// Parser verifies HS256 signed access tokens.
type Parser struct {
	secret []byte
}

func NewParser(secret string) *Parser {
	return &Parser{secret: []byte(secret)}
}

// Parse verifies the token and returns the actor it identifies.
func (p *Parser) Parse(token string) (Actor, error) {
	var claims Claims

	_, err := jwt.ParseWithClaims(token, &claims, func(_ *jwt.Token) (any, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return Actor{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Actor{}, fmt.Errorf("%w: the subject is not a valid user ID", ErrUnauthenticated)
	}

	return Actor{UserID: id, Email: claims.Email, Staff: claims.Staff}, nil
}

// Sign issues a token for the actor that is valid for ttl.
func (p *Parser) Sign(actor Actor, ttl time.Duration) (string, error) {
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email: actor.Email,
		Staff: actor.Staff,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	return token.SignedString(p.secret)
}

// CanView reports if the actor may read the budget.
//
// Budgets and private templates are visible to their owner. Community
// templates are visible to everyone unless they are hidden, hidden ones
// only to staff.
func CanView(actor Actor, budget *models.Budget) error {
	if budget.OwnerID == actor.UserID {
		return nil
	}

	if budget.Community && (!budget.Hidden || actor.Staff) {
		return nil
	}

	return ErrPermissionDenied
}

// CanEdit reports if the actor may modify the budget and everything in it.
// Community templates are maintained by staff.
func CanEdit(actor Actor, budget *models.Budget) error {
	if budget.Community {
		if actor.Staff {
			return nil
		}
		return ErrPermissionDenied
	}

	if budget.OwnerID == actor.UserID {
		return nil
	}

	return ErrPermissionDenied
}
