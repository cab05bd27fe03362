package models

import (
	"errors"
)

var (
	ErrGeneral             = errors.New("an error occurred on the server during your request")
	ErrResourceNotFound    = errors.New("there is no")
	ErrIntegrity           = errors.New("integrity violation")
	ErrOrderNotUnique      = errors.New("the order must be unique within its table")
	ErrFringeNameNotUnique = errors.New("the fringe name must be unique for the budget")
)
