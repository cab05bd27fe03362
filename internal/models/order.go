package models

import (
	"fmt"

	"github.com/greenbudget/backend/internal/ordering"
)

func checkOrder(key string) error {
	err := ordering.Validate(key)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIntegrity, err)
	}
	return nil
}
