package bulk

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/greenbudget/backend/internal/models"
	"github.com/greenbudget/backend/internal/ordering"
	"golang.org/x/exp/slices"
)

// MoveRequest places a row either at a position of its table or directly
// after a sibling. A null previous sibling moves the row to the front.
type MoveRequest struct {
	Order    *int                 `json:"order"`
	Previous Optional[*uuid.UUID] `json:"previous"`
}

// Move changes the position of a row within its table and returns its new
// order key. Keys of all other rows stay unchanged.
func (c *Coordinator) Move(ctx context.Context, actor uuid.UUID, ref models.Ref, req MoveRequest) (string, error) {
	if !ordered(ref.Kind) {
		return "", invalid(-1, "kind", "not_supported")
	}

	if (req.Order == nil) == !req.Previous.Set {
		return "", invalid(-1, "order", "required")
	}

	var key string
	_, err := c.run(ctx, "move", ref.Kind, ref, actor, func(b *batch) (err error) {
		key, err = b.move(ref, req)
		return err
	})

	return key, err
}

func (b *batch) move(ref models.Ref, req MoveRequest) (string, error) {
	parent, _ := b.s.Parent(ref)
	siblings := b.s.Siblings(ref.Kind, parent)
	from := slices.Index(siblings, ref)

	keys := make([]string, 0, len(siblings))
	for _, s := range siblings {
		keys = append(keys, b.s.Order(s))
	}

	var key string
	var err error
	if req.Order != nil {
		key, err = ordering.Move(keys, from, *req.Order)
	} else {
		rest := slices.Delete(slices.Clone(siblings), from, from+1)
		restKeys := slices.Delete(slices.Clone(keys), from, from+1)

		position := 0
		if previous := req.Previous.Value; previous != nil {
			if *previous == ref.ID {
				return "", invalid(-1, "previous", "invalid")
			}

			index := slices.Index(rest, models.Ref{Kind: ref.Kind, ID: *previous})
			if index < 0 {
				return "", invalid(-1, "previous", "not_found")
			}
			position = index + 1
		}

		key, err = ordering.AtPosition(restKeys, position)
	}

	if errors.Is(err, ordering.ErrPositionOutOfRange) {
		return "", invalid(-1, "order", "out_of_range")
	}
	if err != nil {
		return "", err
	}

	if key == b.s.Order(ref) {
		return key, nil
	}

	row := b.resource(ref)
	setOrder(row, key)

	err = b.tx.Model(row).Update("order_key", key).Error
	if errors.Is(err, models.ErrOrderNotUnique) {
		return "", errors.Join(ErrConflict, err)
	}
	if err != nil {
		return "", err
	}

	b.s.Put(row)
	b.touch(ref)
	b.rows++

	return key, nil
}
