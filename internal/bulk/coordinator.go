// Package bulk applies batches of changes to the tables of a budget and
// keeps the derived values of the budget tree up to date.
package bulk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/greenbudget/backend/internal/cache"
	"github.com/greenbudget/backend/internal/models"
	"github.com/greenbudget/backend/internal/ordering"
	"github.com/greenbudget/backend/internal/tree"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// Coordinator applies batches of changes to one table of a budget.
//
// Every batch runs in one transaction that locks the budget. Derived values
// are recomputed once per batch and cache entries are evicted after the
// transaction committed.
type Coordinator struct {
	db    *gorm.DB
	store *cache.Store
}

// New returns a coordinator writing to db. A nil store disables caching.
func New(db *gorm.DB, store *cache.Store) *Coordinator {
	if store == nil {
		store = cache.NewStore(nil, 0)
	}

	return &Coordinator{db: db, store: store}
}

// Result is the state of the parent of a batch after it was applied.
type Result struct {
	Budget   *models.Budget `json:"budget"`
	Parent   any            `json:"parent"`
	Children []any          `json:"children,omitempty"`
}

// DeleteOptions control how deletes treat missing rows.
type DeleteOptions struct {
	// Strict fails the batch if a row does not exist. Otherwise missing rows
	// are skipped.
	Strict bool
}

// Create adds rows of kind below parent.
//
// Rows receive order keys after all existing siblings, in the order of the
// payloads.
func (c *Coordinator) Create(ctx context.Context, actor uuid.UUID, parent models.Ref, kind models.Kind, payloads []Payload) (*Result, error) {
	if !models.AllowsParent(kind, parent.Kind) {
		return nil, invalid(-1, "parent", "invalid")
	}

	for i, p := range payloads {
		if err := p.Validate(i, kind, true); err != nil {
			return nil, err
		}
	}

	var created []any
	b, err := c.run(ctx, "create", kind, parent, actor, func(b *batch) (err error) {
		created, err = b.create(parent, kind, payloads)
		return err
	})
	if err != nil {
		return nil, err
	}

	return b.result(parent, created), nil
}

// Update changes rows of kind below parent.
func (c *Coordinator) Update(ctx context.Context, actor uuid.UUID, parent models.Ref, kind models.Kind, patches []Patch) (*Result, error) {
	if !models.AllowsParent(kind, parent.Kind) {
		return nil, invalid(-1, "parent", "invalid")
	}

	for i, p := range patches {
		if err := p.Validate(i, kind, false); err != nil {
			return nil, err
		}
	}

	var updated []any
	b, err := c.run(ctx, "update", kind, parent, actor, func(b *batch) (err error) {
		updated, err = b.update(parent, kind, patches)
		return err
	})
	if err != nil {
		return nil, err
	}

	return b.result(parent, updated), nil
}

// Delete removes rows of kind below parent together with everything below
// them. Actuals of deleted subaccounts and markups are kept without owner.
//
// The result lists the rows of kind that remain below parent.
func (c *Coordinator) Delete(ctx context.Context, actor uuid.UUID, parent models.Ref, kind models.Kind, ids []uuid.UUID, opts DeleteOptions) (*Result, error) {
	if !models.AllowsParent(kind, parent.Kind) {
		return nil, invalid(-1, "parent", "invalid")
	}

	b, err := c.run(ctx, "delete", kind, parent, actor, func(b *batch) error {
		return b.delete(parent, kind, ids, opts.Strict)
	})
	if err != nil {
		return nil, err
	}

	return b.result(parent, b.remaining(parent, kind)), nil
}

// Recalculate recomputes all derived values of a budget.
func (c *Coordinator) Recalculate(ctx context.Context, budgetID uuid.UUID) (*models.Budget, error) {
	budget := models.Ref{Kind: models.KindBudget, ID: budgetID}

	b, err := c.run(ctx, "recalculate", models.KindBudget, budget, uuid.Nil, func(b *batch) error {
		plan, err := b.s.Full()
		if err != nil {
			return err
		}
		b.affect(plan...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return b.s.Budget, nil
}

// batch is the state of one operation inside its transaction.
type batch struct {
	ctx   context.Context
	tx    *gorm.DB
	s     *tree.Snapshot
	actor uuid.UUID
	now   time.Time

	seeds   []models.Ref // nodes whose values need to be recomputed
	touched []models.Ref // resources that were written
	rows    int
}

func (b *batch) affect(refs ...models.Ref) {
	b.seeds = append(b.seeds, refs...)
}

func (b *batch) touch(refs ...models.Ref) {
	b.touched = append(b.touched, refs...)
}

// result builds the result from the snapshot after the batch.
func (b *batch) result(parent models.Ref, children []any) *Result {
	return &Result{
		Budget:   b.s.Budget,
		Parent:   b.resource(parent),
		Children: children,
	}
}

// remaining returns the live rows of kind below parent.
func (b *batch) remaining(parent models.Ref, kind models.Kind) []any {
	var refs []models.Ref
	switch kind {
	case models.KindMarkup, models.KindGroup:
		ids := b.s.OwnedMarkups(parent)
		if kind == models.KindGroup {
			ids = b.s.GroupsOf(parent)
		}
		for _, id := range ids {
			refs = append(refs, models.Ref{Kind: kind, ID: id})
		}
	default:
		refs = b.s.Siblings(kind, parent)
	}

	rows := make([]any, 0, len(refs))
	for _, ref := range refs {
		rows = append(rows, b.resource(ref))
	}
	return rows
}

// resource returns the row of a reference from the snapshot.
func (b *batch) resource(ref models.Ref) any {
	switch ref.Kind {
	case models.KindBudget:
		return b.s.Budget
	case models.KindAccount:
		return b.s.Accounts[ref.ID]
	case models.KindSubAccount:
		return b.s.SubAccounts[ref.ID]
	case models.KindMarkup:
		return b.s.Markups[ref.ID]
	case models.KindFringe:
		return b.s.Fringes[ref.ID]
	case models.KindActual:
		return b.s.Actuals[ref.ID]
	case models.KindGroup:
		return b.s.Groups[ref.ID]
	}
	return nil
}

// run executes fn in a transaction on the snapshot of the budget target
// belongs to and recomputes, saves and evicts everything fn changed.
func (c *Coordinator) run(ctx context.Context, op string, kind models.Kind, target models.Ref, actor uuid.UUID, fn func(*batch) error) (b *batch, err error) {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "bulk."+op, trace.WithAttributes(
		attribute.String("bulk.kind", string(kind)),
		attribute.String("bulk.target", target.String()),
	))

	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()

		operationsTotal.WithLabelValues(string(kind), op, result).Inc()
		operationDuration.WithLabelValues(string(kind), op).Observe(time.Since(start).Seconds())
		logResult(op, kind, target, b, err)
	}()

	budgetID, err := models.BudgetOf(c.db.WithContext(ctx), target)
	if err != nil {
		return nil, missing(err)
	}

	var keys []string
	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s, err := tree.LoadForUpdate(tx, budgetID)
		if err != nil {
			return missing(err)
		}

		if !s.Exists(target) {
			return fmt.Errorf("%w: %s", ErrNotFound, target)
		}

		b = &batch{ctx: ctx, tx: tx, s: s, actor: actor, now: time.Now().UTC()}
		if err := fn(b); err != nil {
			return err
		}

		if b.rows == 0 && len(b.seeds) == 0 {
			return nil
		}

		plan, err := s.Plan(b.seeds)
		if err != nil {
			return err
		}

		changed := s.Recompute(plan)
		if err := s.Save(tx, changed); err != nil {
			return err
		}

		recomputedNodes.Observe(float64(len(changed)))
		rowsWritten.WithLabelValues(string(kind), op).Add(float64(b.rows))

		if b.rows > 0 {
			if err := b.bumpBudget(); err != nil {
				return err
			}
		}

		keys = cache.Keys(s, append(b.touched, changed...))
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.store.Invalidate(ctx, keys)
	return b, nil
}

// bumpBudget records the actor as the last one who changed the budget.
// Batches without actor, e.g. maintenance commands, do not change it.
func (b *batch) bumpBudget() error {
	if b.actor == uuid.Nil {
		return nil
	}

	b.s.Budget.UpdatedAt = b.now
	b.s.Budget.UpdatedByID = b.actor

	return b.tx.Model(&models.Budget{}).Where("id = ?", b.s.Budget.ID).UpdateColumns(map[string]any{
		"updated_at":    b.now,
		"updated_by_id": b.actor,
	}).Error
}

// missing translates a missing row into ErrNotFound.
func missing(err error) error {
	if errors.Is(err, models.ErrResourceNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}

// expected reports if an error is caused by the request rather than the server.
func expected(err error) bool {
	for _, target := range []error{ErrValidation, ErrNotFound, ErrConflict, models.ErrIntegrity, models.ErrFringeNameNotUnique, ordering.ErrInconsistentOrdering} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func logResult(op string, kind models.Kind, target models.Ref, b *batch, err error) {
	var event *zerolog.Event
	switch {
	case err == nil:
		event = log.Debug()
	case expected(err):
		event = log.Debug().Err(err)
	default:
		event = log.Error().Err(err)
	}

	event = event.Str("operation", op).Str("kind", string(kind)).Str("target", target.String())
	if b != nil {
		event = event.Int("rows", b.rows).Int("seeds", len(b.seeds))
	}
	event.Msg("bulk operation")
}
