// Package duplicate deep-copies budgets.
package duplicate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/greenbudget/backend/internal/models"
	"github.com/greenbudget/backend/internal/tree"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("github.com/greenbudget/backend/internal/duplicate")

var copied = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "greenbudget",
	Subsystem: "duplicate",
	Name:      "resources_total",
	Help:      "Resources created by duplicating budgets.",
}, []string{"kind"})

// Options control what a duplicate contains.
type Options struct {
	Owner          uuid.UUID     // Owner of the copy, also recorded as its creator
	Name           string        // Name of the copy. Empty keeps the name of the source.
	Domain         models.Domain // Domain of the copy. Empty keeps the domain of the source.
	IncludeActuals bool          // Copy actuals. Only possible if the copy is a budget.
}

// Duplicator copies budgets with all of their resources.
type Duplicator struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Duplicator {
	return &Duplicator{db: db}
}

// Duplicate copies the budget with the given ID and returns the copy with
// its derived values computed.
//
// Contacts and colors are referenced, not copied. Contacts of other users
// than the new owner are dropped.
func (d *Duplicator) Duplicate(ctx context.Context, sourceID uuid.UUID, opts Options) (budget *models.Budget, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "duplicate.Duplicate", trace.WithAttributes(
		attribute.String("duplicate.source", sourceID.String()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	err = d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		source, err := tree.Load(tx, sourceID)
		if err != nil {
			return err
		}

		c := &copier{
			tx:     tx,
			source: source,
			opts:   opts,
			ids:    make(map[uuid.UUID]uuid.UUID),
		}

		if err := c.loadContacts(); err != nil {
			return err
		}

		budget, err = c.copy()
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Debug().Str("source", sourceID.String()).Str("copy", budget.ID.String()).Dur("duration", time.Since(start)).Msg("duplicated budget")
	return budget, nil
}

// copier holds the state of one duplication.
type copier struct {
	tx       *gorm.DB
	source   *tree.Snapshot
	opts     Options
	ids      map[uuid.UUID]uuid.UUID // source ID to copy ID
	contacts map[uuid.UUID]bool      // contacts the new owner may reference
	target   *models.Budget
}

// id returns the ID of the copy of a resource, allocating it on first use.
func (c *copier) id(source uuid.UUID) uuid.UUID {
	if id, ok := c.ids[source]; ok {
		return id
	}

	id := uuid.New()
	c.ids[source] = id
	return id
}

func (c *copier) optionalID(source *uuid.UUID) *uuid.UUID {
	if source == nil {
		return nil
	}

	id := c.id(*source)
	return &id
}

func (c *copier) ref(source models.Ref) models.Ref {
	return models.Ref{Kind: source.Kind, ID: c.id(source.ID)}
}

// contact keeps a contact reference only if the new owner owns it.
func (c *copier) contact(id *uuid.UUID) *uuid.UUID {
	if id == nil || c.target.Domain != models.DomainBudget || !c.contacts[*id] {
		return nil
	}

	contact := *id
	return &contact
}

func (c *copier) loadContacts() error {
	var ids []uuid.UUID
	err := c.tx.Model(&models.Contact{}).Where("user_id = ?", c.opts.Owner).Pluck("id", &ids).Error
	if err != nil {
		return err
	}

	c.contacts = make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		c.contacts[id] = true
	}
	return nil
}

func (c *copier) copy() (*models.Budget, error) {
	src := c.source.Budget

	c.target = &models.Budget{
		DefaultModel: models.DefaultModel{ID: c.id(src.ID)},
		Name:         src.Name,
		Image:        src.Image,
		Domain:       src.Domain,
		OwnerID:      c.opts.Owner,
		CreatedByID:  c.opts.Owner,
		UpdatedByID:  c.opts.Owner,
	}

	if c.opts.Name != "" {
		c.target.Name = c.opts.Name
	}

	if c.opts.Domain != "" {
		c.target.Domain = c.opts.Domain
	}

	if err := c.create(models.KindBudget, c.target); err != nil {
		return nil, err
	}

	if err := c.copyFringes(); err != nil {
		return nil, err
	}

	if err := c.copyTree(); err != nil {
		return nil, err
	}

	if err := c.copyMarkups(); err != nil {
		return nil, err
	}

	if c.opts.IncludeActuals && c.target.Domain == models.DomainBudget {
		if err := c.copyActuals(); err != nil {
			return nil, err
		}
	}

	return c.recompute()
}

func (c *copier) create(kind models.Kind, value any) error {
	if err := c.tx.Create(value).Error; err != nil {
		return fmt.Errorf("copying %s: %w", kind, err)
	}

	copied.WithLabelValues(string(kind)).Inc()
	return nil
}

func (c *copier) copyFringes() error {
	for _, ref := range c.source.Siblings(models.KindFringe, c.source.Budget.Self()) {
		f := c.source.Fringes[ref.ID]

		err := c.create(models.KindFringe, &models.Fringe{
			DefaultModel: models.DefaultModel{ID: c.id(f.ID)},
			BudgetID:     c.target.ID,
			Name:         f.Name,
			Description:  f.Description,
			Order:        f.Order,
			Rate:         f.Rate,
			Cutoff:       f.Cutoff,
			Unit:         f.Unit,
			Color:        f.Color,
			CreatedByID:  c.opts.Owner,
			UpdatedByID:  c.opts.Owner,
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// copyTree copies accounts and subaccounts breadth first. The groups of a
// node are copied before its children so that the children can reference
// them.
func (c *copier) copyTree() error {
	queue := []models.Ref{c.source.Budget.Self()}

	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]

		for _, id := range c.source.GroupsOf(parent) {
			g := c.source.Groups[id]

			err := c.create(models.KindGroup, &models.Group{
				DefaultModel: models.DefaultModel{ID: c.id(g.ID)},
				BudgetID:     c.target.ID,
				ParentKind:   g.ParentKind,
				ParentID:     c.id(g.ParentID),
				Name:         g.Name,
				Color:        g.Color,
				CreatedByID:  c.opts.Owner,
				UpdatedByID:  c.opts.Owner,
			})
			if err != nil {
				return err
			}
		}

		for _, child := range c.source.Children(parent) {
			if err := c.copyNode(child); err != nil {
				return err
			}
			queue = append(queue, child)
		}
	}

	return nil
}

func (c *copier) copyNode(ref models.Ref) error {
	if ref.Kind == models.KindAccount {
		a := c.source.Accounts[ref.ID]

		return c.create(models.KindAccount, &models.Account{
			DefaultModel: models.DefaultModel{ID: c.id(a.ID)},
			BudgetID:     c.target.ID,
			Identifier:   a.Identifier,
			Description:  a.Description,
			Order:        a.Order,
			GroupID:      c.optionalID(a.GroupID),
			CreatedByID:  c.opts.Owner,
			UpdatedByID:  c.opts.Owner,
		})
	}

	sa := c.source.SubAccounts[ref.ID]
	dup := &models.SubAccount{
		DefaultModel: models.DefaultModel{ID: c.id(sa.ID)},
		BudgetID:     c.target.ID,
		ParentKind:   sa.ParentKind,
		ParentID:     c.id(sa.ParentID),
		Order:        sa.Order,
		Identifier:   sa.Identifier,
		Description:  sa.Description,
		GroupID:      c.optionalID(sa.GroupID),
		UnitID:       sa.UnitID,
		Quantity:     sa.Quantity,
		Rate:         sa.Rate,
		Multiplier:   sa.Multiplier,
		ContactID:    c.contact(sa.ContactID),
		CreatedByID:  c.opts.Owner,
		UpdatedByID:  c.opts.Owner,
	}

	if err := c.create(models.KindSubAccount, dup); err != nil {
		return err
	}

	for _, id := range sa.Fringes {
		err := c.tx.Create(&models.SubAccountFringe{SubAccountID: dup.ID, FringeID: c.id(id)}).Error
		if err != nil {
			return fmt.Errorf("copying fringes of %s: %w", ref, err)
		}
	}

	return nil
}

func (c *copier) copyMarkups() error {
	for _, m := range c.source.Markups {
		dup := &models.Markup{
			DefaultModel: models.DefaultModel{ID: c.id(m.ID)},
			BudgetID:     c.target.ID,
			ParentKind:   m.ParentKind,
			ParentID:     c.id(m.ParentID),
			Identifier:   m.Identifier,
			Description:  m.Description,
			Unit:         m.Unit,
			Rate:         m.Rate,
			CreatedByID:  c.opts.Owner,
			UpdatedByID:  c.opts.Owner,
		}

		if err := c.create(models.KindMarkup, dup); err != nil {
			return err
		}

		kind := models.ChildKind(m.ParentKind)
		for _, id := range m.Children {
			child := c.ref(models.Ref{Kind: kind, ID: id})

			err := c.tx.Create(&models.MarkupChild{MarkupID: dup.ID, ChildKind: child.Kind, ChildID: child.ID}).Error
			if err != nil {
				return fmt.Errorf("copying children of markup %s: %w", m.ID, err)
			}
		}
	}

	return nil
}

func (c *copier) copyActuals() error {
	for _, ref := range c.source.Siblings(models.KindActual, c.source.Budget.Self()) {
		a := c.source.Actuals[ref.ID]

		dup := &models.Actual{
			DefaultModel:  models.DefaultModel{ID: c.id(a.ID)},
			BudgetID:      c.target.ID,
			Order:         a.Order,
			Description:   a.Description,
			Value:         a.Value,
			Date:          a.Date,
			PaymentID:     a.PaymentID,
			PurchaseOrder: a.PurchaseOrder,
			ContactID:     c.contact(a.ContactID),
			ActualTypeID:  a.ActualTypeID,
			CreatedByID:   c.opts.Owner,
			UpdatedByID:   c.opts.Owner,
		}

		if owner, ok := a.Owner(); ok {
			dup.OwnerKind = owner.Kind
			dup.OwnerID = c.optionalID(&owner.ID)
		}

		if err := c.create(models.KindActual, dup); err != nil {
			return err
		}
	}

	return nil
}

// recompute computes the derived values of the copy from its leaves.
func (c *copier) recompute() (*models.Budget, error) {
	target, err := tree.Load(c.tx, c.target.ID)
	if err != nil {
		return nil, err
	}

	plan, err := target.Full()
	if err != nil {
		return nil, err
	}

	if err := target.Save(c.tx, target.Recompute(plan)); err != nil {
		return nil, err
	}

	return target.Budget, nil
}
