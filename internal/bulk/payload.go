package bulk

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/greenbudget/backend/internal/models"
)

// Payload holds the fields of a created or updated row. Only fields that
// are set are applied.
type Payload struct {
	Identifier    Optional[string]      `json:"identifier"`
	Description   Optional[string]      `json:"description"`
	Name          Optional[string]      `json:"name"`
	Color         Optional[string]      `json:"color"`
	GroupID       Optional[*uuid.UUID]  `json:"groupId"`
	UnitID        Optional[*uuid.UUID]  `json:"unitId"`
	Quantity      Optional[*float64]    `json:"quantity"`
	Rate          Optional[*float64]    `json:"rate"`
	Multiplier    Optional[*float64]    `json:"multiplier"`
	ContactID     Optional[*uuid.UUID]  `json:"contactId"`
	Fringes       Optional[[]uuid.UUID] `json:"fringes"`
	Unit          Optional[models.Unit] `json:"unit"`
	Cutoff        Optional[*float64]    `json:"cutoff"`
	Children      Optional[[]uuid.UUID] `json:"children"`
	Owner         Optional[*models.Ref] `json:"owner"`
	Value         Optional[*float64]    `json:"value"`
	Date          Optional[*time.Time]  `json:"date"`
	PaymentID     Optional[string]      `json:"paymentId"`
	PurchaseOrder Optional[string]      `json:"purchaseOrder"`
	ActualTypeID  Optional[*uuid.UUID]  `json:"actualTypeId"`
}

// Patch is the update of one row.
type Patch struct {
	ID uuid.UUID `json:"id"`
	Payload
}

// allowed lists the payload fields each kind accepts.
var allowed = map[models.Kind]map[string]bool{
	models.KindAccount:    fieldSet("identifier", "description", "groupId"),
	models.KindSubAccount: fieldSet("identifier", "description", "groupId", "unitId", "quantity", "rate", "multiplier", "contactId", "fringes"),
	models.KindFringe:     fieldSet("name", "description", "color", "rate", "cutoff", "unit"),
	models.KindMarkup:     fieldSet("identifier", "description", "unit", "rate", "children"),
	models.KindGroup:      fieldSet("name", "color"),
	models.KindActual:     fieldSet("description", "owner", "value", "date", "paymentId", "purchaseOrder", "contactId", "actualTypeId"),
}

func fieldSet(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// Empty reports if no field of the payload is set.
func (p Payload) Empty() bool {
	return len(p.present()) == 0
}

// present returns the JSON names of all fields that are set.
func (p Payload) present() []string {
	var names []string
	add := func(set bool, name string) {
		if set {
			names = append(names, name)
		}
	}

	add(p.Identifier.Set, "identifier")
	add(p.Description.Set, "description")
	add(p.Name.Set, "name")
	add(p.Color.Set, "color")
	add(p.GroupID.Set, "groupId")
	add(p.UnitID.Set, "unitId")
	add(p.Quantity.Set, "quantity")
	add(p.Rate.Set, "rate")
	add(p.Multiplier.Set, "multiplier")
	add(p.ContactID.Set, "contactId")
	add(p.Fringes.Set, "fringes")
	add(p.Unit.Set, "unit")
	add(p.Cutoff.Set, "cutoff")
	add(p.Children.Set, "children")
	add(p.Owner.Set, "owner")
	add(p.Value.Set, "value")
	add(p.Date.Set, "date")
	add(p.PaymentID.Set, "paymentId")
	add(p.PurchaseOrder.Set, "purchaseOrder")
	add(p.ActualTypeID.Set, "actualTypeId")

	return names
}

var validate = validator.New()

// tagCodes maps validator tags to the codes of a ValidationError.
var tagCodes = map[string]string{
	"required": "required",
	"max":      "too_long",
	"hexcolor": "invalid",
	"oneof":    "invalid",
	"gte":      "negative",
	"unique":   "duplicate",
}

// check validates a single value against validator tags.
func check(index int, field string, value any, tag string) error {
	err := validate.Var(value, tag)

	var errs validator.ValidationErrors
	if errors.As(err, &errs) && len(errs) > 0 {
		code, ok := tagCodes[errs[0].Tag()]
		if !ok {
			code = "invalid"
		}
		return invalid(index, field, code)
	}

	return err
}

// Validate checks a payload for a row of kind.
//
// It only checks the payload itself. References to other resources are
// verified when the payload is applied.
func (p Payload) Validate(index int, kind models.Kind, create bool) error {
	fields, ok := allowed[kind]
	if !ok {
		return invalid(-1, "kind", "not_supported")
	}

	for _, name := range p.present() {
		if !fields[name] {
			return invalid(index, name, "not_allowed")
		}
	}

	if create && (kind == models.KindFringe || kind == models.KindGroup) && !p.Name.Set {
		return invalid(index, "name", "required")
	}

	checks := []struct {
		set   bool
		field string
		value any
		tag   string
	}{
		{p.Identifier.Set, "identifier", p.Identifier.Value, "max=128"},
		{p.Description.Set, "description", p.Description.Value, "max=1024"},
		{p.Name.Set, "name", strings.TrimSpace(p.Name.Value), "required,max=255"},
		{p.Color.Set, "color", p.Color.Value, "omitempty,hexcolor"},
		{p.Unit.Set, "unit", string(p.Unit.Value), "oneof=percent flat"},
		{p.Fringes.Set, "fringes", p.Fringes.Value, "unique"},
		{p.Children.Set, "children", p.Children.Value, "unique"},
		{p.PaymentID.Set, "paymentId", p.PaymentID.Value, "max=128"},
		{p.PurchaseOrder.Set, "purchaseOrder", p.PurchaseOrder.Value, "max=128"},
		{p.Cutoff.Value != nil, "cutoff", p.Cutoff.Value, "gte=0"},
	}

	for _, c := range checks {
		if !c.set {
			continue
		}

		if err := check(index, c.field, c.value, c.tag); err != nil {
			return err
		}
	}

	// Fringes and markups always have a rate
	if (kind == models.KindFringe || kind == models.KindMarkup) && p.Rate.Set && p.Rate.Value == nil {
		return invalid(index, "rate", "required")
	}

	if p.Owner.Value != nil {
		if err := check(index, "owner", string(p.Owner.Value.Kind), "oneof=subaccount markup"); err != nil {
			return err
		}
	}

	return nil
}

func (p Payload) applyAccount(a *models.Account) {
	p.Identifier.apply(&a.Identifier)
	p.Description.apply(&a.Description)
	p.GroupID.apply(&a.GroupID)
}

func (p Payload) applySubAccount(sa *models.SubAccount) {
	p.Identifier.apply(&sa.Identifier)
	p.Description.apply(&sa.Description)
	p.GroupID.apply(&sa.GroupID)
	p.UnitID.apply(&sa.UnitID)
	p.Quantity.apply(&sa.Quantity)
	p.Rate.apply(&sa.Rate)
	p.Multiplier.apply(&sa.Multiplier)
	p.ContactID.apply(&sa.ContactID)
	p.Fringes.apply(&sa.Fringes)
}

func (p Payload) applyFringe(f *models.Fringe) {
	p.Name.apply(&f.Name)
	p.Description.apply(&f.Description)
	p.Color.apply(&f.Color)
	p.Cutoff.apply(&f.Cutoff)
	p.Unit.apply(&f.Unit)
	if p.Rate.Set && p.Rate.Value != nil {
		f.Rate = *p.Rate.Value
	}
}

func (p Payload) applyMarkup(m *models.Markup) {
	p.Identifier.apply(&m.Identifier)
	p.Description.apply(&m.Description)
	p.Unit.apply(&m.Unit)
	p.Children.apply(&m.Children)
	if p.Rate.Set && p.Rate.Value != nil {
		m.Rate = *p.Rate.Value
	}
}

func (p Payload) applyGroup(g *models.Group) {
	p.Name.apply(&g.Name)
	p.Color.apply(&g.Color)
}

func (p Payload) applyActual(a *models.Actual) {
	p.Description.apply(&a.Description)
	p.Value.apply(&a.Value)
	p.Date.apply(&a.Date)
	p.PaymentID.apply(&a.PaymentID)
	p.PurchaseOrder.apply(&a.PurchaseOrder)
	p.ContactID.apply(&a.ContactID)
	p.ActualTypeID.apply(&a.ActualTypeID)

	if p.Owner.Set {
		if p.Owner.Value == nil {
			a.OwnerKind = ""
			a.OwnerID = nil
		} else {
			id := p.Owner.Value.ID
			a.OwnerKind = p.Owner.Value.Kind
			a.OwnerID = &id
		}
	}
}
