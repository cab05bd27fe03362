package models

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind is the type tag of a resource in a polymorphic reference.
type Kind string

const (
	KindBudget     Kind = "budget"
	KindAccount    Kind = "account"
	KindSubAccount Kind = "subaccount"
	KindMarkup     Kind = "markup"
	KindGroup      Kind = "group"
	KindFringe     Kind = "fringe"
	KindActual     Kind = "actual"
)

// parentKinds lists the parent kinds that are allowed for each child kind.
var parentKinds = map[Kind][]Kind{
	KindAccount:    {KindBudget},
	KindSubAccount: {KindAccount, KindSubAccount},
	KindMarkup:     {KindBudget, KindAccount, KindSubAccount},
	KindGroup:      {KindBudget, KindAccount, KindSubAccount},
	KindFringe:     {KindBudget},
	KindActual:     {KindBudget},
}

// ParentKinds returns the kinds a resource of kind k can be attached to.
func ParentKinds(k Kind) []Kind {
	return parentKinds[k]
}

// AllowsParent reports if a resource of kind child can have a parent of kind parent.
func AllowsParent(child, parent Kind) bool {
	for _, k := range parentKinds[child] {
		if k == parent {
			return true
		}
	}
	return false
}

// ChildKind is the kind of the nodes a parent of kind k contains.
// Budgets contain accounts, accounts and subaccounts contain subaccounts.
func ChildKind(k Kind) Kind {
	if k == KindBudget {
		return KindAccount
	}
	return KindSubAccount
}

// Valid reports if k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindBudget, KindAccount, KindSubAccount, KindMarkup, KindGroup, KindFringe, KindActual:
		return true
	}
	return false
}

// Ref is a tagged reference to a resource.
type Ref struct {
	Kind Kind      `json:"kind" example:"subaccount"`
	ID   uuid.UUID `json:"id" example:"4e743e94-6a4b-44d6-aba5-d77c87103ff7"`
}

func (r Ref) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}

// IsZero reports if the reference is unset.
func (r Ref) IsZero() bool {
	return r.Kind == "" && r.ID == uuid.Nil
}
