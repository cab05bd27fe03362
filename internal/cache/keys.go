package cache

import (
	"github.com/google/uuid"
	"github.com/greenbudget/backend/internal/models"
)

func key(name string, id uuid.UUID) string {
	return name + ":" + id.String()
}

func BudgetDetail(id uuid.UUID) string       { return key("budget-detail", id) }
func BudgetChildren(id uuid.UUID) string     { return key("budget-children", id) }
func BudgetActualOwners(id uuid.UUID) string { return key("budget-actual-owners", id) }
func BudgetFringes(id uuid.UUID) string      { return key("budget-fringes", id) }
func BudgetActuals(id uuid.UUID) string      { return key("budget-actuals", id) }
func AccountDetail(id uuid.UUID) string      { return key("account-detail", id) }
func AccountChildren(id uuid.UUID) string    { return key("account-children", id) }
func SubAccountDetail(id uuid.UUID) string   { return key("subaccount-detail", id) }
func SubAccountChildren(id uuid.UUID) string { return key("subaccount-children", id) }

// Markups is the key of the markups that have parent as their parent.
func Markups(parent models.Ref) string {
	return "markups:" + parent.String()
}

// Groups is the key of the groups that have parent as their parent.
func Groups(parent models.Ref) string {
	return "groups:" + parent.String()
}

// Detail returns the detail key of a budget, account or subaccount.
func Detail(ref models.Ref) string {
	switch ref.Kind {
	case models.KindBudget:
		return BudgetDetail(ref.ID)
	case models.KindAccount:
		return AccountDetail(ref.ID)
	case models.KindSubAccount:
		return SubAccountDetail(ref.ID)
	}
	return ""
}

// Children returns the children key of a budget, account or subaccount.
func Children(ref models.Ref) string {
	switch ref.Kind {
	case models.KindBudget:
		return BudgetChildren(ref.ID)
	case models.KindAccount:
		return AccountChildren(ref.ID)
	case models.KindSubAccount:
		return SubAccountChildren(ref.ID)
	}
	return ""
}
