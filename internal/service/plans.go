package service

import (
	"github.com/shopspring/decimal"

	ierr "github.com/quecocinohoy/backend/internal/errors"
	"github.com/quecocinohoy/backend/internal/models"
)

// Plan is the server-side price of a subscription. Clients only ever send the
// plan type.
type Plan struct {
	Type          models.PlanType
	Name          string
	Amount        decimal.Decimal
	Currency      string
	Frequency     int
	FrequencyType string
}

// PlanCatalog is the static price list.
var PlanCatalog = map[models.PlanType]Plan{
	models.PlanMonthly: {
		Type:          models.PlanMonthly,
		Name:          "Premium Mensual",
		Amount:        decimal.NewFromInt(2990),
		Currency:      "ARS",
		Frequency:     1,
		FrequencyType: "months",
	},
	models.PlanYearly: {
		Type:          models.PlanYearly,
		Name:          "Premium Anual",
		Amount:        decimal.NewFromInt(29400),
		Currency:      "ARS",
		Frequency:     12,
		FrequencyType: "months",
	},
}

// LookupPlan returns the catalog entry for planType.
func LookupPlan(planType models.PlanType) (Plan, error) {
	plan, ok := PlanCatalog[planType]
	if !ok {
		return Plan{}, ierr.NewError("unknown plan type").
			WithHint("El plan elegido no existe.").
			WithReportableDetails(map[string]any{"planType": string(planType)}).
			Mark(ierr.ErrValidation)
	}
	return plan, nil
}
