package billing

import (
	"net/http"
	"strings"
	"time"

	"github.com/loomline/designvault/api/responses"
	"github.com/loomline/designvault/api/validators"
	"github.com/loomline/designvault/internal/plans"
	"github.com/loomline/designvault/pkg/db/models"
	"github.com/loomline/designvault/pkg/enums"
	pkgerrors "github.com/loomline/designvault/pkg/errors"
	"github.com/loomline/designvault/pkg/logger"
)

type planResponse struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	Status           string   `json:"status"`
	IsDefault        bool     `json:"is_default"`
	Interval         string   `json:"interval"`
	PriceAmount      string   `json:"price_amount"`
	PriceAmountMinor int64    `json:"price_amount_minor"`
	CurrencyCode     string   `json:"currency_code"`
	Features         []string `json:"features"`
	CreatedAt        string   `json:"created_at"`
	UpdatedAt        string   `json:"updated_at"`
}

type planListResponse struct {
	Plans []planResponse `json:"plans"`
}

type planUpsertRequest struct {
	Name         string   `json:"name" validate:"required,max=120"`
	Description  string   `json:"description" validate:"max=2000"`
	Status       string   `json:"status" validate:"required,oneof=active inactive"`
	Interval     string   `json:"interval" validate:"required,oneof=monthly yearly"`
	PriceAmount  string   `json:"price_amount" validate:"required"`
	CurrencyCode string   `json:"currency_code" validate:"required,len=3"`
	Features     []string `json:"features"`
	IsDefault    bool     `json:"is_default"`
}

func (p planUpsertRequest) input() plans.PlanInput {
	return plans.PlanInput{
		Name:         p.Name,
		Description:  p.Description,
		Status:       p.Status,
		Interval:     p.Interval,
		PriceAmount:  p.PriceAmount,
		CurrencyCode: p.CurrencyCode,
		Features:     p.Features,
		IsDefault:    p.IsDefault,
	}
}

// PlansList is the public listing of purchasable plans.
func PlansList(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}
		list, err := svc.ListActive(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, planListResponse{Plans: plansToResponse(list)})
	}
}

func AdminPlansList(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		var status *enums.PlanStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParsePlanStatus(raw)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			status = &parsed
		}

		list, err := svc.List(ctx, status)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, planListResponse{Plans: plansToResponse(list)})
	}
}

func AdminPlanDetail(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}
		planID, err := validators.ParseUUIDParam(r, "planId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		plan, err := svc.Get(ctx, planID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, planToResponse(plan))
	}
}

func AdminPlanCreate(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}
		var payload planUpsertRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		plan, err := svc.Create(ctx, payload.input())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, planToResponse(plan))
	}
}

func AdminPlanUpdate(svc plans.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}
		planID, err := validators.ParseUUIDParam(r, "planId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var payload planUpsertRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		plan, err := svc.Update(ctx, planID, payload.input())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, planToResponse(plan))
	}
}

func plansToResponse(list []models.BillingPlan) []planResponse {
	result := make([]planResponse, 0, len(list))
	for i := range list {
		result = append(result, planToResponse(&list[i]))
	}
	return result
}

func planToResponse(plan *models.BillingPlan) planResponse {
	features := make([]string, len(plan.Features))
	copy(features, plan.Features)

	return planResponse{
		ID:               plan.ID.String(),
		Name:             plan.Name,
		Description:      plan.Description,
		Status:           string(plan.Status),
		IsDefault:        plan.IsDefault,
		Interval:         string(plan.Interval),
		PriceAmount:      plan.PriceAmount.StringFixed(2),
		PriceAmountMinor: plan.PriceAmount.Shift(2).Round(0).IntPart(),
		CurrencyCode:     plan.CurrencyCode,
		Features:         features,
		CreatedAt:        formatTime(plan.CreatedAt),
		UpdatedAt:        formatTime(plan.UpdatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
