package rest

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"customerIntel/business/attribution"
	"customerIntel/business/churn"
	"customerIntel/business/customer"
	"customerIntel/business/duplicate"
	"customerIntel/business/ltv"
	"customerIntel/business/tracking"
)

const (
	dateLayout       = "2006-01-02"
	defaultRangeDays = 30
	maxLimit         = 500
	handlerTimeout   = 10 * time.Second
)

type ResponseError struct {
	Message string `json:"message"`
}

// analyticsQuery is the shared query string of the admin analytics routes.
type analyticsQuery struct {
	Model       string  `query:"model" validate:"omitempty,max=32"`
	Start       string  `query:"start" validate:"omitempty,datetime=2006-01-02"`
	End         string  `query:"end" validate:"omitempty,datetime=2006-01-02"`
	TenantID    uint    `query:"tenant_id"`
	Limit       int     `query:"limit" validate:"omitempty,min=1,max=500"`
	RiskLevel   string  `query:"risk_level" validate:"omitempty,oneof=minimal low medium high critical"`
	CohortType  string  `query:"cohort_type" validate:"omitempty,oneof=month week"`
	CohortsBack int     `query:"cohorts_back" validate:"omitempty,min=1,max=36"`
	Threshold   float64 `query:"threshold" validate:"omitempty,gt=0,lte=1"`
}

func (q analyticsQuery) tenant() *uint {
	if q.TenantID == 0 {
		return nil
	}
	id := q.TenantID
	return &id
}

// limit of 0 leaves the default to the service.
func (q analyticsQuery) limit() int {
	if q.Limit > maxLimit {
		return maxLimit
	}
	return q.Limit
}

// dateRange defaults to the last 30 days; end is inclusive to the end of its day.
func (q analyticsQuery) dateRange(now time.Time) (time.Time, time.Time, error) {
	end := now
	if q.End != "" {
		d, err := time.Parse(dateLayout, q.End)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = d.Add(24*time.Hour - time.Nanosecond)
	}

	start := end.AddDate(0, 0, -defaultRangeDays)
	if q.Start != "" {
		d, err := time.Parse(dateLayout, q.Start)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = d
	}

	if start.After(end) {
		return time.Time{}, time.Time{}, errors.New("start must not be after end")
	}
	return start, end, nil
}

// bindQuery reads the query string regardless of the request method.
func bindQuery(c echo.Context, v *validator.Validate) (analyticsQuery, error) {
	var q analyticsQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return q, err
	}
	if err := v.Struct(&q); err != nil {
		return q, err
	}
	return q, nil
}

func parseID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid " + name)
	}
	return uint(id), nil
}

// statusFor maps business errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, customer.ErrNotFound),
		errors.Is(err, churn.ErrNotFound),
		errors.Is(err, ltv.ErrNotFound),
		errors.Is(err, attribution.ErrConversionNotFound),
		errors.Is(err, attribution.ErrCustomerNotFound),
		errors.Is(err, duplicate.ErrMatchNotFound),
		errors.Is(err, tracking.ErrConversionNotFound):
		return http.StatusNotFound
	case errors.Is(err, attribution.ErrUnknownModel),
		errors.Is(err, customer.ErrSelfMerge),
		errors.Is(err, duplicate.ErrGroupTooSmall),
		errors.Is(err, tracking.ErrNoIdentity):
		return http.StatusBadRequest
	case errors.Is(err, customer.ErrAlreadyMerged),
		errors.Is(err, customer.ErrTargetMerged),
		errors.Is(err, customer.ErrAnonymized),
		errors.Is(err, tracking.ErrInvalidConversionTransition):
		return http.StatusConflict
	case errors.Is(err, tracking.ErrNoPublisher):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorJSON(c echo.Context, err error) error {
	return c.JSON(statusFor(err), ResponseError{Message: err.Error()})
}
