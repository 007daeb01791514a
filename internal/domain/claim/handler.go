package claim

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/karlkimuhu/ginga-claims-ai/internal/platform/auth"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – admin, billing, claims-reader
	readGroup := api.Group("", auth.RequireRole("admin", "billing", "claims-reader"))
	readGroup.GET("/claims/:id", h.GetClaim)

	// Write endpoints – admin, billing
	writeGroup := api.Group("", auth.RequireRole("admin", "billing"))
	writeGroup.POST("/claims", h.SubmitClaim)
}

// SubmitClaim answers 201 for a new claim and 200 when an idempotency key
// replays an earlier submission.
func (h *Handler) SubmitClaim(c echo.Context) error {
	var in SubmitInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	in.IdempotencyKey = c.Request().Header.Get(IdempotencyKeyHeader)

	res, err := h.svc.Submit(c.Request().Context(), in)
	if err != nil {
		return httpError(err)
	}
	if res.Replayed {
		return c.JSON(http.StatusOK, res)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) GetClaim(c echo.Context) error {
	res, err := h.svc.Fetch(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

// httpError maps domain errors to responses. Faults never leak their cause.
func httpError(err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
	}
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return echo.NewHTTPError(http.StatusNotFound, capitalize(nf.Kind)+" not found")
	}
	var ce *ConflictError
	if errors.As(err, &ce) {
		return echo.NewHTTPError(http.StatusConflict, "idempotency key already used with a different payload")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
