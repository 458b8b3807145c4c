package gogoblin

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewServer constructs the HTTP API in front of the engine.
func NewServer(engine *Engine) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(recordResponseCodes)

	h := &apiHandlers{engine: engine, now: time.Now}

	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "Goblin")
	})
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.POST("/api/metrics", h.computeMetrics)
	e.POST("/api/validate-address", h.validateAddress)

	return e
}

type apiHandlers struct {
	engine *Engine
	now    func() time.Time
}

type metricsRequest struct {
	Addresses []string      `json:"addresses"`
	Range     TimeRangeKind `json:"range"`
	Start     *time.Time    `json:"start"`
	End       *time.Time    `json:"end"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *apiHandlers) computeMetrics(c echo.Context) error {
	var req metricsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "addresses must be a non-empty array"})
	}
	if len(req.Addresses) == 0 {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "addresses must be a non-empty array"})
	}

	kind := req.Range
	if kind == "" && (req.Start != nil || req.End != nil) {
		kind = RangeCustom
	}
	start, end := ResolveTimeRange(kind, h.now(), req.Start, req.End)

	metrics, err := h.engine.ComputeMetrics(c.Request().Context(), req.Addresses, start, end)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, metrics)
}

type validateAddressRequest struct {
	Address string `json:"address"`
}

type validateAddressResponse struct {
	AddressValidation
	Error string `json:"error,omitempty"`
}

func (h *apiHandlers) validateAddress(c echo.Context) error {
	var req validateAddressRequest
	if err := c.Bind(&req); err != nil || req.Address == "" {
		return c.JSON(http.StatusBadRequest, validateAddressResponse{
			AddressValidation: AddressValidation{Reason: ReasonInvalidFormat},
			Error:             "Address required and must be a string",
		})
	}

	result := ValidateAddress(req.Address)
	if !result.Valid {
		return c.JSON(http.StatusBadRequest, validateAddressResponse{
			AddressValidation: result,
			Error:             result.Err().Error(),
		})
	}
	return c.JSON(http.StatusOK, validateAddressResponse{AddressValidation: result})
}
