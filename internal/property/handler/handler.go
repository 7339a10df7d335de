package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"propreg/internal/property/models"
	"propreg/pkg/domain"
	dErrors "propreg/pkg/domain-errors"
	"propreg/pkg/platform/httputil"
	"propreg/pkg/requestcontext"
)

// Service defines the registry operations exposed over HTTP.
type Service interface {
	Register(ctx context.Context, caller domain.Principal, cmd models.RegisterCommand) (domain.PropertyID, error)
	GetProperty(ctx context.Context, id domain.PropertyID) (*models.Property, error)
	GetPropertyCount(ctx context.Context) (domain.PropertyID, error)
	UpdateRiskZone(ctx context.Context, id domain.PropertyID, newRiskZone string, caller domain.Principal) error
}

// Handler wires property endpoints to the registry service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts property endpoints on the router. The router must already
// carry the auth middleware.
func (h *Handler) Register(r chi.Router) {
	r.Route("/properties", func(r chi.Router) {
		r.Post("/", h.HandleRegister)
		r.Get("/count", h.HandleCount)
		r.Get("/{id}", h.HandleGet)
		r.Put("/{id}/risk-zone", h.HandleUpdateRiskZone)
	})
}

// HandleRegister handles POST /properties.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	id, err := h.service.Register(ctx, caller, req.Command())
	if err != nil {
		h.logger.ErrorContext(ctx, "property registration failed",
			"request_id", requestID,
			"caller", caller,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "property registered",
		"request_id", requestID,
		"caller", caller,
		"property_id", id,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, &RegisterResponse{ID: id})
}

// HandleGet handles GET /properties/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if _, ok := h.requireCaller(w, r); !ok {
		return
	}

	id, err := domain.ParsePropertyID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	property, err := h.service.GetProperty(ctx, id)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "failed to load property",
				"request_id", requestID,
				"property_id", id,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromProperty(property))
}

// HandleCount handles GET /properties/count.
func (h *Handler) HandleCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, ok := h.requireCaller(w, r); !ok {
		return
	}

	count, err := h.service.GetPropertyCount(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to count properties",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &CountResponse{Count: count})
}

// HandleUpdateRiskZone handles PUT /properties/{id}/risk-zone.
func (h *Handler) HandleUpdateRiskZone(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	id, err := domain.ParsePropertyID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[UpdateRiskZoneRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.UpdateRiskZone(ctx, id, req.ParsedRiskZone(), caller); err != nil {
		switch {
		case dErrors.HasCode(err, dErrors.CodeForbidden):
			h.logger.WarnContext(ctx, "risk zone update denied",
				"request_id", requestID,
				"caller", caller,
				"property_id", id,
			)
		case dErrors.HasCode(err, dErrors.CodeNotFound):
			// client error, not logged
		default:
			h.logger.ErrorContext(ctx, "risk zone update failed",
				"request_id", requestID,
				"caller", caller,
				"property_id", id,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "risk zone updated",
		"request_id", requestID,
		"caller", caller,
		"property_id", id,
	)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requireCaller(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	caller := requestcontext.Caller(r.Context())
	if caller.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	return caller, true
}
