// Package service implements the property registry: registration, lookup,
// counting and owner-gated risk-zone updates. Handlers own the identity
// boundary and pass the authenticated caller in explicitly.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"propreg/internal/chain"
	"propreg/internal/property/metrics"
	"propreg/internal/property/models"
	"propreg/pkg/domain"
	dErrors "propreg/pkg/domain-errors"
	audit "propreg/pkg/platform/audit"
	"propreg/pkg/platform/sentinel"
	"propreg/pkg/requestcontext"
)

const tracerName = "propreg/internal/property/service"

// Store persists property records. Execute must run validate and mutate
// under the same lock as the write, and return validate's error unchanged.
type Store interface {
	Append(ctx context.Context, p *models.Property) (domain.PropertyID, error)
	FindByID(ctx context.Context, id domain.PropertyID) (*models.Property, error)
	Count(ctx context.Context) (domain.PropertyID, error)
	Execute(ctx context.Context, id domain.PropertyID, validate func(*models.Property) error, mutate func(*models.Property)) (*models.Property, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the property registry.
type Service struct {
	store          Store
	tx             StoreTx
	heights        chain.HeightSource
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithHeightSource sets where registration heights come from. Without it
// every record is registered at height zero.
func WithHeightSource(heights chain.HeightSource) Option {
	return func(s *Service) {
		s.heights = heights
	}
}

// WithTx replaces the default transaction boundary.
func WithTx(tx StoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("property store is required")
	}
	s := &Service{
		store:   store,
		heights: chain.Fixed(0),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = NewBoundedTx(store, 0)
	}
	return s, nil
}

// Register records a new property owned by caller at the current height and
// returns its id. Ids are dense and start at 1.
func (s *Service) Register(ctx context.Context, caller domain.Principal, cmd models.RegisterCommand) (domain.PropertyID, error) {
	start := time.Now()
	defer s.observe("register", start)

	ctx, span := s.tracer.Start(ctx, "property.Register")
	defer span.End()

	height := s.heights.Height(ctx)
	property := models.NewProperty(caller, cmd, height)

	var id domain.PropertyID
	err := s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
		var err error
		id, err = store.Append(ctx, property)
		return err
	})
	if err != nil {
		err = translate(err, "failed to register property")
		recordSpanError(span, err)
		return 0, err
	}
	property.ID = id
	span.SetAttributes(attribute.Int64("property.id", int64(id)), attribute.Int64("chain.height", int64(height)))

	s.incrementRegistered()
	s.logAudit(ctx, audit.Event{
		Action:     audit.ActionPropertyRegistered,
		PropertyID: id,
		Actor:      caller,
		Height:     height,
		Current:    property.RiskZone,
	})
	return id, nil
}

// GetProperty returns a copy of the record for id.
func (s *Service) GetProperty(ctx context.Context, id domain.PropertyID) (*models.Property, error) {
	start := time.Now()
	defer s.observe("get", start)

	ctx, span := s.tracer.Start(ctx, "property.GetProperty",
		trace.WithAttributes(attribute.String("property.id", id.String())))
	defer span.End()

	property, err := s.store.FindByID(ctx, id)
	if err != nil {
		err = translate(err, "failed to load property")
		recordSpanError(span, err)
		return nil, err
	}
	return property, nil
}

// GetPropertyCount returns the number of properties ever registered, which is
// also the highest assigned id.
func (s *Service) GetPropertyCount(ctx context.Context) (domain.PropertyID, error) {
	start := time.Now()
	defer s.observe("count", start)

	ctx, span := s.tracer.Start(ctx, "property.GetPropertyCount")
	defer span.End()

	count, err := s.store.Count(ctx)
	if err != nil {
		err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to count properties")
		recordSpanError(span, err)
		return 0, err
	}
	return count, nil
}

// UpdateRiskZone overwrites the risk zone of id. Only the owner may do so;
// any failure leaves the record unchanged.
func (s *Service) UpdateRiskZone(ctx context.Context, id domain.PropertyID, newRiskZone string, caller domain.Principal) error {
	start := time.Now()
	defer s.observe("update_risk_zone", start)

	ctx, span := s.tracer.Start(ctx, "property.UpdateRiskZone",
		trace.WithAttributes(attribute.String("property.id", id.String())))
	defer span.End()

	var previous string
	var updated *models.Property
	err := s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
		var err error
		updated, err = store.Execute(ctx, id,
			func(p *models.Property) error {
				if err := p.CanUpdateRiskZone(caller); err != nil {
					return err
				}
				previous = p.RiskZone
				return nil
			},
			func(p *models.Property) {
				p.ApplyRiskZone(newRiskZone)
			},
		)
		return err
	})
	if err != nil {
		err = translate(err, "failed to update risk zone")
		recordSpanError(span, err)
		switch {
		case dErrors.HasCode(err, dErrors.CodeForbidden):
			s.incrementRiskZoneUpdate(metrics.OutcomeDenied)
			s.logAudit(ctx, audit.Event{
				Action:     audit.ActionRiskZoneUpdateDenied,
				PropertyID: id,
				Actor:      caller,
				Decision:   "denied",
				Reason:     "not_owner",
				Current:    newRiskZone,
			})
		case dErrors.HasCode(err, dErrors.CodeNotFound):
			s.incrementRiskZoneUpdate(metrics.OutcomeNotFound)
		default:
			s.incrementRiskZoneUpdate(metrics.OutcomeError)
		}
		return err
	}

	s.incrementRiskZoneUpdate(metrics.OutcomeUpdated)
	s.logAudit(ctx, audit.Event{
		Action:     audit.ActionRiskZoneUpdated,
		PropertyID: id,
		Actor:      caller,
		Decision:   "granted",
		Previous:   previous,
		Current:    updated.RiskZone,
	})
	return nil
}

// translate maps store errors onto domain codes. Errors that already carry a
// code (not-owner, timeouts) pass through.
func translate(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "property not found")
	}
	if errors.Is(err, sentinel.ErrConflict) {
		return dErrors.Wrap(err, dErrors.CodeInvariantViolation, "property id already allocated")
	}
	if _, ok := dErrors.As(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// logAudit logs the event and hands it to the publisher. Audit delivery is
// best effort: the registry state has already changed.
func (s *Service) logAudit(ctx context.Context, event audit.Event) {
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event.Action),
			"event", string(event.Action),
			"log_type", "audit",
			"property_id", event.PropertyID,
			"caller", event.Actor,
			"request_id", event.RequestID,
		)
	}
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		if s.metrics != nil {
			s.metrics.IncrementAuditEmitFailure()
		}
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to emit audit event",
				"error", err,
				"action", event.Action,
				"property_id", event.PropertyID,
			)
		}
	}
}

func (s *Service) observe(operation string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(operation, start)
	}
}

func (s *Service) incrementRegistered() {
	if s.metrics != nil {
		s.metrics.IncrementRegistered()
	}
}

func (s *Service) incrementRiskZoneUpdate(outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementRiskZoneUpdate(outcome)
	}
}
