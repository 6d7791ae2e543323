package waitlist

//go:generate mockgen -destination=mock_verifier_test.go -package=waitlist github.com/akeren/waitlist-edge/pkg/captcha Verifier

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/akeren/waitlist-edge/internal/log"
	"github.com/akeren/waitlist-edge/pkg/captcha"
	apperrors "github.com/akeren/waitlist-edge/pkg/errors"
	"github.com/akeren/waitlist-edge/pkg/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	EventJoined    = "waitlist_joined"
	EventDuplicate = "waitlist_duplicate"
)

var tracer = otel.Tracer("github.com/akeren/waitlist-edge/domain/waitlist")

type WaitlistService interface {
	// Join verifies the CAPTCHA and writes the signup. A nil error always
	// comes with a non-nil outcome.
	Join(ctx context.Context, req *SignupRequest) (InsertOutcome, error)

	// ListSubscribers returns every stored signup.
	ListSubscribers(ctx context.Context) (*SubscriberListResponse, error)
}

// EventTracker is satisfied by *analytics.Tracker.
type EventTracker interface {
	Capture(ctx context.Context, name string, properties map[string]any) error
}

type ServiceConfig struct {
	Table         string
	CaptchaSecret string
}

type waitlistService struct {
	logger     *log.Logger
	repository WaitlistRepository
	verifier   captcha.Verifier
	tracker    EventTracker
	config     ServiceConfig
	now        func() time.Time
}

func NewWaitlistService(
	logger *log.Logger,
	repository WaitlistRepository,
	verifier captcha.Verifier,
	tracker EventTracker,
	config ServiceConfig,
) WaitlistService {
	return &waitlistService{
		logger:     logger,
		repository: repository,
		verifier:   verifier,
		tracker:    tracker,
		config:     config,
		now:        time.Now,
	}
}

func (s *waitlistService) Join(ctx context.Context, req *SignupRequest) (InsertOutcome, error) {
	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	if req == nil {
		return nil, ErrInvalidBody
	}

	ctx, span := tracer.Start(ctx, "waitlist.Join", trace.WithAttributes(attribute.String("waitlist.table", s.config.Table)))
	defer span.End()

	if err := s.verifyCaptcha(ctx, logger, req); err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	outcome, err := s.insert(ctx, logger, req.NormalizedEmail())
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("waitlist.outcome", outcomeLabel(outcome)))

	switch o := outcome.(type) {
	case Inserted:
		logger.Info("Waitlist signup stored")
		s.capture(ctx, logger, EventJoined, req)
	case Duplicate:
		logger.Info("Waitlist signup already present")
		s.capture(ctx, logger, EventDuplicate, req)
	case SchemaError:
		logger.Error("Waitlist table does not match the expected schema; run migrations", "table", s.config.Table, "reason", o.Message)
		span.SetStatus(codes.Error, o.Message)
	}

	return outcome, nil
}

func (s *waitlistService) verifyCaptcha(ctx context.Context, logger *log.Logger, req *SignupRequest) error {
	ctx, span := tracer.Start(ctx, "captcha.Verify")
	defer span.End()

	result, err := s.verifier.Verify(ctx, s.config.CaptchaSecret, req.CaptchaToken, req.ClientIP)
	if err != nil {
		logger.Error("CAPTCHA verification service unavailable", "error", err)
		return ErrCaptchaUnavailable.WithCause(err)
	}

	if !result.Success {
		logger.Warn("CAPTCHA verification rejected", "error_codes", result.ErrorCodes)
		return &CaptchaRejectedError{Codes: result.ErrorCodes}
	}

	return nil
}

// insert fetches the live columns on every call so a migrated table is picked
// up without a restart.
func (s *waitlistService) insert(ctx context.Context, logger *log.Logger, email string) (InsertOutcome, error) {
	ctx, span := tracer.Start(ctx, "waitlist.Insert")
	defer span.End()

	columns, err := s.repository.Columns(ctx, s.config.Table)
	if err != nil {
		return nil, s.storeFailure(logger, err)
	}

	plan, err := schema.PlanInsert(s.config.Table, columns)
	if err != nil {
		var mismatch *schema.MismatchError
		if errors.As(err, &mismatch) {
			return SchemaError{Message: mismatch.Message}, nil
		}
		return nil, s.storeFailure(logger, err)
	}

	outcome, err := s.repository.Insert(ctx, plan, email, s.now())
	if err != nil {
		return nil, s.storeFailure(logger, err)
	}

	return outcome, nil
}

func (s *waitlistService) storeFailure(logger *log.Logger, err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		logger.Error("Waitlist store is not configured; signup not saved")
		return err
	}

	logger.Error("Waitlist store failure", "error", err)
	return apperrors.NewInternalServerError(MessageServiceError, err)
}

func (s *waitlistService) capture(ctx context.Context, logger *log.Logger, event string, req *SignupRequest) {
	if s.tracker == nil {
		return
	}

	props := map[string]any{"email_domain": emailDomain(req.NormalizedEmail())}
	if err := s.tracker.Capture(ctx, event, props); err != nil {
		logger.Debug("Analytics event dropped", "event", event, "error", err)
	}
}

func (s *waitlistService) ListSubscribers(ctx context.Context) (*SubscriberListResponse, error) {
	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	ctx, span := tracer.Start(ctx, "waitlist.List")
	defer span.End()

	columns, err := s.repository.Columns(ctx, s.config.Table)
	if err != nil {
		recordSpanError(span, err)
		return nil, s.listFailure(logger, err)
	}

	plan, err := schema.PlanSelect(s.config.Table, columns)
	if err != nil {
		recordSpanError(span, err)
		logger.Error("Waitlist table does not match the expected schema", "table", s.config.Table, "error", err)
		return nil, apperrors.NewSchemaMismatchError(err.Error(), err)
	}

	subscribers, err := s.repository.List(ctx, plan)
	if err != nil {
		recordSpanError(span, err)
		return nil, s.listFailure(logger, err)
	}

	return &SubscriberListResponse{Count: len(subscribers), Subscribers: subscribers}, nil
}

func (s *waitlistService) listFailure(logger *log.Logger, err error) error {
	switch apperrors.GetErrorType(err) {
	case apperrors.ErrorTypeServiceUnavailable, apperrors.ErrorTypeSchemaMismatch:
		logger.Error("Waitlist listing unavailable", "error", err)
		return err
	default:
		logger.Error("Failed to fetch waitlist", "error", err)
		return apperrors.NewDatabaseError(MessageListFailure, err)
	}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func emailDomain(email string) string {
	if at := strings.LastIndex(email, "@"); at >= 0 {
		return email[at+1:]
	}
	return ""
}
