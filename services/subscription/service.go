package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/upb/mailchimp-gateway/internal/mailchimp"
	"github.com/upb/mailchimp-gateway/internal/observability"
	"github.com/upb/mailchimp-gateway/models"
	"github.com/upb/mailchimp-gateway/services"
	"go.uber.org/zap"
)

// MemberAdder performs the outbound member creation call
type MemberAdder interface {
	AddMember(ctx context.Context, member *mailchimp.MemberRequest) (json.RawMessage, error)
}

// Service translates subscription requests into provider calls and
// classifies the outcome
type Service struct {
	client  MemberAdder
	logger  observability.Logger
	metrics *observability.Metrics
}

// NewService creates a new subscription service. metrics may be nil.
func NewService(client MemberAdder, logger *zap.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		client:  client,
		logger:  observability.NewContextLogger(logger),
		metrics: metrics,
	}
}

// BuildMemberRequest maps a request onto the provider body. Absent optional
// fields become "" or an empty list so every field is always sent.
func BuildMemberRequest(req *models.SubscriptionRequest) *mailchimp.MemberRequest {
	tags := make([]string, len(req.Tags))
	copy(tags, req.Tags)

	return &mailchimp.MemberRequest{
		EmailAddress: req.Email,
		Status:       mailchimp.StatusSubscribed,
		MergeFields: mailchimp.MergeFields{
			FirstName: models.StringValue(req.FirstName),
			LastName:  models.StringValue(req.LastName),
		},
		Tags:     tags,
		Language: models.StringValue(req.Language),
	}
}

// Subscribe performs exactly one provider call and classifies its outcome.
// A request without an email returns services.ErrMissingEmail and no call is
// made; every failure of the call itself is folded into the Result.
func (s *Service) Subscribe(ctx context.Context, req *models.SubscriptionRequest) (Result, error) {
	if req == nil || req.Email == "" {
		return nil, services.ErrMissingEmail
	}
	if s == nil || s.client == nil {
		return nil, services.ErrProviderNotConfigured
	}

	attemptID := uuid.NewString()
	member := BuildMemberRequest(req)

	start := time.Now()
	data, raised := invoke(ctx, s.client, member)
	elapsed := time.Since(start)

	result := classify(data, raised)
	s.metrics.RecordSubscription(string(result.Outcome()), elapsed)
	s.logResult(ctx, attemptID, req.Email, result, raised, elapsed)

	return result, nil
}

// invoke runs the call and turns a returned error or a panic into raised
func invoke(ctx context.Context, client MemberAdder, member *mailchimp.MemberRequest) (data json.RawMessage, raised interface{}) {
	defer func() {
		if r := recover(); r != nil {
			data = nil
			raised = r
		}
	}()

	data, err := client.AddMember(ctx, member)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func classify(data json.RawMessage, raised interface{}) Result {
	switch v := raised.(type) {
	case nil:
		return Success{Data: data}
	case error:
		var terr *mailchimp.TransportError
		if errors.As(v, &terr) {
			return TransportFailure{
				Message:    terr.Message,
				Response:   terr.Response,
				StatusCode: terr.StatusCode,
			}
		}
		return GenericFailure{Message: v.Error()}
	default:
		return UnknownFailure{}
	}
}

func (s *Service) logResult(ctx context.Context, attemptID, email string, result Result, raised interface{}, elapsed time.Duration) {
	fields := []zap.Field{
		zap.String("attempt_id", attemptID),
		zap.String("email", observability.MaskEmail(email)),
		zap.String("outcome", string(result.Outcome())),
		zap.Duration("duration", elapsed),
	}

	switch r := result.(type) {
	case Success:
		s.logger.Info(ctx, "subscription accepted by provider", fields...)
	case TransportFailure:
		fields = append(fields, zap.String("error", observability.RedactEmails(r.Message)))
		var terr *mailchimp.TransportError
		if err, ok := raised.(error); !ok || !errors.As(err, &terr) || !terr.HasResponse() {
			s.logger.Warn(ctx, "provider unreachable", fields...)
			return
		}
		fields = append(fields, zap.Int("status_code", r.StatusCode))
		if problem, ok := terr.Problem(); ok {
			fields = append(fields, zap.String("problem_title", problem.Title), zap.String("problem_detail", observability.RedactEmails(problem.Detail)))
		}
		s.logger.Warn(ctx, "provider rejected subscription", fields...)
	case GenericFailure:
		fields = append(fields, zap.String("error", observability.RedactEmails(r.Message)))
		s.logger.Error(ctx, "subscription call failed", fields...)
	case UnknownFailure:
		fields = append(fields, zap.String("raised", fmt.Sprintf("%v", raised)))
		s.logger.Error(ctx, "subscription call raised a non-error value", fields...)
	}
}
