package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/mailchimp-gateway/internal/mailchimp"
	"github.com/upb/mailchimp-gateway/models"
	"github.com/upb/mailchimp-gateway/services"
	"github.com/upb/mailchimp-gateway/services/subscription"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// MockSubscriptionService is a mock implementation of SubscriptionService
type MockSubscriptionService struct {
	mock.Mock
}

func (m *MockSubscriptionService) Subscribe(ctx context.Context, req *models.SubscriptionRequest) (subscription.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(subscription.Result), args.Error(1)
}

func postSubscribe(h *MailchimpHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/mailchimp/subscribe", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.HandleSubscribe(w, req)
	return w
}

func TestHandleHello(t *testing.T) {
	h := NewMailchimpHandler(new(MockSubscriptionService), zap.NewNop())

	w := httptest.NewRecorder()
	h.HandleHello(w, httptest.NewRequest(http.MethodGet, "/api/v1/mailchimp", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"message":"The backend is working as expected!"}`, w.Body.String())
}

func TestHandleSubscribe(t *testing.T) {
	t.Run("success returns 201 with the envelope", func(t *testing.T) {
		svc := new(MockSubscriptionService)
		svc.On("Subscribe", mock.Anything, mock.MatchedBy(func(req *models.SubscriptionRequest) bool {
			return req.Email == "test@example.com" &&
				models.StringValue(req.FirstName) == "John" &&
				assert.ObjectsAreEqual([]string{"customer"}, req.Tags)
		})).Return(subscription.Success{Data: json.RawMessage(`{"id":"123"}`)}, nil)

		w := postSubscribe(NewMailchimpHandler(svc, zap.NewNop()), `{"email":"test@example.com","firstName":"John","tags":["customer"]}`)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.JSONEq(t, `{"success":true,"data":{"id":"123"}}`, w.Body.String())
		svc.AssertExpectations(t)
	})

	t.Run("failure result is still 201", func(t *testing.T) {
		svc := new(MockSubscriptionService)
		svc.On("Subscribe", mock.Anything, mock.Anything).Return(subscription.UnknownFailure{}, nil)

		w := postSubscribe(NewMailchimpHandler(svc, zap.NewNop()), `{"email":"test@example.com"}`)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.JSONEq(t, `{"success":false,"error":{"message":"Unknown error occurred"}}`, w.Body.String())
	})

	t.Run("validation failure never reaches the service", func(t *testing.T) {
		svc := new(MockSubscriptionService)

		w := postSubscribe(NewMailchimpHandler(svc, zap.NewNop()), `{"email":"not-an-email","tags":["valid",123],"extra":true}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var body struct {
			StatusCode int      `json:"statusCode"`
			Error      string   `json:"error"`
			Message    []string `json:"message"`
			Details    []struct {
				Field      string `json:"field"`
				Constraint string `json:"constraint"`
			} `json:"details"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, 400, body.StatusCode)
		assert.Equal(t, "Bad Request", body.Error)
		assert.Equal(t, []string{
			"email must be an email",
			"each value in tags must be a string",
			"property extra should not exist",
		}, body.Message)
		require.Len(t, body.Details, 3)
		assert.Equal(t, "isEmail", body.Details[0].Constraint)
		assert.Equal(t, "tags", body.Details[1].Field)
		assert.Equal(t, "whitelistValidation", body.Details[2].Constraint)

		svc.AssertNotCalled(t, "Subscribe", mock.Anything, mock.Anything)
	})

	t.Run("malformed json", func(t *testing.T) {
		svc := new(MockSubscriptionService)

		w := postSubscribe(NewMailchimpHandler(svc, zap.NewNop()), `{"email":`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "Subscribe", mock.Anything, mock.Anything)
	})

	t.Run("oversized body", func(t *testing.T) {
		svc := new(MockSubscriptionService)
		body := `{"email":"a@b.com","firstName":"` + strings.Repeat("x", maxSubscribeBodyBytes) + `"}`

		w := postSubscribe(NewMailchimpHandler(svc, zap.NewNop()), body)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("propagated service error", func(t *testing.T) {
		svc := new(MockSubscriptionService)
		svc.On("Subscribe", mock.Anything, mock.Anything).Return(nil, services.ErrMissingEmail)

		w := postSubscribe(NewMailchimpHandler(svc, zap.NewNop()), `{"email":"test@example.com"}`)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestHandleSubscribe_WithProvider(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		wantEnvelope string
	}{
		{
			name:         "member created",
			status:       http.StatusOK,
			body:         `{"id":"123","email_address":"a@b.com","status":"subscribed"}`,
			wantEnvelope: `{"success":true,"data":{"id":"123","email_address":"a@b.com","status":"subscribed"}}`,
		},
		{
			name:         "member exists",
			status:       http.StatusBadRequest,
			body:         `{"title":"Invalid Resource","detail":"Email already exists"}`,
			wantEnvelope: `{"success":false,"error":{"message":"Request failed with status code 400","response":{"title":"Invalid Resource","detail":"Email already exists"},"statusCode":400}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer provider.Close()

			logger := zaptest.NewLogger(t)
			client := mailchimp.NewClient(mailchimp.Config{
				APIKey:       "key",
				ServerPrefix: "us1",
				AudienceID:   "aud",
				BaseURL:      provider.URL,
			})
			h := NewMailchimpHandler(subscription.NewService(client, logger, nil), logger)

			w := postSubscribe(h, `{"email":"a@b.com"}`)

			assert.Equal(t, http.StatusCreated, w.Code)
			assert.JSONEq(t, tt.wantEnvelope, w.Body.String())
		})
	}
}
