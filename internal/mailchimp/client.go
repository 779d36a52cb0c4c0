package mailchimp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultHost    = "api.mailchimp.com"
	apiVersion     = "3.0"
	defaultTimeout = 10 * time.Second

	// authUser is ignored by the provider; only the API key is checked
	authUser = "anystring"

	// StatusSubscribed is the member status sent on every subscription
	StatusSubscribed = "subscribed"
)

// Config holds the provider settings, fixed at construction time
type Config struct {
	APIKey       string
	ServerPrefix string
	AudienceID   string
	// BaseURL replaces https://{prefix}.api.mailchimp.com when set
	BaseURL string
	Timeout time.Duration
}

// MemberRequest is the body of POST /lists/{id}/members.
// Every field is always serialized.
type MemberRequest struct {
	EmailAddress string      `json:"email_address"`
	Status       string      `json:"status"`
	MergeFields  MergeFields `json:"merge_fields"`
	Tags         []string    `json:"tags"`
	Language     string      `json:"language"`
}

// MergeFields are the audience merge tags for the member name
type MergeFields struct {
	FirstName string `json:"FNAME"`
	LastName  string `json:"LNAME"`
}

// ErrorResponse is the problem document returned on non-2xx responses
type ErrorResponse struct {
	Type     string `json:"type,omitempty"`
	Title    string `json:"title,omitempty"`
	Status   int    `json:"status,omitempty"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// TransportError is returned for every failure of the HTTP exchange itself:
// a non-2xx response (StatusCode and Response set) or a network failure
// (both unset).
type TransportError struct {
	Message    string
	StatusCode int             // 0 when no response was received
	Response   json.RawMessage // nil when no response body was received
	Err        error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	return e.Message
}

// Unwrap implements errors.Unwrap
func (e *TransportError) Unwrap() error {
	return e.Err
}

// HasResponse reports whether the provider answered at all
func (e *TransportError) HasResponse() bool {
	return e.StatusCode != 0
}

// Problem decodes the response body as a provider problem document
func (e *TransportError) Problem() (*ErrorResponse, bool) {
	if len(e.Response) == 0 {
		return nil, false
	}
	var problem ErrorResponse
	if err := json.Unmarshal(e.Response, &problem); err != nil {
		return nil, false
	}
	return &problem, true
}

// Client talks to the Marketing API members endpoint
type Client struct {
	config     Config
	httpClient *http.Client
	membersURL string
	authHeader string
}

// NewClient creates a new Client. The endpoint and the Authorization header
// are computed once here.
func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	c := &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
	c.membersURL = c.buildMembersURL()
	c.authHeader = BasicAuthorization(config.APIKey)
	return c
}

// Name returns the provider name
func (c *Client) Name() string {
	return "mailchimp"
}

// MembersURL returns the audience members endpoint
func (c *Client) MembersURL() string {
	return c.membersURL
}

// AudienceID returns the configured audience/list identifier
func (c *Client) AudienceID() string {
	return c.config.AudienceID
}

// IsConfigured reports whether all three credentials are present
func (c *Client) IsConfigured() bool {
	return c.config.APIKey != "" && c.config.ServerPrefix != "" && c.config.AudienceID != ""
}

// BasicAuthorization builds the Authorization header value for an API key
func BasicAuthorization(apiKey string) string {
	creds := authUser + ":" + apiKey
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(creds))
}

// AddMember performs exactly one POST to the members endpoint. A 2xx response
// returns the body, with a non-JSON body carried as a JSON string; anything
// else returns a *TransportError.
func (c *Client) AddMember(ctx context.Context, member *MemberRequest) (json.RawMessage, error) {
	reqBody, err := json.Marshal(member)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal member request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.membersURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", c.authHeader)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Message: err.Error(), Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &TransportError{
			Message:    fmt.Sprintf("failed to read response: %v", err),
			StatusCode: httpResp.StatusCode,
			Err:        err,
		}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &TransportError{
			Message:    fmt.Sprintf("Request failed with status code %d", httpResp.StatusCode),
			StatusCode: httpResp.StatusCode,
			Response:   responseBody(respBody),
		}
	}

	data := responseBody(respBody)
	if data == nil {
		return json.RawMessage("{}"), nil
	}
	return data, nil
}

func (c *Client) buildMembersURL() string {
	base := strings.TrimRight(c.config.BaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("https://%s.%s", c.config.ServerPrefix, defaultHost)
	}
	return fmt.Sprintf("%s/%s/lists/%s/members", base, apiVersion, c.config.AudienceID)
}

// responseBody keeps JSON bodies as-is and wraps anything else in a JSON string
func responseBody(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	quoted, err := json.Marshal(string(trimmed))
	if err != nil {
		return nil
	}
	return json.RawMessage(quoted)
}
