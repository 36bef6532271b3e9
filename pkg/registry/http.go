package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/thingprov/thingprov-go/pkg/identity"
)

const (
	lookupQuery = `query ThingGetById($thingId: ID!) {
  thingGetById(thingId: $thingId) { id type aes pop provisioned }
}`

	provisionMutation = `mutation ThingProvision($thingId: ID!) {
  thingProvision(thingId: $thingId) { id provisioned }
}`
)

// HTTPOption configures an HTTPRegistry.
type HTTPOption func(*HTTPRegistry)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) HTTPOption {
	return func(r *HTTPRegistry) {
		r.token = token
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(r *HTTPRegistry) {
		r.client = c
	}
}

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) HTTPOption {
	return func(r *HTTPRegistry) {
		if l != nil {
			r.logger = l
		}
	}
}

// HTTPRegistry talks to the cloud's GraphQL API.
type HTTPRegistry struct {
	endpoint string
	token    string
	client   *http.Client
	logger   *slog.Logger
}

// NewHTTPRegistry creates a registry client for the GraphQL endpoint.
func NewHTTPRegistry(endpoint string, opts ...HTTPOption) *HTTPRegistry {
	r := &HTTPRegistry{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message   string `json:"message"`
	ErrorType string `json:"errorType,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

type thingRecord struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	AES         string `json:"aes"`
	PoP         string `json:"pop"`
	Provisioned bool   `json:"provisioned"`
}

// LookupDevice implements Registry.
func (r *HTTPRegistry) LookupDevice(ctx context.Context, id identity.ID) (Device, error) {
	var data struct {
		Thing *thingRecord `json:"thingGetById"`
	}
	if err := r.do(ctx, lookupQuery, map[string]any{"thingId": id.String()}, &data); err != nil {
		return Device{}, err
	}
	if data.Thing == nil {
		return Device{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	d, err := recordFromHex(id, data.Thing.AES, data.Thing.PoP)
	if err != nil {
		return Device{}, err
	}
	d.Type = data.Thing.Type
	d.Provisioned = data.Thing.Provisioned
	return d, nil
}

// MarkProvisioned implements Registry.
func (r *HTTPRegistry) MarkProvisioned(ctx context.Context, id identity.ID) error {
	var data struct {
		Thing *thingRecord `json:"thingProvision"`
	}
	if err := r.do(ctx, provisionMutation, map[string]any{"thingId": id.String()}, &data); err != nil {
		return err
	}
	if data.Thing == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (r *HTTPRegistry) do(ctx context.Context, query string, vars map[string]any, out any) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: vars})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var gr graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return fmt.Errorf("%w: could not parse response: %v", ErrUnavailable, err)
	}
	if len(gr.Errors) > 0 {
		msgs := make([]string, len(gr.Errors))
		for i, e := range gr.Errors {
			msgs[i] = e.Message
		}
		r.logger.Debug("graphql errors", "errors", msgs)
		return fmt.Errorf("%w: %s", ErrUnavailable, strings.Join(msgs, "; "))
	}
	if len(gr.Data) == 0 || string(gr.Data) == "null" {
		return fmt.Errorf("%w: empty response", ErrUnavailable)
	}
	return json.Unmarshal(gr.Data, out)
}

// Compile-time interface satisfaction check.
var _ Registry = (*HTTPRegistry)(nil)
