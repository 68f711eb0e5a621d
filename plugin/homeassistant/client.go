// Package homeassistant talks to the Home Assistant REST API: entity states,
// service calls and todo lists.
package homeassistant

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// ErrNotFound is returned when an entity does not exist.
var ErrNotFound = errors.New("entity not found")

// State is an entity state as returned by /api/states.
type State struct {
	EntityID   string         `json:"entity_id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

// Domain is the entity id prefix, e.g. "light".
func (s *State) Domain() string {
	domain, _, _ := strings.Cut(s.EntityID, ".")
	return domain
}

// FriendlyName falls back to the entity id.
func (s *State) FriendlyName() string {
	if name, ok := s.Attributes["friendly_name"].(string); ok && name != "" {
		return name
	}
	return s.EntityID
}

func (s *State) Unit() string {
	unit, _ := s.Attributes["unit_of_measurement"].(string)
	return unit
}

// Client is a Home Assistant REST client authenticated with a long-lived access token.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	base    *http.Client
	timeout time.Duration
}

// WithHTTPClient sets the transport the bearer token is added to.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.base = c }
}

func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.timeout = d }
}

// New creates a client for the instance at baseURL.
func New(baseURL, token string, opts ...Option) *Client {
	o := clientOptions{timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	ctx := context.Background()
	if o.base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, o.base)
	}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
	httpClient.Timeout = o.timeout
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request")
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrapf(err, "failed to construct request to %s", path)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to reach Home Assistant at %s", c.baseURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("%s %s: status code %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	return errors.Wrapf(json.NewDecoder(resp.Body).Decode(out), "failed to decode %s", path)
}

// States lists every entity.
func (c *Client) States(ctx context.Context) ([]State, error) {
	var states []State
	if err := c.do(ctx, http.MethodGet, "/api/states", nil, &states); err != nil {
		return nil, err
	}
	return states, nil
}

// State reads one entity. It returns ErrNotFound for unknown entities.
func (c *Client) State(ctx context.Context, entityID string) (*State, error) {
	var state State
	if err := c.do(ctx, http.MethodGet, "/api/states/"+url.PathEscape(entityID), nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// CallService triggers domain.service with the given data.
func (c *Client) CallService(ctx context.Context, domain, service string, data map[string]any) error {
	slog.Info("homeassistant: calling service", "service", domain+"."+service, "data", data)
	return c.do(ctx, http.MethodPost, "/api/services/"+domain+"/"+service, data, nil)
}

// FindEntity resolves a spoken name to an entity id. An exact friendly name
// wins, otherwise the first entity whose id or friendly name contains the
// query. It returns "" when nothing matches.
func (c *Client) FindEntity(ctx context.Context, query string) (string, error) {
	states, err := c.States(ctx)
	if err != nil {
		return "", err
	}
	return findEntity(states, query, ""), nil
}

func findEntity(states []State, query, domain string) string {
	query = strings.ToLower(strings.TrimSpace(query))
	var first string
	for i := range states {
		s := &states[i]
		if domain != "" && s.Domain() != domain {
			continue
		}
		name := strings.ToLower(s.FriendlyName())
		if name == query {
			return s.EntityID
		}
		if first == "" && (strings.Contains(strings.ToLower(s.EntityID), query) || strings.Contains(name, query)) {
			first = s.EntityID
		}
	}
	return first
}

func describeState(s *State) string {
	if unit := s.Unit(); unit != "" {
		return s.State + " " + unit
	}
	return s.State
}
