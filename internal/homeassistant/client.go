// Package homeassistant talks to the Home Assistant REST API: entity state
// lookups, the todo list item services, and publishing the status entity.
package homeassistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/benvon/todo-reset/internal/models"
	"golang.org/x/oauth2"
)

// ErrNotFound is returned when the host has no state for the requested entity.
var ErrNotFound = errors.New("entity not found")

// APIError is a non-2xx answer from the host.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("home assistant returned %d: %s", e.StatusCode, e.Body)
}

// Client is the host surface this service consumes.
type Client interface {
	// CheckAPI verifies the API is reachable and the token is accepted.
	CheckAPI(ctx context.Context) error
	// EntityExists reports whether the host currently has state for entityID.
	EntityExists(ctx context.Context, entityID string) (bool, error)
	// GetItems returns every item of a todo list entity.
	GetItems(ctx context.Context, entityID string) ([]models.TodoItem, error)
	// UpdateItem sets the status of one item.
	UpdateItem(ctx context.Context, entityID, uid string, status models.ItemStatus) error
	// SetState creates or replaces the state of an entity.
	SetState(ctx context.Context, entityID, state string, attributes map[string]any) error
	// DeleteState removes an entity's state.
	DeleteState(ctx context.Context, entityID string) error
}

// RESTClient implements Client over HTTP.
type RESTClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRESTClient creates a client for the host at baseURL, authenticating with a
// long-lived access token.
func NewRESTClient(baseURL, token string, timeout time.Duration) *RESTClient {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	httpClient := oauth2.NewClient(context.Background(), src)
	httpClient.Timeout = timeout
	return &RESTClient{baseURL: baseURL, httpClient: httpClient}
}

// EntityState is the host's representation of one entity.
type EntityState struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged string         `json:"last_changed,omitempty"`
	LastUpdated string         `json:"last_updated,omitempty"`
}

type serviceResponse struct {
	ServiceResponse map[string]struct {
		Items []models.TodoItem `json:"items"`
	} `json:"service_response"`
}

// CheckAPI implements Client.
func (c *RESTClient) CheckAPI(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/", nil, nil)
}

// GetState returns the state of entityID, or ErrNotFound.
func (c *RESTClient) GetState(ctx context.Context, entityID string) (*EntityState, error) {
	var state EntityState
	if err := c.do(ctx, http.MethodGet, "/api/states/"+url.PathEscape(entityID), nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// EntityExists implements Client.
func (c *RESTClient) EntityExists(ctx context.Context, entityID string) (bool, error) {
	_, err := c.GetState(ctx, entityID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetItems implements Client. A response without an entry for entityID yields no items.
func (c *RESTClient) GetItems(ctx context.Context, entityID string) ([]models.TodoItem, error) {
	body := map[string]any{"entity_id": entityID}
	var resp serviceResponse
	if err := c.do(ctx, http.MethodPost, "/api/services/todo/get_items?return_response", body, &resp); err != nil {
		return nil, fmt.Errorf("get_items %s: %w", entityID, err)
	}
	list, ok := resp.ServiceResponse[entityID]
	if !ok {
		return nil, nil
	}
	return list.Items, nil
}

// UpdateItem implements Client.
func (c *RESTClient) UpdateItem(ctx context.Context, entityID, uid string, status models.ItemStatus) error {
	body := map[string]any{
		"entity_id": entityID,
		"item":      uid,
		"status":    string(status),
	}
	if err := c.do(ctx, http.MethodPost, "/api/services/todo/update_item", body, nil); err != nil {
		return fmt.Errorf("update_item %s/%s: %w", entityID, uid, err)
	}
	return nil
}

// SetState implements Client.
func (c *RESTClient) SetState(ctx context.Context, entityID, state string, attributes map[string]any) error {
	body := map[string]any{"state": state, "attributes": attributes}
	if err := c.do(ctx, http.MethodPost, "/api/states/"+url.PathEscape(entityID), body, nil); err != nil {
		return fmt.Errorf("set state %s: %w", entityID, err)
	}
	return nil
}

// DeleteState implements Client. Deleting an unknown entity is not an error.
func (c *RESTClient) DeleteState(ctx context.Context, entityID string) error {
	err := c.do(ctx, http.MethodDelete, "/api/states/"+url.PathEscape(entityID), nil, nil)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete state %s: %w", entityID, err)
	}
	return nil
}

func (c *RESTClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

var _ Client = (*RESTClient)(nil)
