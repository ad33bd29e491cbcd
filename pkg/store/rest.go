// Store adapter for a remote HTTP record service. The sync handler owns no state here; it talks to whatever
// service is mounted at the base URL:
//
//	GET    /records           -> JSON array of keys
//	GET    /records/{key}     -> raw value bytes (404 when missing)
//	PUT    /records/{key}     -> stores the request body
//	DELETE /records/{key}     -> removes the key (404 is treated as already gone)

package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
)

const defaultRESTTimeout = 10 * time.Second

var _ Store = (*REST)(nil)

// REST is a Store backed by a remote HTTP record service.
type REST struct {
	client *resty.Client
}

// NewREST builds a REST store talking to the service at `baseURL`.
func NewREST(baseURL string) (*REST, error) {
	if baseURL == "" {
		return nil, errors.New("expected a non-empty base URL")
	}
	client := resty.New().SetBaseURL(baseURL).SetTimeout(defaultRESTTimeout)
	return &REST{client: client}, nil
}

func recordPath(key string) string {
	return "/records/" + url.PathEscape(key)
}

func (r *REST) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := r.client.R().SetContext(ctx).Get(recordPath(key))
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return resp.Body(), nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	default:
		return nil, fmt.Errorf("record service returned status %d for get", resp.StatusCode())
	}
}

func (r *REST) Set(ctx context.Context, key string, value []byte) error {
	resp, err := r.client.R().SetContext(ctx).SetBody(value).Put(recordPath(key))
	if err != nil {
		return fmt.Errorf("failed to set record: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("record service returned status %d for set", resp.StatusCode())
	}
	return nil
}

func (r *REST) Delete(ctx context.Context, key string) error {
	resp, err := r.client.R().SetContext(ctx).Delete(recordPath(key))
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	// Deleting a missing key is a no-op, matching the Store contract.
	if resp.IsError() && resp.StatusCode() != http.StatusNotFound {
		return fmt.Errorf("record service returned status %d for delete", resp.StatusCode())
	}
	return nil
}

func (r *REST) Keys(ctx context.Context) ([]string, error) {
	resp, err := r.client.R().SetContext(ctx).Get("/records")
	if err != nil {
		return nil, fmt.Errorf("failed to list record keys: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("record service returned status %d for key listing", resp.StatusCode())
	}
	var keys []string
	if err := json.Unmarshal(resp.Body(), &keys); err != nil {
		return nil, fmt.Errorf("failed to decode key listing: %w", err)
	}
	return keys, nil
}

func (r *REST) Close() error {
	return nil
}
