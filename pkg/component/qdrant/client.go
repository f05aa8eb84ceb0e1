// Package qdrant is a minimal REST client for Qdrant collections and points.
package qdrant

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/pdfrag/pkg/component/storage"
	options "github.com/kart-io/pdfrag/pkg/options/qdrant"
	"github.com/kart-io/pdfrag/pkg/utils/httpclient"
)

// DistanceCosine is the only distance pdfrag creates collections with.
const DistanceCosine = "Cosine"

// Client talks to the Qdrant REST API.
type Client struct {
	baseURL string
	header  http.Header
	http    *httpclient.Client
}

var _ storage.Client = (*Client)(nil)

// New builds a client from options. No request is made.
func New(opts *options.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("qdrant options cannot be nil")
	}
	if errs := opts.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid qdrant options: %w", utilerrors.NewAggregate(errs))
	}

	header := http.Header{}
	if opts.Mode == options.ModeURL && opts.APIKey != "" {
		header.Set("api-key", opts.APIKey)
	}

	return &Client{
		baseURL: opts.Endpoint(),
		header:  header,
		http:    httpclient.New(opts.Timeout, 0),
	}, nil
}

// Name returns the storage type identifier.
func (c *Client) Name() string {
	return "qdrant"
}

// Ping lists collections to verify the server answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.ListCollections(ctx)
	return err
}

// Close is a no-op; the HTTP client holds no dedicated connection.
func (c *Client) Close() error {
	return nil
}

func (c *Client) collectionURL(name string, suffix ...string) string {
	return c.baseURL + "/collections/" + url.PathEscape(name) + strings.Join(suffix, "")
}

func (c *Client) call(ctx context.Context, method, u string, in, out interface{}) error {
	return c.http.Call(ctx, method, u, c.header, in, out)
}

// Point is one stored vector with its payload.
type Point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// ScoredPoint is a search hit; Score is the cosine similarity.
type ScoredPoint struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Filter is a conjunction of exact payload matches.
type Filter struct {
	Must []Condition `json:"must"`
}

// Condition matches one payload key against a value.
type Condition struct {
	Key   string     `json:"key"`
	Match MatchValue `json:"match"`
}

// MatchValue is an exact match clause.
type MatchValue struct {
	Value any `json:"value"`
}

// NewFilter builds an AND filter from equality pairs; nil when fields is empty.
func NewFilter(fields map[string]any) *Filter {
	if len(fields) == 0 {
		return nil
	}
	f := &Filter{Must: make([]Condition, 0, len(fields))}
	for k, v := range fields {
		f.Must = append(f.Must, Condition{Key: k, Match: MatchValue{Value: v}})
	}
	return f
}

type collectionInfoResponse struct {
	Result struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

// CollectionDimension returns the vector size of a collection and whether it exists.
func (c *Client) CollectionDimension(ctx context.Context, name string) (int, bool, error) {
	var resp collectionInfoResponse
	err := c.call(ctx, http.MethodGet, c.collectionURL(name), nil, &resp)
	if httpclient.IsStatus(err, http.StatusNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return resp.Result.Config.Params.Vectors.Size, true, nil
}

// CreateCollection creates a cosine collection. An "already exists" answer is success.
func (c *Client) CreateCollection(ctx context.Context, name string, dimension int) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": DistanceCosine,
		},
	}
	err := c.call(ctx, http.MethodPut, c.collectionURL(name), body, nil)
	if err == nil || httpclient.IsStatus(err, http.StatusConflict) {
		return nil
	}
	if httpclient.IsStatus(err, http.StatusBadRequest) && strings.Contains(err.Error(), "already exists") {
		return nil
	}
	return err
}

// Upsert writes points and waits until they are searchable.
func (c *Client) Upsert(ctx context.Context, name string, points []Point) error {
	body := map[string]any{"points": points}
	return c.call(ctx, http.MethodPut, c.collectionURL(name, "/points?wait=true"), body, nil)
}

type searchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
	Filter      *Filter   `json:"filter,omitempty"`
}

// Search returns up to limit points ordered by descending similarity.
func (c *Client) Search(ctx context.Context, name string, vector []float32, limit int, filter *Filter) ([]ScoredPoint, error) {
	var resp struct {
		Result []ScoredPoint `json:"result"`
	}
	req := searchRequest{Vector: vector, Limit: limit, WithPayload: true, Filter: filter}
	if err := c.call(ctx, http.MethodPost, c.collectionURL(name, "/points/search"), req, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// Count returns the exact number of points matching filter.
func (c *Client) Count(ctx context.Context, name string, filter *Filter) (int64, error) {
	var resp struct {
		Result struct {
			Count int64 `json:"count"`
		} `json:"result"`
	}
	body := map[string]any{"exact": true}
	if filter != nil {
		body["filter"] = filter
	}
	if err := c.call(ctx, http.MethodPost, c.collectionURL(name, "/points/count"), body, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// DeletePoints removes points matching filter.
func (c *Client) DeletePoints(ctx context.Context, name string, filter *Filter) error {
	body := map[string]any{"filter": filter}
	return c.call(ctx, http.MethodPost, c.collectionURL(name, "/points/delete?wait=true"), body, nil)
}

// DeleteCollection drops a collection. A missing collection is not an error.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	err := c.call(ctx, http.MethodDelete, c.collectionURL(name), nil, nil)
	if httpclient.IsStatus(err, http.StatusNotFound) {
		return nil
	}
	return err
}

// ListCollections returns the names of all collections.
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	var resp struct {
		Result struct {
			Collections []struct {
				Name string `json:"name"`
			} `json:"collections"`
		} `json:"result"`
	}
	if err := c.call(ctx, http.MethodGet, c.baseURL+"/collections", nil, &resp); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(resp.Result.Collections))
	for _, col := range resp.Result.Collections {
		names = append(names, col.Name)
	}
	return names, nil
}
