// Package httpclient is the small JSON-over-HTTP client shared by the LLM
// providers and the Qdrant REST client.
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/kart-io/pdfrag/pkg/utils/json"
)

// maxErrorBody caps how much of an error response is kept in StatusError.
const maxErrorBody = 4 << 10

// StatusError is returned when the server answers with a status >= 400.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status code %d: %s", e.StatusCode, e.Body)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Client sends JSON requests. 5xx answers and transport errors are retried
// up to retries times with a linearly growing pause; 4xx answers are not.
type Client struct {
	hc      *http.Client
	retries int
	backoff time.Duration
}

// New returns a Client whose every attempt is bounded by timeout.
func New(timeout time.Duration, retries int) *Client {
	return &Client{
		hc:      &http.Client{Timeout: timeout},
		retries: max(retries, 0),
		backoff: 500 * time.Millisecond,
	}
}

// Call sends in as a JSON body (nil means no body) and decodes a successful
// answer into out (nil means the body is discarded). The W3C trace context
// of ctx is propagated in the request headers.
func (c *Client) Call(ctx context.Context, method, url string, header http.Header, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	var err error
	for attempt := 0; ; attempt++ {
		var retry bool
		retry, err = c.once(ctx, method, url, header, body, out)
		if !retry || attempt >= c.retries {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * c.backoff):
		}
	}
}

// once performs a single attempt and reports whether a failure may be retried.
func (c *Client) once(ctx context.Context, method, url string, header http.Header, body []byte, out any) (bool, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range header {
		req.Header[k] = append(req.Header[k], vs...)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.hc.Do(req)
	if err != nil {
		return ctx.Err() == nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode >= http.StatusInternalServerError, &StatusError{StatusCode: resp.StatusCode, Body: string(msg)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}
	return false, nil
}
