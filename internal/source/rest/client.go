package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nhle/worklist/internal/model"
	"github.com/nhle/worklist/internal/source"
)

// maxErrorBody bounds how much of an error response is kept in messages.
const maxErrorBody = 512

// Client is a thin bearer-token JSON client shared by the hand-written
// REST adapters. It never retries: a 429 surfaces as a KindRateLimited
// AdapterError carrying Retry-After, and the caller owns backoff.
type Client struct {
	baseURL    string
	sourceType model.SourceType
	tokens     source.TokenProvider
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a client rooted at baseURL. A nil httpClient gets a
// default with a 30 second timeout.
func NewClient(
	sourceType model.SourceType,
	baseURL string,
	tokens source.TokenProvider,
	httpClient *http.Client,
) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		sourceType: sourceType,
		tokens:     tokens,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// BaseURL returns the root URL requests are made against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get performs an HTTP GET and decodes the JSON response. Fetches accept
// only 200 OK.
func (c *Client) Get(
	ctx context.Context,
	op string,
	path string,
	query url.Values,
	result any,
) error {
	return c.do(ctx, op, http.MethodGet, path, query, "", nil, result)
}

// Post performs an HTTP POST with a JSON body.
func (c *Client) Post(
	ctx context.Context,
	op string,
	path string,
	query url.Values,
	body any,
	result any,
) error {
	return c.do(ctx, op, http.MethodPost, path, query,
		"application/json", body, result)
}

// Patch performs an HTTP PATCH with the given content type, used for
// partial updates such as JSON Patch documents.
func (c *Client) Patch(
	ctx context.Context,
	op string,
	path string,
	query url.Values,
	contentType string,
	body any,
	result any,
) error {
	return c.do(ctx, op, http.MethodPatch, path, query,
		contentType, body, result)
}

// do builds the request, attaches the bearer token, and maps every
// failure to a *source.AdapterError.
func (c *Client) do(
	ctx context.Context,
	op string,
	method string,
	path string,
	query url.Values,
	contentType string,
	body any,
	result any,
) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling %s request body: %w", op, err)
		}
		bodyReader = bytes.NewReader(data)
	}

	tok, err := c.tokens.Token(ctx, c.sourceType, op)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	tok.SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.fail(op, source.KindUnreachable, 0, fmt.Errorf(
			"executing request %s %s: %w", method, path, err,
		))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fail(op, source.KindUnreachable, resp.StatusCode,
			fmt.Errorf("reading response body: %w", err))
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if method == http.MethodGet {
		ok = resp.StatusCode == http.StatusOK
	}
	if !ok {
		adapterErr := c.fail(op, source.KindForStatus(resp.StatusCode),
			resp.StatusCode, fmt.Errorf(
				"unexpected status on %s %s: %s",
				method, path, truncate(respBody),
			))
		if adapterErr.Kind == source.KindRateLimited {
			adapterErr.RetryAfter = source.ParseRetryAfter(
				resp.Header.Get("Retry-After"), c.now(),
			)
		}
		return adapterErr
	}

	// No content to parse (e.g. 204).
	if result == nil || resp.StatusCode == http.StatusNoContent ||
		(method != http.MethodGet && len(bytes.TrimSpace(respBody)) == 0) {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return c.fail(op, source.KindMalformedResponse, resp.StatusCode,
			fmt.Errorf("decoding response from %s %s: %w", method, path, err))
	}

	return nil
}

func (c *Client) fail(
	op string,
	kind source.ErrorKind,
	status int,
	err error,
) *source.AdapterError {
	return &source.AdapterError{
		Source:     c.sourceType,
		Op:         op,
		Kind:       kind,
		StatusCode: status,
		Err:        err,
	}
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
