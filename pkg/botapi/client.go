package botapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultBaseURL is the production Bot API endpoint.
	DefaultBaseURL = "https://api.telegram.org"

	defaultRequestTimeout = 60 * time.Second
	defaultMaxRetries     = 3
)

// Client is a minimal Bot API HTTP client covering the calls the dispatch
// pipeline and its transport loop need. Transient transport failures are
// retried with exponential backoff; API-level rejections are not.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	maxRetries uint64
}

// ClientOption mutates client construction configuration.
type ClientOption func(*Client)

// WithBaseURL overrides the Bot API endpoint, typically for tests or a
// local Bot API server.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithMaxRetries configures how many times transient failures are retried.
func WithMaxRetries(retries uint64) ClientOption {
	return func(c *Client) {
		c.maxRetries = retries
	}
}

// NewClient creates a Bot API client for one bot token.
func NewClient(token string, options ...ClientOption) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("new botapi client: empty token")
	}

	client := &Client{
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		baseURL:    DefaultBaseURL,
		token:      token,
		maxRetries: defaultMaxRetries,
	}
	for _, option := range options {
		option(client)
	}

	return client, nil
}

// FileURL composes the stable download URL for a resolved file path.
// The format is an interoperability contract and must not change.
func (c *Client) FileURL(filePath string) string {
	return fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, strings.TrimLeft(filePath, "/"))
}

// APIError is a Bot API level rejection (ok=false in the response envelope).
type APIError struct {
	Method      string
	ErrorCode   int
	Description string
}

// Error formats the rejection with its originating method.
func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: api error %d: %s", e.Method, e.ErrorCode, e.Description)
}

// envelope is the uniform Bot API response wrapper.
type envelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
}

// GetMe fetches the bot's own account, typically used as a startup probe.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var me User
	if err := c.call(ctx, "getMe", nil, &me); err != nil {
		return nil, err
	}

	return &me, nil
}

// GetFile resolves a file identifier into a retrievable file path.
func (c *Client) GetFile(ctx context.Context, fileID string) (*File, error) {
	if strings.TrimSpace(fileID) == "" {
		return nil, fmt.Errorf("telegram getFile: empty file_id")
	}

	var file File
	params := url.Values{"file_id": []string{fileID}}
	if err := c.call(ctx, "getFile", params, &file); err != nil {
		return nil, err
	}
	if strings.TrimSpace(file.FilePath) == "" {
		return nil, fmt.Errorf("telegram getFile: missing file_path for %s", fileID)
	}

	return &file, nil
}

// GetUpdates long-polls for updates after offset and returns the batch plus
// the next offset. Long-poll calls are not retried; the polling loop is the
// retry mechanism.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, int64, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	seconds := int(timeout.Seconds())
	if seconds < 1 {
		seconds = 1
	}

	params := url.Values{"timeout": []string{fmt.Sprintf("%d", seconds)}}
	if offset > 0 {
		params.Set("offset", fmt.Sprintf("%d", offset))
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()

	var updates []Update
	if err := c.callOnce(reqCtx, "getUpdates", params, &updates); err != nil {
		return nil, offset, err
	}

	next := offset
	for _, update := range updates {
		if update.UpdateID >= next {
			next = update.UpdateID + 1
		}
	}

	return updates, next, nil
}

// SendMessageRequest is the sendMessage call payload.
type SendMessageRequest struct {
	ChatID           int64  `json:"chat_id"`
	Text             string `json:"text"`
	ParseMode        string `json:"parse_mode,omitempty"`
	ReplyToMessageID int64  `json:"reply_to_message_id,omitempty"`
}

// SendMessage posts a text message and returns the created message.
func (c *Client) SendMessage(ctx context.Context, request SendMessageRequest) (*Message, error) {
	if request.ChatID == 0 {
		return nil, fmt.Errorf("telegram sendMessage: empty chat_id")
	}
	if strings.TrimSpace(request.Text) == "" {
		return nil, fmt.Errorf("telegram sendMessage: empty text")
	}

	var sent Message
	if err := c.post(ctx, "sendMessage", request, &sent); err != nil {
		return nil, err
	}

	return &sent, nil
}

// call executes one GET method with retry on transient transport failures.
func (c *Client) call(ctx context.Context, method string, params url.Values, result any) error {
	operation := func() error {
		err := c.callOnce(ctx, method, params, result)
		if err == nil {
			return nil
		}
		var apiErr *APIError
		if isPermanent(err, &apiErr) {
			return backoff.Permanent(err)
		}

		return err
	}

	return backoff.Retry(operation, c.newBackOff(ctx))
}

// post executes one JSON POST method with retry on transient transport failures.
func (c *Client) post(ctx context.Context, method string, request any, result any) error {
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("telegram %s: encode request: %w", method, err)
	}

	operation := func() error {
		err := c.postOnce(ctx, method, body, result)
		if err == nil {
			return nil
		}
		var apiErr *APIError
		if isPermanent(err, &apiErr) {
			return backoff.Permanent(err)
		}

		return err
	}

	return backoff.Retry(operation, c.newBackOff(ctx))
}

// newBackOff builds the per-call retry policy bounded by context and attempt count.
func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond

	return backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx)
}

// isPermanent reports whether err must not be retried and extracts an APIError.
// API rejections other than 429 and 5xx are caller mistakes; retrying cannot help.
func isPermanent(err error, apiErr **APIError) bool {
	if !errors.As(err, apiErr) {
		return false
	}
	code := (*apiErr).ErrorCode

	return code != http.StatusTooManyRequests && code < http.StatusInternalServerError
}

// callOnce executes one GET method call without retry.
func (c *Client) callOnce(ctx context.Context, method string, params url.Values, result any) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("telegram %s: build request: %w", method, err)
	}

	return c.execute(method, request, result)
}

// postOnce executes one JSON POST method call without retry.
func (c *Client) postOnce(ctx context.Context, method string, body []byte, result any) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram %s: build request: %w", method, err)
	}
	request.Header.Set("Content-Type", "application/json")

	return c.execute(method, request, result)
}

// execute performs the HTTP exchange and decodes the uniform response envelope.
func (c *Client) execute(method string, request *http.Request, result any) error {
	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	raw, readErr := io.ReadAll(response.Body)
	_ = response.Body.Close()
	if readErr != nil {
		return fmt.Errorf("telegram %s: read response: %w", method, readErr)
	}

	var wrapped envelope
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		if response.StatusCode < 200 || response.StatusCode >= 300 {
			return fmt.Errorf("telegram %s: http %d: %s", method, response.StatusCode, strings.TrimSpace(string(raw)))
		}

		return fmt.Errorf("telegram %s: decode response: %w", method, err)
	}
	if !wrapped.OK {
		code := wrapped.ErrorCode
		if code == 0 {
			code = response.StatusCode
		}

		return &APIError{Method: method, ErrorCode: code, Description: wrapped.Description}
	}
	if result == nil || len(wrapped.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(wrapped.Result, result); err != nil {
		return fmt.Errorf("telegram %s: decode result: %w", method, err)
	}

	return nil
}
