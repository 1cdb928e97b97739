package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/edulytics/reportgen/internal/credential"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.0-flash"

	// maxErrorBody caps how much of an error response we read; quota errors
	// carry their retry hint well inside the first kilobytes.
	maxErrorBody = 64 << 10
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL points the client at a different endpoint, mainly httptest
// servers.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithModel sets the default model for requests that name none.
func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

// Client calls the generateContent endpoint. It is safe for concurrent use.
type Client struct {
	http    *http.Client
	baseURL string
	model   string
}

// NewClient builds a generateContent client with a 90s request timeout;
// generation calls routinely run tens of seconds.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http:    &http.Client{Timeout: 90 * time.Second},
		baseURL: defaultBaseURL,
		model:   defaultModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Wire format for generateContent.

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

type errorResponse struct {
	Error struct {
		Code    int               `json:"code"`
		Message string            `json:"message"`
		Status  string            `json:"status"`
		Details []json.RawMessage `json:"details"`
	} `json:"error"`
}

// Generate performs one generateContent call with the request's credential.
func (c *Client) Generate(ctx context.Context, req *Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	body := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: req.Prompt}}}},
	}
	if req.Temperature != 0 || req.MaxOutputTokens != 0 {
		cfg := &generationConfig{MaxOutputTokens: req.MaxOutputTokens}
		if req.Temperature != 0 {
			t := req.Temperature
			cfg.Temperature = &t
		}
		body.GenerationConfig = cfg
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	if req.Credential.ServiceAccount {
		httpReq.Header.Set("Authorization", "Bearer "+req.Credential.Secret)
	} else {
		q := httpReq.URL.Query()
		q.Set("key", req.Credential.Secret)
		httpReq.URL.RawQuery = q.Encode()
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call generateContent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Candidates) == 0 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    "response contains no candidates",
		}
	}

	cand := out.Candidates[0]
	var text string
	for _, p := range cand.Content.Parts {
		text += p.Text
	}
	return &Response{
		Text:         text,
		FinishReason: cand.FinishReason,
		Usage: Usage{
			PromptTokens:     out.UsageMetadata.PromptTokenCount,
			CandidatesTokens: out.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      out.UsageMetadata.TotalTokenCount,
		},
	}, nil
}

// parseError turns a non-2xx response into an APIError, pulling the retry
// hint from the Retry-After header or anywhere in the error payload.
func (c *Client) parseError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(raw)}

	var parsed errorResponse
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error.Message != "" {
		apiErr.Status = parsed.Error.Status
		apiErr.Message = parsed.Error.Message
	}

	if header := resp.Header.Get("Retry-After"); header != "" {
		if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
			apiErr.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	if apiErr.RetryAfter == 0 {
		// The delay may sit in the error details rather than the message;
		// scan the whole payload.
		if d, ok := credential.ExtractRetryDelay(string(raw)); ok {
			apiErr.RetryAfter = d
		}
	}
	return apiErr
}
