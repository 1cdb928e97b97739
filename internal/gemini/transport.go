// Package gemini speaks the Gemini generateContent REST surface directly
// over net/http. Requests carry their credential so callers can rotate keys
// per call; cross-cutting behavior (logging, pacing) layers on as middleware
// around the core Handler.
package gemini

import "context"

// Credential is the secret attached to one request. ServiceAccount selects
// bearer-token auth instead of the key query parameter.
type Credential struct {
	Secret         string
	ServiceAccount bool
}

// Request is one text-generation call.
type Request struct {
	Model           string
	Prompt          string
	Temperature     float64
	MaxOutputTokens int
	Credential      Credential
}

// Usage reports token accounting as returned by the API.
type Usage struct {
	PromptTokens     int
	CandidatesTokens int
	TotalTokens      int
}

// Response is the first candidate of a generation call.
type Response struct {
	Text         string
	FinishReason string
	Usage        Usage
}

// Handler executes one generation request.
type Handler interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req *Request) (*Response, error)

func (f HandlerFunc) Generate(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Middleware wraps a Handler with additional behavior.
type Middleware func(Handler) Handler

// Chain composes middlewares so the first listed is outermost.
func Chain(h Handler, middlewares ...Middleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
