package feedback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulytics/reportgen/internal/credential"
	"github.com/edulytics/reportgen/internal/domain"
	"github.com/edulytics/reportgen/internal/gemini"
)

// scriptedHandler returns canned outcomes in order, repeating the last one.
type scriptedHandler struct {
	mu       sync.Mutex
	script   []func() (*gemini.Response, error)
	calls    int
	lastCred gemini.Credential
}

func (s *scriptedHandler) Generate(_ context.Context, req *gemini.Request) (*gemini.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCred = req.Credential
	idx := s.calls
	if idx >= len(s.script) {
		idx = len(s.script) - 1
	}
	s.calls++
	return s.script[idx]()
}

func ok(text string) func() (*gemini.Response, error) {
	return func() (*gemini.Response, error) { return &gemini.Response{Text: text}, nil }
}

func fail(err error) func() (*gemini.Response, error) {
	return func() (*gemini.Response, error) { return nil, err }
}

func noSleep(t *testing.T) Option {
	t.Helper()
	return WithSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() })
}

func newTestRequester(t *testing.T, pool *credential.Pool, h gemini.Handler, cfg Config) *Requester {
	t.Helper()
	prompts, err := NewPromptRenderer("")
	require.NoError(t, err)
	return NewRequester(pool, h, prompts, cfg, noSleep(t))
}

func sampleReport() *domain.StudentReport {
	return &domain.StudentReport{
		StudentID: "hs-001",
		Name:      "Nguyễn Văn An",
		Class:     "12A1",
		Score: domain.ScoreResult{
			Total: 40, Correct: 30, Wrong: 10, Attempted: true,
			BasicPercent: 85, AdvancedPercent: 50,
		},
	}
}

func TestFillGenerated(t *testing.T) {
	pool := credential.NewPool([]string{"k1"}, "")
	handler := &scriptedHandler{script: []func() (*gemini.Response, error){ok("Em làm bài rất tốt.")}}
	req := newTestRequester(t, pool, handler, Config{})

	report := sampleReport()
	req.Fill(context.Background(), report)

	assert.Equal(t, "Em làm bài rất tốt.", report.Feedback)
	assert.Equal(t, domain.OutcomeGenerated, report.Outcome)
	assert.Equal(t, 1, handler.calls)
}

func TestFillPlaceholderStudentID(t *testing.T) {
	pool := credential.NewPool([]string{"k1"}, "")
	handler := &scriptedHandler{script: []func() (*gemini.Response, error){ok("ổn")}}
	req := newTestRequester(t, pool, handler, Config{})

	report := sampleReport()
	report.StudentID = "  "
	req.Fill(context.Background(), report)

	assert.Equal(t, domain.PlaceholderStudentID, report.StudentID)
	// The record is still commented, but the output must show it arrived
	// without an id.
	assert.Equal(t, domain.OutcomeInvalid, report.Outcome)
	assert.Equal(t, "ổn", report.Feedback)
}

func TestFillPreservesInvalidOutcome(t *testing.T) {
	pool := credential.NewPool([]string{"k1"}, "")
	handler := &scriptedHandler{script: []func() (*gemini.Response, error){ok("đạt")}}
	req := newTestRequester(t, pool, handler, Config{})

	report := sampleReport()
	report.StudentID = domain.PlaceholderStudentID
	report.Outcome = domain.OutcomeInvalid
	req.Fill(context.Background(), report)

	assert.Equal(t, domain.OutcomeInvalid, report.Outcome)
	assert.Equal(t, "đạt", report.Feedback)
}

func TestFillInvalidKeyRotatesToNextCredential(t *testing.T) {
	pool := credential.NewPool([]string{"bad", "good"}, "")
	invalid := &gemini.APIError{StatusCode: 400, Message: "API key not valid"}
	handler := &scriptedHandler{script: []func() (*gemini.Response, error){
		fail(invalid),
		ok("đạt"),
	}}
	req := newTestRequester(t, pool, handler, Config{})

	report := sampleReport()
	req.Fill(context.Background(), report)

	assert.Equal(t, domain.OutcomeGenerated, report.Outcome)
	assert.Equal(t, 2, handler.calls)
	// Second call must have carried the second key.
	assert.Equal(t, "good", handler.lastCred.Secret)
}

func TestFillRateLimitedFallsToServiceAccount(t *testing.T) {
	pool := credential.NewPool([]string{"k1"}, "sa-tok")
	quota := &gemini.APIError{StatusCode: 429, Status: "RESOURCE_EXHAUSTED", Message: "quota"}
	handler := &scriptedHandler{script: []func() (*gemini.Response, error){
		fail(quota),
		ok("xong"),
	}}
	req := newTestRequester(t, pool, handler, Config{})

	report := sampleReport()
	req.Fill(context.Background(), report)

	assert.Equal(t, domain.OutcomeGenerated, report.Outcome)
	assert.True(t, handler.lastCred.ServiceAccount)
}

func TestFillFallbackAfterAttemptBudget(t *testing.T) {
	pool := credential.NewPool([]string{"k1"}, "",
		credential.WithExhaustionThreshold(1000))
	transient := &gemini.APIError{StatusCode: 500, Message: "internal"}
	handler := &scriptedHandler{script: []func() (*gemini.Response, error){fail(transient)}}
	req := newTestRequester(t, pool, handler, Config{MaxAttempts: 3})

	report := sampleReport()
	req.Fill(context.Background(), report)

	assert.Equal(t, domain.OutcomeFallback, report.Outcome)
	assert.Equal(t, 3, handler.calls)
	assert.NotEmpty(t, report.Feedback)
	assert.Contains(t, report.Feedback, "30/40")
}

func TestFillFallbackWhenPoolExhausted(t *testing.T) {
	// No credentials at all: the pool reports empty acquires until the
	// exhaustion threshold trips, without a single API call.
	pool := credential.NewPool(nil, "")
	handler := &scriptedHandler{script: []func() (*gemini.Response, error){ok("never")}}
	req := newTestRequester(t, pool, handler, Config{})

	report := sampleReport()
	req.Fill(context.Background(), report)

	assert.Equal(t, domain.OutcomeFallback, report.Outcome)
	assert.Zero(t, handler.calls)
	assert.NotEmpty(t, report.Feedback)
}

func TestFillDeadline(t *testing.T) {
	pool := credential.NewPool([]string{"k1"}, "")
	handler := &scriptedHandler{script: []func() (*gemini.Response, error){ok("x")}}
	req := newTestRequester(t, pool, handler, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := sampleReport()
	req.Fill(ctx, report)

	assert.Equal(t, domain.OutcomeDeadline, report.Outcome)
	assert.NotEmpty(t, report.Feedback)
}

func TestFallbackCommentAbsent(t *testing.T) {
	report := &domain.StudentReport{
		Score: domain.ScoreResult{Total: 40, Skipped: 40},
	}
	text := FallbackComment(report)
	assert.Contains(t, text, "chưa tham gia")
}

func TestFallbackCommentIncludesRemediation(t *testing.T) {
	report := sampleReport()
	report.Score.Remediation = "Toán - Hàm số: Cực trị"
	text := FallbackComment(report)
	assert.Contains(t, text, "Cực trị")
}

func TestPromptRendering(t *testing.T) {
	prompts, err := NewPromptRenderer("")
	require.NoError(t, err)

	report := sampleReport()
	report.Score.Remediation = "Hàm số: Đơn điệu"
	prompt, err := prompts.Render(report)
	require.NoError(t, err)

	assert.Contains(t, prompt, "Nguyễn Văn An")
	assert.Contains(t, prompt, "30/40")
	assert.Contains(t, prompt, "85%")
	assert.Contains(t, prompt, "Hàm số: Đơn điệu")
}
