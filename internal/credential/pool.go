// Package credential manages a pool of Gemini API credentials with
// per-credential sliding-window quotas. Callers acquire a lease before each
// request and report the outcome back so the pool can retire invalid keys
// and cool down rate-limited ones.
package credential

import (
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// Kind distinguishes the two credential classes the upstream API quotas
// differently.
type Kind uint8

const (
	// KindAPIKey is a per-project API key, quotaed at APIKeyLimit requests
	// per APIKeyPeriod.
	KindAPIKey Kind = iota

	// KindServiceAccount is the shared service-account credential, quotaed
	// at ServiceAccountLimit requests per ServiceAccountPeriod. It is never
	// retired as invalid.
	KindServiceAccount
)

func (k Kind) String() string {
	switch k {
	case KindAPIKey:
		return "api_key"
	case KindServiceAccount:
		return "service_account"
	default:
		return "unknown"
	}
}

// Published upstream quota contract.
const (
	APIKeyLimit  = 15
	APIKeyPeriod = 10 * time.Minute

	ServiceAccountLimit  = 60
	ServiceAccountPeriod = time.Minute
)

// DefaultRateLimitCooldown is applied when a rate-limit release carries no
// server-provided delay.
const DefaultRateLimitCooldown = 60 * time.Second

// DefaultExhaustionThreshold is the number of consecutive empty acquires
// after which the pool reports itself exhausted.
const DefaultExhaustionThreshold = 10

type credState uint8

const (
	stateAvailable credState = iota
	stateInvalid
	stateRateLimited
)

func (s credState) String() string {
	switch s {
	case stateAvailable:
		return "available"
	case stateInvalid:
		return "invalid"
	case stateRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

type credential struct {
	id     string
	secret string
	kind   Kind
	limit  int
	period time.Duration

	state        credState
	limitedUntil time.Time
	window       []time.Time
}

// usable reports whether the credential may serve a request at now, without
// considering its quota window.
func (c *credential) usable(now time.Time) bool {
	switch c.state {
	case stateInvalid:
		return false
	case stateRateLimited:
		if now.Before(c.limitedUntil) {
			return false
		}
		c.state = stateAvailable
	}
	return true
}

// pruneWindow drops timestamps older than the quota period.
func (c *credential) pruneWindow(now time.Time) {
	cutoff := now.Add(-c.period)
	i := 0
	for i < len(c.window) && !c.window[i].After(cutoff) {
		i++
	}
	c.window = c.window[i:]
}

// Lease is a granted credential. The caller must report the request outcome
// through exactly one of the pool's Release methods.
type Lease struct {
	ID     string
	Secret string
	Kind   Kind
}

// Option configures a Pool.
type Option func(*Pool)

// WithClock injects the time source. Tests use this to drive windows
// deterministically.
func WithClock(clock func() time.Time) Option {
	return func(p *Pool) { p.clock = clock }
}

// WithExhaustionThreshold overrides the consecutive-empty-acquire count that
// marks the pool exhausted.
func WithExhaustionThreshold(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.exhaustAfter = n
		}
	}
}

// WithRateLimitCooldown overrides the cooldown used when a rate-limit
// release carries no server delay.
func WithRateLimitCooldown(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.defaultCooldown = d
		}
	}
}

// WithSharedWindow routes quota accounting through a shared window, letting
// several workers honor one quota. On shared-window failure the pool degrades
// to its local accounting rather than refusing leases.
func WithSharedWindow(w SharedWindow) Option {
	return func(p *Pool) { p.shared = w }
}

// WithLogger overrides the pool's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) { p.logger = logger }
}

// Pool hands out credential leases under per-credential sliding-window
// quotas. All mutation happens under one mutex so a quota check and its
// timestamp record are a single atomic step.
type Pool struct {
	mu    sync.Mutex
	creds []*credential

	clock           func() time.Time
	exhaustAfter    int
	defaultCooldown time.Duration
	shared          SharedWindow
	logger          *slog.Logger

	emptyAcquires int
}

// NewPool builds a pool from the API keys in their configured priority order,
// plus an optional service-account token (empty string for none). The service
// account is always scanned last so the cheaper per-project quota drains
// first.
func NewPool(apiKeys []string, serviceAccountToken string, opts ...Option) *Pool {
	p := &Pool{
		clock:           time.Now,
		exhaustAfter:    DefaultExhaustionThreshold,
		defaultCooldown: DefaultRateLimitCooldown,
		logger:          slog.Default().With("component", "credential_pool"),
	}
	for i, key := range apiKeys {
		p.creds = append(p.creds, &credential{
			id:     "api-key-" + strconv.Itoa(i+1),
			secret: key,
			kind:   KindAPIKey,
			limit:  APIKeyLimit,
			period: APIKeyPeriod,
		})
	}
	if serviceAccountToken != "" {
		p.creds = append(p.creds, &credential{
			id:     "service-account",
			secret: serviceAccountToken,
			kind:   KindServiceAccount,
			limit:  ServiceAccountLimit,
			period: ServiceAccountPeriod,
		})
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Acquire scans credentials in priority order and returns the first one with
// quota headroom, recording the grant timestamp in the same step. It returns
// nil when every credential is retired, cooling down, or at its window limit;
// such empty acquires count toward exhaustion.
func (p *Pool) Acquire() *Lease {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock()
	for _, c := range p.creds {
		if !c.usable(now) {
			continue
		}
		if !p.allow(c, now) {
			continue
		}
		p.emptyAcquires = 0
		return &Lease{ID: c.id, Secret: c.secret, Kind: c.kind}
	}

	p.emptyAcquires++
	if p.emptyAcquires == p.exhaustAfter {
		p.logger.Warn("credential pool exhausted",
			"consecutive_empty_acquires", p.emptyAcquires)
	}
	return nil
}

// allow checks quota headroom for c and records the grant. Shared-window
// errors fall back to local accounting.
func (p *Pool) allow(c *credential, now time.Time) bool {
	if p.shared != nil {
		ok, err := p.shared.Allow(c.id, c.limit, c.period, now)
		if err == nil {
			if ok {
				// Mirror into the local window so a later shared-window
				// outage does not forget recent grants.
				c.pruneWindow(now)
				c.window = append(c.window, now)
			}
			return ok
		}
		p.logger.Warn("shared quota window unavailable, using local accounting",
			"credential", c.id, "error", err)
	}

	c.pruneWindow(now)
	if len(c.window) >= c.limit {
		return false
	}
	c.window = append(c.window, now)
	return true
}

// ReleaseSuccess reports a completed request for the lease.
func (p *Pool) ReleaseSuccess(lease *Lease) {
	if lease == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emptyAcquires = 0
}

// ReleaseInvalid permanently retires the leased credential. Service-account
// leases are never retired; an auth failure there points at the request, not
// the token, so the credential only cools down.
func (p *Pool) ReleaseInvalid(lease *Lease) {
	if lease == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	c := p.find(lease.ID)
	if c == nil {
		return
	}
	if c.kind == KindServiceAccount {
		c.state = stateRateLimited
		c.limitedUntil = p.clock().Add(p.defaultCooldown)
		p.logger.Warn("service account rejected, cooling down instead of retiring",
			"until", c.limitedUntil)
		return
	}
	c.state = stateInvalid
	p.logger.Warn("credential retired as invalid", "credential", c.id)
}

// ReleaseRateLimited puts the leased credential on cooldown. A non-positive
// retryAfter means the server sent no delay and the default cooldown applies.
func (p *Pool) ReleaseRateLimited(lease *Lease, retryAfter time.Duration) {
	if lease == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	c := p.find(lease.ID)
	if c == nil {
		return
	}
	if retryAfter <= 0 {
		retryAfter = p.defaultCooldown
	}
	c.state = stateRateLimited
	c.limitedUntil = p.clock().Add(retryAfter)
	p.logger.Info("credential cooling down",
		"credential", c.id, "retry_after", retryAfter)
}

// IsExhausted reports whether the pool has seen enough consecutive empty
// acquires to conclude no credential will free up soon, or every credential
// is permanently retired.
func (p *Pool) IsExhausted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.emptyAcquires >= p.exhaustAfter {
		return true
	}
	for _, c := range p.creds {
		if c.state != stateInvalid {
			return false
		}
	}
	return len(p.creds) > 0
}

// CredentialStats is a point-in-time view of one credential.
type CredentialStats struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	State     string `json:"state"`
	Used      int    `json:"used"`
	Remaining int    `json:"remaining"`
}

// Stats is a point-in-time snapshot of the pool.
type Stats struct {
	Credentials        []CredentialStats `json:"credentials"`
	ConsecutiveEmpty   int               `json:"consecutive_empty"`
	DegradedSharedMode bool              `json:"degraded_shared_mode"`
}

// Stats snapshots every credential's state and window occupancy.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock()
	s := Stats{ConsecutiveEmpty: p.emptyAcquires}
	if p.shared != nil {
		s.DegradedSharedMode = p.shared.Degraded()
	}
	for _, c := range p.creds {
		c.pruneWindow(now)
		state := c.state
		if state == stateRateLimited && !now.Before(c.limitedUntil) {
			state = stateAvailable
		}
		used := len(c.window)
		s.Credentials = append(s.Credentials, CredentialStats{
			ID:        c.id,
			Kind:      c.kind.String(),
			State:     state.String(),
			Used:      used,
			Remaining: c.limit - used,
		})
	}
	return s
}

func (p *Pool) find(id string) *credential {
	for _, c := range p.creds {
		if c.id == id {
			return c
		}
	}
	return nil
}
