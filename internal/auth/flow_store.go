package auth

import (
	"errors"
	"sync"
	"time"

	"toolgate/pkg/logging"
)

// FlowStatus is the state of one login.
//
//	Pending ──callback──▶ CodeIssued ──token──▶ Exchanged
//	   │                      │
//	   └──────── expiry / replay: removed, never reachable again
type FlowStatus int

const (
	// FlowPending means the client was redirected to Google and toolgate is
	// waiting for the callback.
	FlowPending FlowStatus = iota
	// FlowCodeIssued means Google called back and a toolgate authorization
	// code was minted for the client.
	FlowCodeIssued
	// FlowExchanged means the code was redeemed at the token endpoint.
	FlowExchanged
)

func (s FlowStatus) String() string {
	switch s {
	case FlowPending:
		return "pending"
	case FlowCodeIssued:
		return "code_issued"
	case FlowExchanged:
		return "exchanged"
	default:
		return "unknown"
	}
}

var (
	// ErrFlowNotFound is returned for unknown, consumed or swept flows.
	ErrFlowNotFound = errors.New("authorization flow not found")
	// ErrFlowExpired is returned when a flow outlived its TTL.
	ErrFlowExpired = errors.New("authorization flow expired")
	// ErrFlowState is returned when a transition is attempted from the
	// wrong state.
	ErrFlowState = errors.New("authorization flow in unexpected state")
)

// Flow is one login in progress.
type Flow struct {
	Status FlowStatus

	// Client side of the flow.
	ClientID      string
	RedirectURI   string
	ClientState   string
	CodeChallenge string
	Scopes        []string

	// Upstream side of the flow.
	UpstreamState    string
	UpstreamVerifier string
	UpstreamCode     string

	// Code is the toolgate authorization code, set on CodeIssued.
	Code string

	CreatedAt time.Time
	ExpiresAt time.Time
}

// FlowStore holds logins between the authorization redirect and the token
// exchange. Every lookup removes the entry it returns so a state or code can
// be used once.
type FlowStore struct {
	mu      sync.RWMutex
	pending map[string]*Flow // upstream state -> flow
	codes   map[string]*Flow // authorization code -> flow

	ttl         time.Duration
	now         func() time.Time
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewFlowStore creates a store whose flows live for ttl and starts the
// background sweep.
func NewFlowStore(ttl time.Duration, now func() time.Time) *FlowStore {
	if now == nil {
		now = time.Now
	}
	fs := &FlowStore{
		pending:     make(map[string]*Flow),
		codes:       make(map[string]*Flow),
		ttl:         ttl,
		now:         now,
		stopCleanup: make(chan struct{}),
	}

	go fs.cleanupLoop()

	return fs
}

// Begin records a new Pending flow and returns the state to send upstream.
func (fs *FlowStore) Begin(flow *Flow) (string, error) {
	state, err := randomSecret()
	if err != nil {
		return "", err
	}

	now := fs.now()
	flow.Status = FlowPending
	flow.UpstreamState = state
	flow.CreatedAt = now
	flow.ExpiresAt = now.Add(fs.ttl)

	fs.mu.Lock()
	fs.pending[state] = flow
	fs.mu.Unlock()

	logging.Debug("Auth", "Flow pending for client=%s state=%s", flow.ClientID, logging.Redact(state))
	return state, nil
}

// Advance moves the flow identified by the upstream state from Pending to
// CodeIssued, recording Google's code and minting a toolgate code.
func (fs *FlowStore) Advance(state, upstreamCode string) (*Flow, error) {
	flow, err := fs.take(fs.pending, state)
	if err != nil {
		return nil, err
	}
	if flow.Status != FlowPending {
		return nil, ErrFlowState
	}

	code, err := randomSecret()
	if err != nil {
		return nil, err
	}

	now := fs.now()
	flow.Status = FlowCodeIssued
	flow.UpstreamCode = upstreamCode
	flow.Code = code
	flow.ExpiresAt = now.Add(fs.ttl)

	fs.mu.Lock()
	fs.codes[code] = flow
	fs.mu.Unlock()

	logging.Debug("Auth", "Flow code issued for client=%s code=%s", flow.ClientID, logging.Redact(code))
	return flow, nil
}

// Abort removes the Pending flow for state, returning it so the caller can
// report the failure to the client.
func (fs *FlowStore) Abort(state string) (*Flow, error) {
	return fs.take(fs.pending, state)
}

// Redeem consumes an authorization code and marks its flow Exchanged.
// A second Redeem of the same code fails with ErrFlowNotFound.
func (fs *FlowStore) Redeem(code string) (*Flow, error) {
	flow, err := fs.take(fs.codes, code)
	if err != nil {
		return nil, err
	}
	if flow.Status != FlowCodeIssued {
		return nil, ErrFlowState
	}
	flow.Status = FlowExchanged
	return flow, nil
}

// take removes key from m and checks expiry.
func (fs *FlowStore) take(m map[string]*Flow, key string) (*Flow, error) {
	if key == "" {
		return nil, ErrFlowNotFound
	}

	fs.mu.Lock()
	flow, ok := m[key]
	delete(m, key)
	fs.mu.Unlock()

	if !ok {
		return nil, ErrFlowNotFound
	}
	if !fs.now().Before(flow.ExpiresAt) {
		return nil, ErrFlowExpired
	}
	return flow, nil
}

// Count returns the number of flows that are pending or awaiting exchange.
func (fs *FlowStore) Count() int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return len(fs.pending) + len(fs.codes)
}

// Stop stops the background cleanup goroutine.
func (fs *FlowStore) Stop() {
	fs.stopOnce.Do(func() { close(fs.stopCleanup) })
}

func (fs *FlowStore) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fs.cleanup()
		case <-fs.stopCleanup:
			return
		}
	}
}

// cleanup removes all expired flows from the store.
func (fs *FlowStore) cleanup() {
	now := fs.now()

	fs.mu.Lock()
	defer fs.mu.Unlock()

	count := 0
	for _, m := range []map[string]*Flow{fs.pending, fs.codes} {
		for key, flow := range m {
			if !now.Before(flow.ExpiresAt) {
				delete(m, key)
				count++
			}
		}
	}

	if count > 0 {
		logging.Debug("Auth", "Cleaned up %d expired flows", count)
	}
}
