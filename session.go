package sambung

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Backend operations the session manager drives.
const (
	opLogin    = "user.login"
	opRegister = "user.register"
	opProfile  = "user.profile"
)

// Scheduler task names owned by the session manager.
const (
	taskSessionRefresh = "session.refresh"
	taskSessionExpiry  = "session.expiry"
)

// Persisted key-value entries. The three are written and cleared together;
// partial presence is treated as no session.
const (
	storeKeyUser      = "session:user"
	storeKeyBlob      = "session:blob"
	storeKeyExpiresAt = "session:expires_at"
)

// Identity describes the authenticated user.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Session is the locally held record asserting a user is authenticated.
// ExpiresAt is fixed at login/register time and never extended by reads or
// background refreshes.
type Session struct {
	Identity  Identity  `json:"identity"`
	Plan      string    `json:"plan"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// sessionBlob is the persisted wire form of a Session.
type sessionBlob struct {
	Identity  Identity `json:"identity"`
	Plan      string   `json:"plan"`
	ExpiresAt int64    `json:"expiresAt"`
}

// SessionManager owns the authenticated-session value: it performs
// login/register/logout against the backend through the client, persists the
// session across restarts, and runs periodic expiry checks and background
// refreshes. It implements IdentityProvider for the client's auth-injection
// step.
type SessionManager struct {
	client    *Client
	store     KeyValueStore
	clock     clock.Clock
	scheduler *Scheduler
	logger    Logger
	metrics   *MetricsCollector

	sessionTimeout      time.Duration
	refreshInterval     time.Duration
	expiryCheckInterval time.Duration

	mu      sync.RWMutex
	session *Session
}

// SessionOption configures a SessionManager.
type SessionOption func(*SessionManager)

// WithSessionTimeout sets how long a session stays valid after a successful
// login or register (default 24h).
func WithSessionTimeout(d time.Duration) SessionOption {
	return func(m *SessionManager) {
		m.sessionTimeout = d
	}
}

// WithRefreshInterval sets the background profile refresh period (default 5m).
func WithRefreshInterval(d time.Duration) SessionOption {
	return func(m *SessionManager) {
		m.refreshInterval = d
	}
}

// WithExpiryCheckInterval sets the expiry sweep period (default 1m).
func WithExpiryCheckInterval(d time.Duration) SessionOption {
	return func(m *SessionManager) {
		m.expiryCheckInterval = d
	}
}

// WithSessionClock injects the clock used for expiry math and timers.
func WithSessionClock(clk clock.Clock) SessionOption {
	return func(m *SessionManager) {
		m.clock = clk
	}
}

// WithSessionLogger sets the logger for session lifecycle events.
func WithSessionLogger(logger Logger) SessionOption {
	return func(m *SessionManager) {
		m.logger = logger
	}
}

// WithSessionMetrics sets the metrics collector for session state series.
func WithSessionMetrics(collector *MetricsCollector) SessionOption {
	return func(m *SessionManager) {
		m.metrics = collector
	}
}

// NewSessionManager constructs a manager over client and store. It restores a
// persisted session if one exists (logging out immediately when it is already
// expired), binds itself as the client's identity provider when none is set,
// and starts the refresh and expiry timers. Call Close to stop the timers.
func NewSessionManager(client *Client, store KeyValueStore, options ...SessionOption) *SessionManager {
	m := &SessionManager{
		client:              client,
		store:               store,
		clock:               clock.New(),
		sessionTimeout:      24 * time.Hour,
		refreshInterval:     5 * time.Minute,
		expiryCheckInterval: time.Minute,
	}

	for _, option := range options {
		option(m)
	}

	m.scheduler = NewScheduler(m.clock)

	if client != nil && !client.IdentityProviderSet() {
		client.SetIdentityProvider(m)
	}

	m.restore(context.Background())
	m.startTimers()

	return m
}

// Login authenticates with the backend. On success the session becomes
// Active with expiry now+sessionTimeout, is persisted, and the background
// timers restart. On failure the current state is unchanged and the failure
// is returned to the caller.
func (m *SessionManager) Login(ctx context.Context, email, password string) (*Session, error) {
	payload := Payload{
		"email":    email,
		"password": password,
	}
	result, err := m.client.Call(ctx, opLogin, payload, CallOptions{})
	if err != nil {
		return nil, err
	}
	return m.establish(ctx, result, email)
}

// Register creates an account and authenticates in one step, with the same
// transition shape as Login.
func (m *SessionManager) Register(ctx context.Context, userData Payload) (*Session, error) {
	result, err := m.client.Call(ctx, opRegister, userData, CallOptions{})
	if err != nil {
		return nil, err
	}
	email, _ := userData["email"].(string)
	return m.establish(ctx, result, email)
}

// Logout clears the persisted session fields, clears every cached result, and
// transitions to Anonymous. It is idempotent.
func (m *SessionManager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()

	err := errors.Join(
		m.store.Delete(ctx, storeKeyUser),
		m.store.Delete(ctx, storeKeyBlob),
		m.store.Delete(ctx, storeKeyExpiresAt),
	)

	if m.client != nil {
		m.client.ClearCache()
	}
	m.metrics.RecordSessionState(false)

	if m.logger != nil {
		m.logger.Debug("Session cleared")
	}
	return err
}

// IsAuthenticated reports whether the session is present and unexpired,
// comparing the stored expiry against the clock at call time.
func (m *SessionManager) IsAuthenticated() bool {
	m.mu.RLock()
	session := m.session
	m.mu.RUnlock()

	if session == nil {
		return false
	}
	return m.clock.Now().Before(session.ExpiresAt)
}

// RequireAuth returns true when authenticated. Otherwise it performs a
// logout, guaranteeing cleared persisted state, and returns false.
func (m *SessionManager) RequireAuth(ctx context.Context) bool {
	if m.IsAuthenticated() {
		return true
	}
	_ = m.Logout(ctx)
	return false
}

// Refresh re-fetches the current profile and overwrites the session's derived
// fields. The expiry is deliberately left untouched: only an explicit login
// or register extends it. A no-op when not Active.
func (m *SessionManager) Refresh(ctx context.Context) error {
	m.mu.RLock()
	session := m.session
	m.mu.RUnlock()
	if session == nil || !m.clock.Now().Before(session.ExpiresAt) {
		return nil
	}

	result, err := m.client.Call(ctx, opProfile, nil, CallOptions{})
	if err != nil {
		m.metrics.RecordSessionRefresh("error")
		return err
	}

	updated := m.sessionFromResult(result, session.Identity.Email, session.ExpiresAt)

	m.mu.Lock()
	// The session may have been cleared while the exchange was in flight.
	if m.session == nil {
		m.mu.Unlock()
		return nil
	}
	m.session = updated
	m.mu.Unlock()

	m.metrics.RecordSessionRefresh("success")
	if err := m.persist(ctx, updated); err != nil {
		return err
	}
	if m.logger != nil {
		m.logger.Debug("Session refreshed", "identity", updated.Identity.Email)
	}
	return nil
}

// Current returns a copy of the session when one is present, expired or not.
func (m *SessionManager) Current() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.session == nil {
		return Session{}, false
	}
	return *m.session, true
}

// CurrentIdentity implements IdentityProvider: the identity injected into
// outgoing payloads while the session is Active.
func (m *SessionManager) CurrentIdentity() (string, bool) {
	m.mu.RLock()
	session := m.session
	m.mu.RUnlock()

	if session == nil || !m.clock.Now().Before(session.ExpiresAt) {
		return "", false
	}
	if session.Identity.Email != "" {
		return session.Identity.Email, true
	}
	if session.Identity.ID != "" {
		return session.Identity.ID, true
	}
	return "", false
}

// Close stops the background timers. The session state is left as-is.
func (m *SessionManager) Close() {
	m.scheduler.StopAll()
}

func (m *SessionManager) establish(ctx context.Context, result *Result, fallbackEmail string) (*Session, error) {
	expiresAt := m.clock.Now().Add(m.sessionTimeout)
	session := m.sessionFromResult(result, fallbackEmail, expiresAt)

	m.mu.Lock()
	m.session = session
	m.mu.Unlock()

	m.metrics.RecordSessionState(true)
	m.startTimers()

	if err := m.persist(ctx, session); err != nil {
		return session, err
	}
	if m.logger != nil {
		m.logger.Info("Session established", "identity", session.Identity.Email, "expiresAt", session.ExpiresAt)
	}
	return session, nil
}

// sessionFromResult builds a Session from a backend response. The backend
// reports the user under "user" and the plan either top-level or inside the
// user object; missing fields degrade to the fallback email.
func (m *SessionManager) sessionFromResult(result *Result, fallbackEmail string, expiresAt time.Time) *Session {
	session := &Session{
		Identity:  Identity{Email: fallbackEmail},
		ExpiresAt: expiresAt,
	}

	if user, ok := result.ObjectField("user"); ok {
		if id, ok := user["id"].(string); ok {
			session.Identity.ID = id
		}
		if email, ok := user["email"].(string); ok && email != "" {
			session.Identity.Email = email
		}
		if name, ok := user["name"].(string); ok {
			session.Identity.Name = name
		}
		if plan, ok := user["plan"].(string); ok {
			session.Plan = plan
		}
	}
	if plan, ok := result.StringField("plan"); ok {
		session.Plan = plan
	}

	return session
}

func (m *SessionManager) persist(ctx context.Context, session *Session) error {
	blob, err := json.Marshal(sessionBlob{
		Identity:  session.Identity,
		Plan:      session.Plan,
		ExpiresAt: session.ExpiresAt.UnixMilli(),
	})
	if err != nil {
		return err
	}

	identity := session.Identity.Email
	if identity == "" {
		identity = session.Identity.ID
	}

	return errors.Join(
		m.store.Set(ctx, storeKeyUser, identity),
		m.store.Set(ctx, storeKeyBlob, string(blob)),
		m.store.Set(ctx, storeKeyExpiresAt, strconv.FormatInt(session.ExpiresAt.UnixMilli(), 10)),
	)
}

// restore loads the persisted session, treating partial or corrupt state as
// no session. An already-expired session is logged out immediately. No
// network exchange happens here.
func (m *SessionManager) restore(ctx context.Context) {
	user, errUser := m.store.Get(ctx, storeKeyUser)
	blob, errBlob := m.store.Get(ctx, storeKeyBlob)
	expiresRaw, errExpires := m.store.Get(ctx, storeKeyExpiresAt)

	if errUser != nil || errBlob != nil || errExpires != nil || user == "" {
		if errUser == nil || errBlob == nil || errExpires == nil {
			// Partial presence: clear the remnants.
			_ = m.Logout(ctx)
		}
		return
	}

	expiresMillis, err := strconv.ParseInt(expiresRaw, 10, 64)
	if err != nil {
		_ = m.Logout(ctx)
		return
	}

	var stored sessionBlob
	if err := json.Unmarshal([]byte(blob), &stored); err != nil {
		_ = m.Logout(ctx)
		return
	}

	session := &Session{
		Identity:  stored.Identity,
		Plan:      stored.Plan,
		ExpiresAt: time.UnixMilli(expiresMillis),
	}

	if !m.clock.Now().Before(session.ExpiresAt) {
		_ = m.Logout(ctx)
		return
	}

	m.mu.Lock()
	m.session = session
	m.mu.Unlock()
	m.metrics.RecordSessionState(true)

	if m.logger != nil {
		m.logger.Debug("Session restored", "identity", session.Identity.Email, "expiresAt", session.ExpiresAt)
	}
}

// startTimers (re)registers the periodic refresh and expiry tasks.
func (m *SessionManager) startTimers() {
	m.scheduler.Every(taskSessionRefresh, m.refreshInterval, func() {
		if !m.IsAuthenticated() {
			return
		}
		if err := m.Refresh(context.Background()); err != nil && m.logger != nil {
			m.logger.Warn("Background refresh failed", "error", err.Error())
		}
	})

	m.scheduler.Every(taskSessionExpiry, m.expiryCheckInterval, func() {
		m.mu.RLock()
		hasSession := m.session != nil
		m.mu.RUnlock()

		if hasSession && !m.IsAuthenticated() {
			if m.logger != nil {
				m.logger.Info("Session expired, logging out")
			}
			_ = m.Logout(context.Background())
		}
	})
}
