package admin

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/klabast/wb-services/plaza/internal/kv"
	"github.com/klabast/wb-services/plaza/internal/metrics"
)

// AuthKey is the session-scoped flag set while logged in
const AuthKey = "plazaAdminAuth"

// DefaultLoginDelay is the simulated latency of a login attempt
const DefaultLoginDelay = 1000 * time.Millisecond

// Gate hides the admin pages behind a login. It is a convenience for the
// interface only: anyone who can set the session flag is "logged in".
type Gate struct {
	creds      Credentials
	sessions   kv.Store
	loginDelay time.Duration
	logger     *zerolog.Logger
}

// GateOption configures a Gate
type GateOption func(*Gate)

// WithLoginDelay sets the simulated login latency; 0 disables it
func WithLoginDelay(d time.Duration) GateOption {
	return func(g *Gate) { g.loginDelay = d }
}

// WithGateLogger sets the logger
func WithGateLogger(logger *zerolog.Logger) GateOption {
	return func(g *Gate) { g.logger = logger }
}

// NewGate creates a gate over a session-scoped store
func NewGate(creds Credentials, sessions kv.Store, opts ...GateOption) *Gate {
	nop := zerolog.Nop()
	g := &Gate{
		creds:      creds,
		sessions:   sessions,
		loginDelay: DefaultLoginDelay,
		logger:     &nop,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Session returns the view of one browser session
func (g *Gate) Session(id string) *Session {
	return &Session{gate: g, id: id}
}

// Session is the login state of one browser session. LoggedOut moves to
// LoggedIn on a successful login and back on logout; a failed login
// changes nothing.
type Session struct {
	gate *Gate
	id   string
}

func (s *Session) key() string {
	return s.id + ":" + AuthKey
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// Login checks the credentials and sets the flag on success
func (s *Session) Login(ctx context.Context, user, password string) (bool, error) {
	if s.gate.loginDelay > 0 {
		time.Sleep(s.gate.loginDelay)
	}

	ok := s.gate.creds.Verify(user, password)
	metrics.TrackLogin(ok)
	if !ok {
		s.gate.logger.Warn().Str("session", s.id).Str("user", user).Msg("Failed login attempt")
		return false, nil
	}

	if err := s.gate.sessions.Set(ctx, s.key(), "true"); err != nil {
		return false, err
	}
	s.gate.logger.Info().Str("session", s.id).Str("user", user).Msg("Admin logged in")
	return true, nil
}

// Logout clears the flag
func (s *Session) Logout(ctx context.Context) error {
	if err := s.gate.sessions.Remove(ctx, s.key()); err != nil {
		return err
	}
	s.gate.logger.Info().Str("session", s.id).Msg("Admin logged out")
	return nil
}

// Authenticated reports whether the flag holds exactly "true"
func (s *Session) Authenticated(ctx context.Context) bool {
	v, ok, err := s.gate.sessions.Get(ctx, s.key())
	if err != nil {
		s.gate.logger.Warn().Err(err).Str("session", s.id).Msg("Failed to read session flag")
		return false
	}
	return ok && v == "true"
}
