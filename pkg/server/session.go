package server

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/probelens/probelens/pkg/engine"
	pkgerrors "github.com/probelens/probelens/pkg/errors"
)

// Session is one live investigation owned by the server.
type Session struct {
	ID      string
	Subject string // Investigation subject symbol, empty when not provided
	Engine  *engine.Engine
	Created time.Time
}

// Registry owns the server's sessions. It only maps ids to engines; all
// graph state lives inside each engine, which does its own serialization.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	log           *log.Logger
	safetyTimeout time.Duration
	engineOpts    []engine.Option
}

// NewRegistry creates an empty session registry. Sessions it creates carry
// the given safety timeout and engine options.
func NewRegistry(logger *log.Logger, safetyTimeout time.Duration, engineOpts ...engine.Option) *Registry {
	return &Registry{
		sessions:      make(map[string]*Session),
		log:           logger,
		safetyTimeout: safetyTimeout,
		engineOpts:    engineOpts,
	}
}

// Create starts a new session for the given subject and returns it. The
// subject is optional display metadata; pass empty when unknown.
func (r *Registry) Create(subject string) *Session {
	opts := append([]engine.Option{
		engine.WithLogger(r.log),
		engine.WithSafetyTimeout(r.safetyTimeout),
	}, r.engineOpts...)

	s := &Session{
		ID:      uuid.NewString(),
		Subject: subject,
		Engine:  engine.New(opts...),
		Created: time.Now(),
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	r.log.Info("session created", "session", s.ID, "subject", subject)
	return s
}

// Get returns the session with the given id. The id is validated before the
// lookup so garbage from the URL never reaches log lines or cache keys.
func (r *Registry) Get(id string) (*Session, error) {
	if err := pkgerrors.ValidateSessionID(id); err != nil {
		return nil, err
	}
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, pkgerrors.New(pkgerrors.ErrCodeSessionNotFound, "session %s not found", id)
	}
	return s, nil
}

// Remove terminates and drops the session.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return pkgerrors.New(pkgerrors.ErrCodeSessionNotFound, "session %s not found", id)
	}
	s.Engine.Terminate()
	r.log.Info("session removed", "session", id)
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
