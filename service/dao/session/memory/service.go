package memory

import (
	"context"
	"sync"

	"github.com/viant/opsly/model/session"
	"github.com/viant/opsly/service/dao"
	"github.com/viant/opsly/service/dao/criteria"
)

// Service implements an in-memory, thread-safe session snapshot store.  All
// API methods work with copies to eliminate data races between goroutines.
type Service struct {
	sessions map[session.Key]*session.Session
	mux      sync.RWMutex
}

// Compile-time check that Service implements the generic DAO interface.
var _ dao.Service[session.Key, session.Session] = (*Service)(nil)

// Save persists (a clone of) the supplied session.
func (s *Service) Save(_ context.Context, sess *session.Session) error {
	if sess == nil {
		return dao.ErrNilEntity
	}
	if err := sess.Key.Validate(); err != nil {
		return dao.ErrInvalidKey
	}

	s.mux.Lock()
	defer s.mux.Unlock()
	s.sessions[sess.Key] = sess.Clone()
	return nil
}

// Load retrieves a copy of the session or dao.ErrNotFound.
func (s *Service) Load(_ context.Context, key session.Key) (*session.Session, error) {
	if err := key.Validate(); err != nil {
		return nil, dao.ErrInvalidKey
	}

	s.mux.RLock()
	sess, ok := s.sessions[key]
	s.mux.RUnlock()

	if !ok {
		return nil, dao.ErrNotFound
	}
	return sess.Clone(), nil
}

// Delete removes a session snapshot.
func (s *Service) Delete(_ context.Context, key session.Key) error {
	if err := key.Validate(); err != nil {
		return dao.ErrInvalidKey
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	if _, ok := s.sessions[key]; !ok {
		return dao.ErrNotFound
	}
	delete(s.sessions, key)
	return nil
}

// List returns copies of stored sessions, optionally filtered by status.
func (s *Service) List(_ context.Context, parameters ...*dao.Parameter) ([]*session.Session, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()

	out := make([]*session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if !criteria.FilterByStatus(sess.Status, parameters) {
			continue
		}
		out = append(out, sess.Clone())
	}
	return out, nil
}

// New creates an in-memory session snapshot store.
func New() *Service {
	return &Service{sessions: map[session.Key]*session.Session{}}
}
