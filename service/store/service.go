// Package store implements the session store: an exclusive per-key lease over
// a snapshot DAO. At most one execution loop operates on a session at a time;
// a concurrent Checkout fails with *SessionBusyError and the dispatcher
// decides whether to queue or reject the request.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/viant/opsly/model/session"
	"github.com/viant/opsly/service/dao"
	"github.com/viant/opsly/service/prompt"
)

const defaultHistoryLimit = 100

// Service hands out exclusive session handles backed by a snapshot DAO.
type Service struct {
	snapshots    dao.Service[session.Key, session.Session]
	questions    prompt.Service
	defaultHost  string
	historyLimit int

	mux     sync.Mutex
	leased  map[session.Key]bool
	cancels map[session.Key]context.CancelFunc
}

// New creates a session store over the supplied snapshot DAO.
func New(snapshots dao.Service[session.Key, session.Session], options ...Option) *Service {
	ret := &Service{
		snapshots:    snapshots,
		historyLimit: defaultHistoryLimit,
		leased:       make(map[session.Key]bool),
		cancels:      make(map[session.Key]context.CancelFunc),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Checkout acquires the exclusive handle for the key, creating a session on
// first use or restoring the persisted snapshot. The caller must Release the
// key on every path once done.
func (s *Service) Checkout(ctx context.Context, key session.Key) (*session.Session, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	s.mux.Lock()
	if s.leased[key] {
		s.mux.Unlock()
		return nil, &SessionBusyError{Key: key}
	}
	s.leased[key] = true
	s.mux.Unlock()

	sess, err := s.snapshots.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, dao.ErrNotFound) {
			s.unlock(key)
			return nil, err
		}
		sess = session.New(key, s.defaultHost, s.historyLimit)
	}
	sess.Touch()
	return sess, nil
}

// Release persists the updated snapshot and frees the lease. The lease is
// freed even when persisting fails so a key can never stay busy; passing a
// nil session frees the lease without saving.
func (s *Service) Release(ctx context.Context, key session.Key, updated *session.Session) error {
	defer s.unlock(key)
	if updated == nil {
		return nil
	}
	return s.snapshots.Save(ctx, updated)
}

// Leased reports whether the key is currently checked out.
func (s *Service) Leased(key session.Key) bool {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.leased[key]
}

// RegisterCancel records the in-flight turn's cancel function so an explicit
// stop can interrupt it. The registration is dropped on Release.
func (s *Service) RegisterCancel(key session.Key, cancel context.CancelFunc) {
	s.mux.Lock()
	s.cancels[key] = cancel
	s.mux.Unlock()
}

// Cancel interrupts the in-flight turn for the key, reporting whether one was
// registered.
func (s *Service) Cancel(key session.Key) bool {
	s.mux.Lock()
	cancel, ok := s.cancels[key]
	delete(s.cancels, key)
	s.mux.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Reset discards the key's session state: the persisted snapshot and any
// pending question. An in-flight turn is cancelled first; until it winds down
// the key stays leased and Reset returns *SessionBusyError so the caller can
// retry.
func (s *Service) Reset(ctx context.Context, key session.Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	s.Cancel(key)
	s.mux.Lock()
	if s.leased[key] {
		s.mux.Unlock()
		return &SessionBusyError{Key: key}
	}
	s.mux.Unlock()

	if s.questions != nil {
		_ = s.questions.Discard(ctx, key.String())
	}
	if err := s.snapshots.Delete(ctx, key); err != nil && !errors.Is(err, dao.ErrNotFound) {
		return err
	}
	return nil
}

// EvictIdle removes sessions inactive for at least maxAge, skipping leased
// keys. Evicted keys drop their snapshot and any pending question; the next
// request starts a fresh session.
func (s *Service) EvictIdle(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	sessions, err := s.snapshots.List(ctx)
	if err != nil {
		return 0, err
	}
	evicted := 0
	for _, sess := range sessions {
		if !sess.Idle(maxAge) || s.Leased(sess.Key) {
			continue
		}
		if s.questions != nil {
			_ = s.questions.Discard(ctx, sess.Key.String())
		}
		if err := s.snapshots.Delete(ctx, sess.Key); err != nil {
			if errors.Is(err, dao.ErrNotFound) {
				continue
			}
			return evicted, err
		}
		evicted++
	}
	return evicted, nil
}

func (s *Service) unlock(key session.Key) {
	s.mux.Lock()
	delete(s.leased, key)
	delete(s.cancels, key)
	s.mux.Unlock()
}
