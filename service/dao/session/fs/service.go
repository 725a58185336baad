// Package fs persists session snapshots as JSON files through afs, so
// conversations survive process restarts. One file per session key.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	neturl "net/url"
	"path"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"
	"github.com/viant/opsly/model/session"
	"github.com/viant/opsly/service/dao"
	"github.com/viant/opsly/service/dao/criteria"
)

// Service implements an afs-backed session snapshot store.
type Service struct {
	baseURL string
	fs      afs.Service
	mux     sync.RWMutex
}

// Ensure Service implements dao.Service
var _ dao.Service[session.Key, session.Session] = (*Service)(nil)

// Save persists a session snapshot.
func (s *Service) Save(ctx context.Context, sess *session.Session) error {
	if sess == nil {
		return dao.ErrNilEntity
	}
	if err := sess.Key.Validate(); err != nil {
		return dao.ErrInvalidKey
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session %v: %w", sess.Key, err)
	}
	location := s.sessionURL(sess.Key)
	if err = s.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save session to %s: %w", location, err)
	}
	return nil
}

// Load retrieves a session snapshot or dao.ErrNotFound.
func (s *Service) Load(ctx context.Context, key session.Key) (*session.Session, error) {
	if err := key.Validate(); err != nil {
		return nil, dao.ErrInvalidKey
	}

	s.mux.RLock()
	defer s.mux.RUnlock()

	location := s.sessionURL(key)
	exists, err := s.fs.Exists(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to check session %s: %w", location, err)
	}
	if !exists {
		return nil, dao.ErrNotFound
	}
	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", location, err)
	}
	sess := &session.Session{}
	if err = json.Unmarshal(data, sess); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", location, err)
	}
	return sess, nil
}

// Delete removes a session snapshot.
func (s *Service) Delete(ctx context.Context, key session.Key) error {
	if err := key.Validate(); err != nil {
		return dao.ErrInvalidKey
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	location := s.sessionURL(key)
	exists, err := s.fs.Exists(ctx, location)
	if err != nil {
		return fmt.Errorf("failed to check session %s: %w", location, err)
	}
	if !exists {
		return dao.ErrNotFound
	}
	return s.fs.Delete(ctx, location)
}

// List returns all stored snapshots, optionally filtered by status.
// Unreadable files are skipped so one corrupt snapshot does not hide the rest.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*session.Session, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()

	objects, err := s.fs.List(ctx, s.baseURL, option.NewRecursive(true))
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	var sessions []*session.Session
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			continue
		}
		sess := &session.Session{}
		if err = json.Unmarshal(data, sess); err != nil {
			continue
		}
		if !criteria.FilterByStatus(sess.Status, parameters) {
			continue
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// sessionURL returns the snapshot location for a key; key components are
// escaped so arbitrary user/channel identifiers stay filesystem-safe.
func (s *Service) sessionURL(key session.Key) string {
	name := neturl.QueryEscape(key.UserID) + "@" + neturl.QueryEscape(key.ChannelID)
	return path.Join(s.baseURL, name+".json")
}

// New creates an afs-backed session snapshot store rooted at baseURL.
func New(baseURL string) (*Service, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	fs := afs.New()
	ctx := context.Background()
	if exists, _ := fs.Exists(ctx, baseURL); !exists {
		if err := fs.Create(ctx, baseURL, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", err)
		}
	}
	baseURL = url.Normalize(baseURL, file.Scheme)
	return &Service{baseURL: baseURL, fs: fs}, nil
}
