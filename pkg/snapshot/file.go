package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/mesauthz/pkg/rbac"
)

// Document is the YAML layout read by FileSource
type Document struct {
	Roles []rbac.Role  `yaml:"roles"`
	Users []UserRecord `yaml:"users"`
}

// UserRecord binds a user to role codes, lines and stations
type UserRecord struct {
	ID         string   `yaml:"id"`
	Roles      []string `yaml:"roles"`
	LineIDs    []string `yaml:"lineIds"`
	StationIDs []string `yaml:"stationIds"`
	HomePage   string   `yaml:"homePage"`
}

// FileSource serves snapshots from a YAML document held in memory
type FileSource struct {
	path string
	log  *logrus.Logger

	mu      sync.RWMutex
	records map[string]Record
}

// NewFileSource reads path and returns a source serving its users
func NewFileSource(path string, log *logrus.Logger) (*FileSource, error) {
	if log == nil {
		log = logrus.New()
	}
	s := &FileSource{path: path, log: log}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load returns the record for userID from the current generation
func (s *FileSource) Load(ctx context.Context, userID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	s.mu.RLock()
	rec, ok := s.records[userID]
	s.mu.RUnlock()
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return cloneRecord(rec), nil
}

// Users returns the ids of every user in the current generation
func (s *FileSource) Users() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	return ids
}

// Reload re-reads the file. On error the previous generation stays active.
func (s *FileSource) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read snapshot file: %w", err)
	}

	records, err := ParseDocument(data)
	if err != nil {
		return fmt.Errorf("%s: %w", s.path, err)
	}

	s.mu.Lock()
	s.records = records
	s.mu.Unlock()
	return nil
}

// ParseDocument decodes a YAML document into per-user records. Custom roles
// are checked with rbac.ValidateRoleDefinition and role references must
// resolve to a custom role or a preset.
func ParseDocument(data []byte) (map[string]Record, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot document: %w", err)
	}

	roles := make(map[string]rbac.Role)
	for _, p := range rbac.PresetRoles() {
		roles[p.Code] = p.Role
	}
	for _, r := range doc.Roles {
		if err := rbac.ValidateRoleDefinition(r); err != nil {
			return nil, fmt.Errorf("role %q: %w", r.Code, err)
		}
		if _, dup := roles[r.Code]; dup {
			return nil, fmt.Errorf("role %q defined twice", r.Code)
		}
		roles[r.Code] = r
	}

	records := make(map[string]Record, len(doc.Users))
	for _, u := range doc.Users {
		if u.ID == "" {
			return nil, fmt.Errorf("user without id")
		}
		if _, dup := records[u.ID]; dup {
			return nil, fmt.Errorf("user %q defined twice", u.ID)
		}

		user := rbac.User{
			ID:         u.ID,
			LineIDs:    nonNilIDs(u.LineIDs),
			StationIDs: nonNilIDs(u.StationIDs),
		}
		for _, code := range u.Roles {
			role, ok := roles[code]
			if !ok {
				return nil, fmt.Errorf("user %q: %w: %s", u.ID, ErrUnknownRole, code)
			}
			user.Roles = append(user.Roles, role)
		}
		records[u.ID] = Record{User: user, HomePage: u.HomePage}
	}
	return records, nil
}

// Watch reloads the file whenever it changes and then calls onChange. It
// watches the parent directory so editors that replace the file by rename
// are picked up. Watch blocks until ctx is done.
func (s *FileSource) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", s.path, err)
	}

	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := s.Reload(); err != nil {
				s.log.WithError(err).Warn("Keeping previous snapshot generation")
				continue
			}
			s.log.WithField("path", s.path).Info("Snapshot file reloaded")
			if onChange != nil {
				onChange()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.WithError(err).Warn("Snapshot watcher error")
		}
	}
}

func nonNilIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func cloneRecord(rec Record) Record {
	out := Record{HomePage: rec.HomePage}
	out.User = rbac.User{
		ID:         rec.User.ID,
		LineIDs:    append([]string{}, rec.User.LineIDs...),
		StationIDs: append([]string{}, rec.User.StationIDs...),
	}
	for _, r := range rec.User.Roles {
		r.Permissions = append([]string(nil), r.Permissions...)
		out.User.Roles = append(out.User.Roles, r)
	}
	return out
}
