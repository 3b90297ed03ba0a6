package service

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/visionforge/detect-api/internal/artifact"
	"github.com/visionforge/detect-api/internal/domain"
	"github.com/visionforge/detect-api/internal/queue"
	"github.com/visionforge/detect-api/internal/store"
)

// nopDriver is a database/sql driver whose connections support only
// transaction begin/commit/rollback. Service tests run real transactions
// through it while fake stores ignore the *sql.Tx they are handed.
type nopDriver struct{}

func (nopDriver) Open(string) (driver.Conn, error) { return nopConn{}, nil }

type nopConn struct{}

func (nopConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("statements not supported") }
func (nopConn) Close() error                        { return nil }
func (nopConn) Begin() (driver.Tx, error)           { return nopTx{}, nil }

type nopTx struct{}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }

var registerNopDriver sync.Once

func nopDB(t *testing.T) *sql.DB {
	t.Helper()
	registerNopDriver.Do(func() { sql.Register("nop", nopDriver{}) })
	db, err := sql.Open("nop", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// fakeJobStore is an in-memory store.JobStore for service tests.
type fakeJobStore struct {
	mu        sync.Mutex
	nextID    int64
	jobs      map[int64]*domain.Job
	createErr error
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{nextID: 1, jobs: make(map[int64]*domain.Job)}
}

func (s *fakeJobStore) Create(_ context.Context, job *domain.Job) error {
	if s.createErr != nil {
		return s.createErr
	}
	if err := job.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job.ID = s.nextID
	s.nextID++
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *fakeJobStore) GetByID(_ context.Context, id int64) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *fakeJobStore) ListByUser(_ context.Context, userID int64) ([]*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Job
	for id := s.nextID - 1; id >= 1; id-- {
		if job, ok := s.jobs[id]; ok && job.UserID == userID {
			cp := *job
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakeJobStore) MarkProcessing(_ context.Context, id int64) error {
	return s.setStatus(id, domain.JobStatusProcessing)
}

func (s *fakeJobStore) MarkSucceeded(_ context.Context, id int64, overlayPath, csvPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return store.ErrStaleTransition
	}
	job.Status = domain.JobStatusSucceeded
	job.OverlayPath = overlayPath
	job.CSVPath = csvPath
	return nil
}

func (s *fakeJobStore) MarkFailed(_ context.Context, id int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return store.ErrStaleTransition
	}
	job.Status = domain.JobStatusFailed
	job.ErrorMessage = reason
	return nil
}

func (s *fakeJobStore) setStatus(id int64, status domain.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return store.ErrStaleTransition
	}
	job.Status = status
	return nil
}

func (s *fakeJobStore) FindStalled(_ context.Context, status domain.JobStatus, olderThan time.Duration, limit int) ([]*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().UTC().Add(-olderThan)
	var out []*domain.Job
	for id := int64(1); id < s.nextID; id++ {
		job, ok := s.jobs[id]
		if !ok || job.Status != status || !job.UpdatedAt.Before(cutoff) {
			continue
		}
		cp := *job
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeJobStore) WithTx(*sql.Tx) store.JobStore { return s }

// fakeUserStore is an in-memory store.UserStore for service tests.
type fakeUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[string]*domain.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{nextID: 1, users: make(map[string]*domain.User)}
}

func (s *fakeUserStore) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Email]; ok {
		return store.ErrEmailExists
	}
	user.ID = s.nextID
	s.nextID++
	cp := *user
	s.users[user.Email] = &cp
	return nil
}

func (s *fakeUserStore) GetByID(_ context.Context, id int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.ID == id {
			cp := *user
			return &cp, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (s *fakeUserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[email]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (s *fakeUserStore) WithTx(*sql.Tx) store.UserStore { return s }

// fakeArtifacts records puts and can be told to fail.
type fakeArtifacts struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeArtifacts() *fakeArtifacts {
	return &fakeArtifacts{objects: make(map[string][]byte)}
}

func (s *fakeArtifacts) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if s.putErr != nil {
		return s.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *fakeArtifacts) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, artifact.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeArtifacts) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *fakeArtifacts) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// fakePublisher records published messages and can fail the first N calls.
type fakePublisher struct {
	mu        sync.Mutex
	published []queue.Message
	failFirst int
	calls     int
}

func (p *fakePublisher) Publish(_ context.Context, msg queue.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failFirst {
		return errors.New("queue unavailable")
	}
	p.published = append(p.published, msg)
	return nil
}

func (p *fakePublisher) messages() []queue.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]queue.Message, len(p.published))
	copy(out, p.published)
	return out
}
