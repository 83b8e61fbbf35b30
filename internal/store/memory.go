package store

import (
	"context"
	"sync"
	"time"

	"github.com/efleague/admin/internal/model"
)

// MemoryStore keeps admin records in process. It backs tests and local
// development.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]model.AdminAccount
	// failErr, when set, is returned by every call.
	failErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]model.AdminAccount)}
}

// Fail makes every subsequent call return err. Pass nil to recover.
func (s *MemoryStore) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

func (s *MemoryStore) Get(ctx context.Context, email string) (model.AdminAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return model.AdminAccount{}, s.failErr
	}
	acct, ok := s.records[email]
	if !ok {
		return model.AdminAccount{}, ErrNotFound
	}
	return cloneAccount(acct), nil
}

func (s *MemoryStore) Update(ctx context.Context, email string, p Patch) error {
	if err := p.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	acct, ok := s.records[email]
	if !ok {
		return ErrNotFound
	}
	if p.IfResetToken != nil && acct.ResetToken != *p.IfResetToken {
		return ErrConflict
	}

	if p.PasswordHash != nil {
		acct.PasswordHash = *p.PasswordHash
	}
	if p.IsAuthenticated != nil {
		acct.IsAuthenticated = *p.IsAuthenticated
	}
	if p.LastLogin != nil {
		acct.LastLogin = timePtr(*p.LastLogin)
	}
	if p.LastLogout != nil {
		acct.LastLogout = timePtr(*p.LastLogout)
	}
	switch {
	case p.Reset != nil:
		acct.ResetToken = p.Reset.Value
		acct.ResetExpiresAt = timePtr(p.Reset.ExpiresAt)
	case p.ClearReset:
		acct.ResetToken = ""
		acct.ResetExpiresAt = nil
	}

	s.records[email] = acct
	return nil
}

func (s *MemoryStore) Exists(ctx context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return false, s.failErr
	}
	_, ok := s.records[email]
	return ok, nil
}

func (s *MemoryStore) Create(ctx context.Context, email, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	if _, ok := s.records[email]; ok {
		return nil
	}
	s.records[email] = model.AdminAccount{Email: email, PasswordHash: passwordHash}
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failErr
}

func (s *MemoryStore) Close() error { return nil }

func cloneAccount(a model.AdminAccount) model.AdminAccount {
	if a.ResetExpiresAt != nil {
		a.ResetExpiresAt = timePtr(*a.ResetExpiresAt)
	}
	if a.LastLogin != nil {
		a.LastLogin = timePtr(*a.LastLogin)
	}
	if a.LastLogout != nil {
		a.LastLogout = timePtr(*a.LastLogout)
	}
	return a
}

func timePtr(t time.Time) *time.Time {
	return &t
}
