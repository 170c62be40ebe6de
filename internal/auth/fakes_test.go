package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
)

// Repos en memoria con la misma semántica que la capa SQL: suficientes
// para ejercitar los flujos sin base.

type memUsers struct {
	mu    sync.Mutex
	byID  map[string]*repository.User
	byEml map[string]string // email → id
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]*repository.User{}, byEml: map[string]string{}}
}

func (m *memUsers) Create(_ context.Context, in repository.CreateUserInput) (*repository.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, dup := m.byEml[email]; dup {
		return nil, repository.ErrConflict
	}
	u := &repository.User{
		ID:            uuid.NewString(),
		Email:         email,
		PasswordHash:  in.PasswordHash,
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		EmailVerified: in.EmailVerified,
		IsActive:      true,
		CustomFields:  in.CustomFields,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	m.byID[u.ID] = u
	m.byEml[email] = u.ID
	return u, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*repository.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byEml[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *m.byID[id]
	return &cp, nil
}

func (m *memUsers) GetByID(_ context.Context, userID string) (*repository.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) Update(_ context.Context, userID string, updates map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return repository.ErrNotFound
	}
	for k, v := range updates {
		switch strings.ToLower(k) {
		case "first_name":
			u.FirstName, _ = v.(string)
		case "last_name":
			u.LastName, _ = v.(string)
		}
	}
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memUsers) SetEmailVerified(_ context.Context, userID string, verified bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.EmailVerified = verified
	return nil
}

func (m *memUsers) SetActive(_ context.Context, userID string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.IsActive = active
	return nil
}

func (m *memUsers) UpdatePasswordHash(_ context.Context, userID, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = newHash
	return nil
}

func (m *memUsers) CountRows(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.byID)), nil
}

type memTokens struct {
	mu     sync.Mutex
	byHash map[string]*repository.RefreshToken
}

func newMemTokens() *memTokens {
	return &memTokens{byHash: map[string]*repository.RefreshToken{}}
}

func (m *memTokens) Store(_ context.Context, userID, tokenHash string, expiresAt time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &repository.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: tokenHash,
		IssuedAt:  time.Now().UTC(),
		ExpiresAt: expiresAt,
	}
	m.byHash[tokenHash] = t
	return t.ID, nil
}

func (m *memTokens) GetByHash(_ context.Context, tokenHash string) (*repository.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byHash[tokenHash]
	if !ok || t.Revoked() || !t.ExpiresAt.After(time.Now().UTC()) {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTokens) Revoke(_ context.Context, tokenID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.byHash {
		if t.ID == tokenID {
			if t.Revoked() {
				return repository.ErrTokenRevoked
			}
			now := time.Now().UTC()
			t.RevokedAt = &now
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memTokens) Consume(_ context.Context, tokenHash string) (*repository.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byHash[tokenHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if t.Revoked() {
		return nil, repository.ErrTokenRevoked
	}
	if !t.ExpiresAt.After(time.Now().UTC()) {
		return nil, repository.ErrTokenExpired
	}
	now := time.Now().UTC()
	t.RevokedAt = &now
	cp := *t
	return &cp, nil
}

func (m *memTokens) RevokeAllByUser(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	now := time.Now().UTC()
	for _, t := range m.byHash {
		if t.UserID == userID && !t.Revoked() {
			t.RevokedAt = &now
			n++
		}
	}
	return n, nil
}

func (m *memTokens) DeleteExpired(_ context.Context, retain time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	now := time.Now().UTC()
	for h, t := range m.byHash {
		if !t.ExpiresAt.After(now) || (t.Revoked() && t.RevokedAt.Before(now.Add(-retain))) {
			delete(m.byHash, h)
			n++
		}
	}
	return n, nil
}

func (m *memTokens) activeCount(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.byHash {
		if t.UserID == userID && !t.Revoked() {
			n++
		}
	}
	return n
}

type memAttempts struct {
	mu      sync.Mutex
	entries []repository.LoginAttempt
}

func (m *memAttempts) Record(_ context.Context, a *repository.LoginAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	if cp.AttemptedAt.IsZero() {
		cp.AttemptedAt = time.Now().UTC()
	}
	cp.Email = strings.ToLower(strings.TrimSpace(cp.Email))
	m.entries = append(m.entries, cp)
	return nil
}

func (m *memAttempts) CountRecentFailures(_ context.Context, email string, window time.Duration, sinceLastSuccess bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	cutoff := time.Now().UTC().Add(-window)
	if sinceLastSuccess {
		for _, e := range m.entries {
			if e.Email == email && e.Success && e.AttemptedAt.After(cutoff) {
				cutoff = e.AttemptedAt
			}
		}
	}
	n := 0
	for _, e := range m.entries {
		if e.Email == email && !e.Success && e.AttemptedAt.After(cutoff) {
			n++
		}
	}
	return n, nil
}

func (m *memAttempts) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []repository.LoginAttempt
	n := 0
	for _, e := range m.entries {
		if e.AttemptedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return n, nil
}

type memArtifacts struct {
	mu   sync.Mutex
	byID map[string]*repository.EmailArtifact
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{byID: map[string]*repository.EmailArtifact{}}
}

func (m *memArtifacts) Issue(_ context.Context, a *repository.EmailArtifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, prev := range m.byID {
		if prev.UserID == a.UserID && prev.Purpose == a.Purpose {
			delete(m.byID, id)
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	cp := *a
	m.byID[cp.ID] = &cp
	return nil
}

func (m *memArtifacts) Consume(_ context.Context, purpose repository.ArtifactPurpose, secretHash string) (*repository.EmailArtifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, a := range m.byID {
		if a.Purpose == purpose && a.SecretHash == secretHash {
			if !a.ExpiresAt.After(time.Now().UTC()) {
				return nil, repository.ErrNotFound
			}
			delete(m.byID, id)
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memArtifacts) DeleteExpired(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	now := time.Now().UTC()
	for id, a := range m.byID {
		if !a.ExpiresAt.After(now) {
			delete(m.byID, id)
			n++
		}
	}
	return n, nil
}

func (m *memArtifacts) liveFor(userID string, purpose repository.ArtifactPurpose) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.byID {
		if a.UserID == userID && a.Purpose == purpose {
			n++
		}
	}
	return n
}

// capturingSender retiene el último email enviado.
type capturingSender struct {
	mu   sync.Mutex
	to   []string
	text []string
}

func (c *capturingSender) Send(to, subject, htmlBody, textBody string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.to = append(c.to, to)
	c.text = append(c.text, textBody)
	return nil
}

func (c *capturingSender) lastText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.text) == 0 {
		return ""
	}
	return c.text[len(c.text)-1]
}
