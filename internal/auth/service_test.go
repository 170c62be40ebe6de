package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/jwt"
	"github.com/dropDatabas3/authcore/internal/security/password"
)

// harness arma un servicio con repos en memoria y parámetros argon2
// livianos para que la suite no queme CPU.
type harness struct {
	svc       *Service
	users     *memUsers
	tokens    *memTokens
	attempts  *memAttempts
	artifacts *memArtifacts
	sender    *capturingSender
}

func newHarness(t *testing.T, mut ...func(*Config)) *harness {
	t.Helper()
	priv, _, err := jwt.GenerateSigningKey()
	require.NoError(t, err)

	h := &harness{
		users:     newMemUsers(),
		tokens:    newMemTokens(),
		attempts:  &memAttempts{},
		artifacts: newMemArtifacts(),
		sender:    &capturingSender{},
	}
	cfg := Config{
		Lockout:        LockoutConfig{Threshold: 3, Window: 15 * time.Minute},
		PasswordParams: password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32},
		PasswordPolicy: password.Policy{MinLength: 8},
		BaseURL:        "https://auth.test",
	}
	for _, m := range mut {
		m(&cfg)
	}
	svc, err := New(Deps{
		Users:     h.users,
		Tokens:    h.tokens,
		Attempts:  h.attempts,
		Artifacts: h.artifacts,
		Issuer:    jwt.NewIssuer("authcore-test", priv, time.Minute, time.Hour),
		Sender:    h.sender,
	}, cfg)
	require.NoError(t, err)
	h.svc = svc
	return h
}

func (h *harness) register(t *testing.T, email, pass string) *repository.User {
	t.Helper()
	u, err := h.svc.Register(context.Background(), RegisterInput{
		Email: email, Password: pass, FirstName: "Ada",
	})
	require.NoError(t, err)
	return u
}

func TestRegisterAndLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	u := h.register(t, "Ada@Example.com", "correcthorse1")
	assert.Equal(t, "ada@example.com", u.Email)
	assert.False(t, u.EmailVerified)
	// el registro dispara el mail de verificación
	assert.NotEmpty(t, h.sender.to)

	res, err := h.svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "correcthorse1"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, res.User.ID)
	assert.NotEmpty(t, res.Tokens.AccessToken)
	assert.NotEmpty(t, res.Tokens.RefreshToken)
	assert.Equal(t, 1, h.tokens.activeCount(u.ID))
}

func TestRegister_WeakPassword(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Register(context.Background(), RegisterInput{
		Email: "a@b.c", Password: "short",
	})
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	h := newHarness(t)
	h.register(t, "a@b.c", "correcthorse1")
	_, err := h.svc.Register(context.Background(), RegisterInput{
		Email: "A@B.C", Password: "correcthorse1",
	})
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestLogin_BadCredentialsDoNotRevealWhich(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "ada@example.com", "correcthorse1")

	_, errWrongPass := h.svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "nope-nope"})
	_, errNoUser := h.svc.Login(ctx, LoginInput{Email: "ghost@example.com", Password: "whatever1"})

	assert.ErrorIs(t, errWrongPass, ErrInvalidCredentials)
	assert.ErrorIs(t, errNoUser, ErrInvalidCredentials)
}

func TestLogin_LockoutAfterThreshold(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "ada@example.com", "correcthorse1")

	for i := 0; i < 3; i++ {
		_, err := h.svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "bad-pass"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// Bloqueada: ni siquiera la password correcta entra.
	_, err := h.svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "correcthorse1"})
	assert.ErrorIs(t, err, repository.ErrAccountLocked)
}

func TestLogin_LockoutExpiresWithWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "ada@example.com", "correcthorse1")

	for i := 0; i < 3; i++ {
		_, _ = h.svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "bad-pass"})
	}
	_, err := h.svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "correcthorse1"})
	require.ErrorIs(t, err, repository.ErrAccountLocked)

	// El desbloqueo es pasivo: los fallos envejecen fuera de la ventana.
	h.attempts.mu.Lock()
	for i := range h.attempts.entries {
		h.attempts.entries[i].AttemptedAt = h.attempts.entries[i].AttemptedAt.Add(-16 * time.Minute)
	}
	h.attempts.mu.Unlock()

	_, err = h.svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "correcthorse1"})
	assert.NoError(t, err)
}

func TestLogin_ResetOnSuccessPolicy(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Lockout.ResetOnSuccess = true })
	ctx := context.Background()
	h.register(t, "ada@example.com", "correcthorse1")

	// Dos fallos, un éxito, dos fallos: con ResetOnSuccess el contador
	// arranca de nuevo tras el éxito y no llega al umbral de 3.
	for i := 0; i < 2; i++ {
		_, _ = h.svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "bad-pass"})
	}
	_, err := h.svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "correcthorse1"})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, _ = h.svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "bad-pass"})
	}

	_, err = h.svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "correcthorse1"})
	assert.NoError(t, err)
}

func TestLogin_DisabledAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "ada@example.com", "correcthorse1")
	require.NoError(t, h.users.SetActive(ctx, u.ID, false))

	_, err := h.svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "correcthorse1"})
	assert.ErrorIs(t, err, repository.ErrAccountDisabled)
}

func TestRefresh_RotatesAndOldTokenDies(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "ada@example.com", "correcthorse1")

	res, err := h.svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "correcthorse1"})
	require.NoError(t, err)
	old := res.Tokens.RefreshToken

	rotated, err := h.svc.Refresh(ctx, old)
	require.NoError(t, err)
	assert.NotEqual(t, old, rotated.Tokens.RefreshToken)
	assert.Equal(t, u.ID, rotated.User.ID)

	// Reusar el token consumido responde revocado, no expirado.
	_, err = h.svc.Refresh(ctx, old)
	assert.ErrorIs(t, err, repository.ErrTokenRevoked)

	// El nuevo sigue vivo.
	_, err = h.svc.Refresh(ctx, rotated.Tokens.RefreshToken)
	assert.NoError(t, err)
}

func TestRefresh_UnknownToken(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Refresh(context.Background(), "never-issued")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "ada@example.com", "correcthorse1")

	res, err := h.svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "correcthorse1"})
	require.NoError(t, err)

	require.NoError(t, h.svc.Logout(ctx, res.Tokens.RefreshToken))
	_, err = h.svc.Refresh(ctx, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, repository.ErrTokenRevoked)
}

func TestLogoutAll(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "ada@example.com", "correcthorse1")

	for i := 0; i < 3; i++ {
		_, err := h.svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "correcthorse1"})
		require.NoError(t, err)
	}
	require.Equal(t, 3, h.tokens.activeCount(u.ID))

	n, err := h.svc.LogoutAll(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, h.tokens.activeCount(u.ID))
}

func TestChangePassword_RevokesSessions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.register(t, "ada@example.com", "correcthorse1")

	res, err := h.svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "correcthorse1"})
	require.NoError(t, err)

	err = h.svc.ChangePassword(ctx, u.ID, "wrong-current", "newpassword1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, h.svc.ChangePassword(ctx, u.ID, "correcthorse1", "newpassword1"))
	assert.Equal(t, 0, h.tokens.activeCount(u.ID))
	_, err = h.svc.Refresh(ctx, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, repository.ErrTokenRevoked)

	_, err = h.svc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "newpassword1"})
	assert.NoError(t, err)
}
