// Package auth implementa los flujos de identidad del engine: registro,
// login con lockout, rotación de refresh tokens, verificación de email
// y reset de password. Orquesta los repositorios sin conocer el motor
// SQL subyacente.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/authcore/internal/cache"
	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/email"
	"github.com/dropDatabas3/authcore/internal/jwt"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"github.com/dropDatabas3/authcore/internal/observability/metrics"
	"github.com/dropDatabas3/authcore/internal/security/password"
	"github.com/dropDatabas3/authcore/internal/security/tokens"
	"github.com/dropDatabas3/authcore/internal/util"
	"github.com/dropDatabas3/authcore/internal/validation"
)

// Errores propios del servicio. Los de persistencia (ErrAccountLocked,
// ErrTokenRevoked, etc.) viajan desde repository sin envolver.
var (
	// ErrInvalidCredentials cubre email inexistente y password incorrecta
	// con una sola respuesta: no se revela cuál de las dos falló.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrWeakPassword indica que la password no cumple la política.
	ErrWeakPassword = errors.New("auth: password does not meet policy")

	// ErrEmailAlreadyVerified indica un reenvío de verificación inútil.
	ErrEmailAlreadyVerified = errors.New("auth: email already verified")
)

// LockoutConfig parametriza el bloqueo por fuerza bruta.
type LockoutConfig struct {
	// Threshold de fallos dentro de la ventana a partir del cual la
	// cuenta queda bloqueada.
	Threshold int
	// Window trailing sobre la que se cuentan fallos. El bloqueo se
	// levanta solo, cuando el fallo más viejo sale de la ventana.
	Window time.Duration
	// ResetOnSuccess hace que un login exitoso limpie el contador de
	// fallos previos. Apagado por defecto.
	ResetOnSuccess bool
}

// Config parametriza el servicio.
type Config struct {
	Lockout LockoutConfig

	// TTLs de artefactos de email.
	VerifyTTL time.Duration // default 48h
	ResetTTL  time.Duration // default 1h
	CodeTTL   time.Duration // default 10m; los códigos cortos viven menos

	// BaseURL para armar los links de los correos.
	BaseURL string

	PasswordParams password.Params
	PasswordPolicy password.Policy

	// CacheVerdictTTL acota cuánto vive el veredicto "locked" cacheado.
	CacheVerdictTTL time.Duration // default 30s
}

// Maintainer ejecuta el barrido de purga del storage.
type Maintainer interface {
	Maintenance(ctx context.Context) (*repository.MaintenanceReport, error)
}

// Service orquesta los flujos de identidad.
type Service struct {
	users     repository.UserRepository
	tokens    repository.TokenRepository
	attempts  repository.AttemptRepository
	artifacts repository.ArtifactRepository
	maint     Maintainer

	issuer *jwt.Issuer
	sender email.Sender
	cache  cache.Client

	cfg Config
}

// Deps agrupa las dependencias del servicio.
type Deps struct {
	Users     repository.UserRepository
	Tokens    repository.TokenRepository
	Attempts  repository.AttemptRepository
	Artifacts repository.ArtifactRepository
	Maint     Maintainer

	Issuer *jwt.Issuer
	Sender email.Sender // nil ⇒ NoopSender
	Cache  cache.Client // nil ⇒ sin cache de veredictos
}

// New construye el servicio aplicando defaults de configuración.
func New(deps Deps, cfg Config) (*Service, error) {
	if deps.Users == nil || deps.Tokens == nil || deps.Attempts == nil || deps.Artifacts == nil {
		return nil, fmt.Errorf("auth: all repositories are required")
	}
	if deps.Issuer == nil {
		return nil, fmt.Errorf("auth: token issuer is required")
	}
	if deps.Sender == nil {
		deps.Sender = email.NoopSender{}
	}
	if cfg.Lockout.Threshold <= 0 {
		cfg.Lockout.Threshold = 5
	}
	if cfg.Lockout.Window <= 0 {
		cfg.Lockout.Window = 15 * time.Minute
	}
	if cfg.VerifyTTL <= 0 {
		cfg.VerifyTTL = 48 * time.Hour
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = time.Hour
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 10 * time.Minute
	}
	if cfg.CacheVerdictTTL <= 0 {
		cfg.CacheVerdictTTL = 30 * time.Second
	}
	if cfg.PasswordParams == (password.Params{}) {
		cfg.PasswordParams = password.Default
	}
	if cfg.PasswordPolicy.MinLength == 0 {
		cfg.PasswordPolicy.MinLength = 8
	}
	return &Service{
		users:     deps.Users,
		tokens:    deps.Tokens,
		attempts:  deps.Attempts,
		artifacts: deps.Artifacts,
		maint:     deps.Maint,
		issuer:    deps.Issuer,
		sender:    deps.Sender,
		cache:     deps.Cache,
		cfg:       cfg,
	}, nil
}

// ─── Registro ───

// RegisterInput contiene los datos de registro.
type RegisterInput struct {
	Email        string
	Password     string
	FirstName    string
	LastName     string
	CustomFields map[string]any
}

// Register crea la cuenta y dispara la verificación de email en
// best-effort: un SMTP caído no aborta el registro.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*repository.User, error) {
	emailAddr := validation.NormalizeEmail(in.Email)
	if emailAddr == "" || !strings.Contains(emailAddr, "@") {
		return nil, repository.Validationf("email", "invalid email address")
	}
	if ok, reasons := s.cfg.PasswordPolicy.Validate(in.Password); !ok {
		return nil, fmt.Errorf("%w: %s", ErrWeakPassword, strings.Join(reasons, ","))
	}

	hash, err := password.Hash(s.cfg.PasswordParams, in.Password)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	u, err := s.users.Create(ctx, repository.CreateUserInput{
		Email:        emailAddr,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		CustomFields: in.CustomFields,
	})
	if err != nil {
		return nil, err
	}

	if err := s.SendVerification(ctx, u.Email, repository.KindToken); err != nil &&
		!errors.Is(err, ErrEmailAlreadyVerified) {
		logger.Named("auth").Warn("verification email failed",
			logger.String("email", util.MaskEmail(u.Email)),
			logger.Err(err))
	}
	return u, nil
}

// ─── Login y lockout ───

// LoginInput contiene las credenciales y metadata del intento.
type LoginInput struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// LoginResult es el resultado de un login exitoso.
type LoginResult struct {
	User   *repository.User
	Tokens *jwt.TokenPair
}

// Login valida credenciales bajo la política de lockout y emite el par
// de tokens. El chequeo de bloqueo corre antes de verificar la
// password: una cuenta bloqueada no gasta un argon2.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	emailAddr := validation.NormalizeEmail(in.Email)
	log := logger.Named("auth").With(logger.String("email", util.MaskEmail(emailAddr)))

	locked, err := s.isLocked(ctx, emailAddr)
	if err != nil {
		return nil, err
	}
	if locked {
		metrics.RecordLogin("locked")
		log.Warn("login rejected: account locked")
		return nil, repository.ErrAccountLocked
	}

	u, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if repository.IsNotFound(err) {
			// Se registra el fallo igual: el ledger cuenta intentos
			// contra el email, exista o no la cuenta.
			s.recordAttempt(ctx, emailAddr, false, in)
			metrics.RecordLogin("bad_credentials")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !u.IsActive {
		metrics.RecordLogin("disabled")
		log.Warn("login rejected: account disabled")
		return nil, repository.ErrAccountDisabled
	}

	if !password.Verify(in.Password, u.PasswordHash) {
		s.recordAttempt(ctx, emailAddr, false, in)
		s.cacheLockoutIfReached(ctx, emailAddr)
		metrics.RecordLogin("bad_credentials")
		return nil, ErrInvalidCredentials
	}

	s.recordAttempt(ctx, emailAddr, true, in)
	s.invalidateVerdict(ctx, emailAddr)

	pair, err := s.issueTokens(ctx, u)
	if err != nil {
		return nil, err
	}
	metrics.RecordLogin("ok")
	log.Info("login ok", logger.String("user_id", u.ID))
	return &LoginResult{User: u, Tokens: pair}, nil
}

// isLocked calcula el veredicto de lockout, con cache corto opcional
// por delante del COUNT.
func (s *Service) isLocked(ctx context.Context, emailAddr string) (bool, error) {
	key := "lockout:" + emailAddr
	if s.cache != nil {
		if v, err := s.cache.Get(ctx, key); err == nil && v == "locked" {
			return true, nil
		}
	}
	n, err := s.attempts.CountRecentFailures(ctx, emailAddr, s.cfg.Lockout.Window, s.cfg.Lockout.ResetOnSuccess)
	if err != nil {
		return false, fmt.Errorf("auth: lockout check: %w", err)
	}
	locked := n >= s.cfg.Lockout.Threshold
	if locked && s.cache != nil {
		_ = s.cache.Set(ctx, key, "locked", s.cfg.CacheVerdictTTL)
	}
	return locked, nil
}

func (s *Service) cacheLockoutIfReached(ctx context.Context, emailAddr string) {
	if s.cache == nil {
		return
	}
	n, err := s.attempts.CountRecentFailures(ctx, emailAddr, s.cfg.Lockout.Window, s.cfg.Lockout.ResetOnSuccess)
	if err == nil && n >= s.cfg.Lockout.Threshold {
		_ = s.cache.Set(ctx, "lockout:"+emailAddr, "locked", s.cfg.CacheVerdictTTL)
	}
}

func (s *Service) invalidateVerdict(ctx context.Context, emailAddr string) {
	if s.cache != nil {
		_ = s.cache.Delete(ctx, "lockout:"+emailAddr)
	}
}

// recordAttempt escribe el ledger en best-effort: un fallo de insert no
// voltea el login, pero queda logueado.
func (s *Service) recordAttempt(ctx context.Context, emailAddr string, success bool, in LoginInput) {
	err := s.attempts.Record(ctx, &repository.LoginAttempt{
		Email:     emailAddr,
		Success:   success,
		IPAddress: in.IPAddress,
		UserAgent: in.UserAgent,
	})
	if err != nil {
		logger.Named("auth").Error("attempt ledger write failed",
			logger.String("email", util.MaskEmail(emailAddr)),
			logger.Err(err))
	}
}

// issueTokens emite el par JWT y guarda el digest del refresh en el vault.
func (s *Service) issueTokens(ctx context.Context, u *repository.User) (*jwt.TokenPair, error) {
	pair, err := s.issuer.GenerateTokens(jwt.Payload{
		UserID: u.ID,
		Email:  u.Email,
		Extra:  u.CustomFields,
	})
	if err != nil {
		return nil, err
	}
	digest := tokens.SHA256Base64URL(pair.RefreshToken)
	if _, err := s.tokens.Store(ctx, u.ID, digest, pair.RefreshExpiresAt); err != nil {
		return nil, fmt.Errorf("auth: store refresh token: %w", err)
	}
	return pair, nil
}

// ─── Rotación de sesión ───

// Refresh rota un refresh token: consume el anterior y emite un par
// nuevo. El vault decide primero — un token revocado responde
// ErrTokenRevoked aunque además esté vencido; la firma se verifica
// después, sobre un token que ya sabemos vivo.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	digest := tokens.SHA256Base64URL(refreshToken)

	stored, err := s.tokens.Consume(ctx, digest)
	if err != nil {
		metrics.RecordRefresh(refreshResult(err))
		return nil, err
	}

	claims, err := s.issuer.VerifyRefreshToken(refreshToken)
	if err != nil {
		// El digest estaba en el vault pero la firma no valida: el
		// token ya quedó consumido, no se re-activa.
		metrics.RecordRefresh("invalid")
		return nil, err
	}
	if claims.UserID != stored.UserID {
		metrics.RecordRefresh("invalid")
		return nil, repository.ErrTokenInvalid
	}

	u, err := s.users.GetByID(ctx, stored.UserID)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		metrics.RecordRefresh("invalid")
		return nil, repository.ErrAccountDisabled
	}

	pair, err := s.issueTokens(ctx, u)
	if err != nil {
		return nil, err
	}
	metrics.RecordRefresh("ok")
	return &LoginResult{User: u, Tokens: pair}, nil
}

func refreshResult(err error) string {
	switch {
	case errors.Is(err, repository.ErrTokenRevoked):
		return "revoked"
	case errors.Is(err, repository.ErrTokenExpired):
		return "expired"
	default:
		return "invalid"
	}
}

// Logout revoca el refresh token presentado.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	digest := tokens.SHA256Base64URL(refreshToken)
	t, err := s.tokens.GetByHash(ctx, digest)
	if err != nil {
		return err
	}
	return s.tokens.Revoke(ctx, t.ID)
}

// LogoutAll revoca todas las sesiones del usuario. Retorna cuántas.
func (s *Service) LogoutAll(ctx context.Context, userID string) (int, error) {
	n, err := s.tokens.RevokeAllByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	logger.Named("auth").Info("all sessions revoked",
		logger.String("user_id", userID), logger.Int("count", n))
	return n, nil
}

// ChangePassword reemplaza la password verificando la actual. Toda
// sesión viva se revoca: una password cambiada deja atrás cualquier
// refresh token emitido con la anterior.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !password.Verify(current, u.PasswordHash) {
		return ErrInvalidCredentials
	}
	if ok, reasons := s.cfg.PasswordPolicy.Validate(next); !ok {
		return fmt.Errorf("%w: %s", ErrWeakPassword, strings.Join(reasons, ","))
	}
	hash, err := password.Hash(s.cfg.PasswordParams, next)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return err
	}
	if _, err := s.tokens.RevokeAllByUser(ctx, userID); err != nil {
		return fmt.Errorf("auth: revoke sessions after password change: %w", err)
	}
	return nil
}

// PerformMaintenance delega el barrido de purga y registra métricas.
func (s *Service) PerformMaintenance(ctx context.Context) (*repository.MaintenanceReport, error) {
	if s.maint == nil {
		return nil, fmt.Errorf("auth: no maintainer configured")
	}
	rep, err := s.maint.Maintenance(ctx)
	if err != nil {
		return nil, err
	}
	d := time.Duration(rep.DurationMs) * time.Millisecond
	for category, n := range rep.Counts {
		metrics.RecordMaintenance(category, n, 0)
	}
	metrics.RecordMaintenance("total", 0, d)
	return rep, nil
}
