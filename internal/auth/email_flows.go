package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/email"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"github.com/dropDatabas3/authcore/internal/observability/metrics"
	"github.com/dropDatabas3/authcore/internal/security/password"
	"github.com/dropDatabas3/authcore/internal/security/tokens"
	"github.com/dropDatabas3/authcore/internal/util"
	"github.com/dropDatabas3/authcore/internal/validation"
)

// opaqueTokenBytes es el tamaño del secreto largo de los artefactos.
const opaqueTokenBytes = 32

// SendVerification emite un artefacto de verificación y envía el mail.
// Re-emitir reemplaza al artefacto anterior: nunca hay dos vivos para
// el mismo (usuario, propósito).
func (s *Service) SendVerification(ctx context.Context, emailAddr string, kind repository.ArtifactKind) error {
	emailAddr = validation.NormalizeEmail(emailAddr)
	u, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		return err
	}
	if u.EmailVerified {
		return ErrEmailAlreadyVerified
	}

	secret, ttl, err := s.issueArtifact(ctx, u, repository.PurposeVerifyEmail, kind)
	if err != nil {
		return err
	}
	metrics.RecordArtifact(string(repository.PurposeVerifyEmail), "issued")

	vars := email.Vars{
		Email: u.Email,
		Link:  email.BuildLink(s.cfg.BaseURL, "/verify-email", secret),
		TTL:   email.HumanTTL(ttl),
	}
	if kind == repository.KindCode {
		vars.Code = secret
		vars.Link = ""
	}
	html, text, err := email.RenderVerification(vars)
	if err != nil {
		return err
	}
	return s.sender.Send(u.Email, "Verificá tu email", html, text)
}

// VerifyEmail consume un artefacto de verificación y marca el email.
// Para códigos cortos la gramática se valida antes de tocar la base:
// un código malformado jamás genera una query.
func (s *Service) VerifyEmail(ctx context.Context, secret string, kind repository.ArtifactKind) error {
	if err := validateSecretShape(secret, kind); err != nil {
		metrics.RecordArtifact(string(repository.PurposeVerifyEmail), "rejected")
		return err
	}

	a, err := s.artifacts.Consume(ctx, repository.PurposeVerifyEmail, tokens.SHA256Base64URL(secret))
	if err != nil {
		metrics.RecordArtifact(string(repository.PurposeVerifyEmail), "rejected")
		return err
	}
	if err := s.users.SetEmailVerified(ctx, a.UserID, true); err != nil {
		return err
	}
	metrics.RecordArtifact(string(repository.PurposeVerifyEmail), "consumed")
	logger.Named("auth").Info("email verified",
		logger.String("user_id", a.UserID),
		logger.String("email", util.MaskEmail(a.Email)))
	return nil
}

// RequestPasswordReset emite el artefacto de reset si la cuenta existe.
// La respuesta es idéntica exista o no: nunca se revela si un email
// está registrado.
func (s *Service) RequestPasswordReset(ctx context.Context, emailAddr string, kind repository.ArtifactKind) error {
	emailAddr = validation.NormalizeEmail(emailAddr)
	u, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if repository.IsNotFound(err) {
			logger.Named("auth").Debug("reset requested for unknown email",
				logger.String("email", util.MaskEmail(emailAddr)))
			return nil
		}
		return err
	}

	secret, ttl, err := s.issueArtifact(ctx, u, repository.PurposeResetPassword, kind)
	if err != nil {
		return err
	}
	metrics.RecordArtifact(string(repository.PurposeResetPassword), "issued")

	vars := email.Vars{
		Email: u.Email,
		Link:  email.BuildLink(s.cfg.BaseURL, "/reset-password", secret),
		TTL:   email.HumanTTL(ttl),
	}
	if kind == repository.KindCode {
		vars.Code = secret
		vars.Link = ""
	}
	html, text, err := email.RenderReset(vars)
	if err != nil {
		return err
	}
	return s.sender.Send(u.Email, "Restablecé tu password", html, text)
}

// ResetPassword consume el artefacto de reset, cambia la password y
// revoca todas las sesiones vivas del usuario.
func (s *Service) ResetPassword(ctx context.Context, secret, newPassword string, kind repository.ArtifactKind) error {
	if err := validateSecretShape(secret, kind); err != nil {
		metrics.RecordArtifact(string(repository.PurposeResetPassword), "rejected")
		return err
	}
	if ok, reasons := s.cfg.PasswordPolicy.Validate(newPassword); !ok {
		return fmt.Errorf("%w: %s", ErrWeakPassword, strings.Join(reasons, ","))
	}

	a, err := s.artifacts.Consume(ctx, repository.PurposeResetPassword, tokens.SHA256Base64URL(secret))
	if err != nil {
		metrics.RecordArtifact(string(repository.PurposeResetPassword), "rejected")
		return err
	}

	hash, err := password.Hash(s.cfg.PasswordParams, newPassword)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}
	if err := s.users.UpdatePasswordHash(ctx, a.UserID, hash); err != nil {
		return err
	}
	if _, err := s.tokens.RevokeAllByUser(ctx, a.UserID); err != nil {
		return fmt.Errorf("auth: revoke sessions after reset: %w", err)
	}
	metrics.RecordArtifact(string(repository.PurposeResetPassword), "consumed")
	logger.Named("auth").Info("password reset",
		logger.String("user_id", a.UserID),
		logger.String("email", util.MaskEmail(a.Email)))
	return nil
}

// issueArtifact genera el secreto según el kind, persiste su digest y
// retorna el secreto crudo (solo viaja por mail) junto con su TTL.
func (s *Service) issueArtifact(ctx context.Context, u *repository.User, purpose repository.ArtifactPurpose, kind repository.ArtifactKind) (string, time.Duration, error) {
	var secret string
	var err error
	var ttl time.Duration

	switch kind {
	case repository.KindCode:
		secret, err = tokens.GenerateNumericCode()
		ttl = s.cfg.CodeTTL
	case repository.KindToken:
		secret, err = tokens.GenerateOpaqueToken(opaqueTokenBytes)
		if purpose == repository.PurposeResetPassword {
			ttl = s.cfg.ResetTTL
		} else {
			ttl = s.cfg.VerifyTTL
		}
	default:
		return "", 0, repository.Validationf("kind", "unknown artifact kind %q", kind)
	}
	if err != nil {
		return "", 0, fmt.Errorf("auth: generate secret: %w", err)
	}

	a := &repository.EmailArtifact{
		UserID:     u.ID,
		Email:      u.Email,
		Purpose:    purpose,
		Kind:       kind,
		SecretHash: tokens.SHA256Base64URL(secret),
		ExpiresAt:  time.Now().UTC().Add(ttl),
	}
	if err := s.artifacts.Issue(ctx, a); err != nil {
		return "", 0, err
	}
	return secret, ttl, nil
}

// validateSecretShape corta antes del lookup los secretos que no pueden
// ser válidos.
func validateSecretShape(secret string, kind repository.ArtifactKind) error {
	switch kind {
	case repository.KindCode:
		if !validation.ValidNumericCode(secret) {
			return repository.Validationf("code", "code must be exactly 6 digits")
		}
	case repository.KindToken:
		if secret == "" {
			return repository.Validationf("token", "empty token")
		}
	default:
		return repository.Validationf("kind", "unknown artifact kind %q", kind)
	}
	return nil
}
