package repository

import (
	"context"
	"time"
)

// ArtifactPurpose indica para qué flujo sirve el artefacto.
type ArtifactPurpose string

const (
	PurposeVerifyEmail   ArtifactPurpose = "verify_email"
	PurposeResetPassword ArtifactPurpose = "reset_password"
)

// ArtifactKind distingue el esquema largo (token para URL) del corto
// (código numérico de 6 dígitos).
type ArtifactKind string

const (
	KindToken ArtifactKind = "token"
	KindCode  ArtifactKind = "code"
)

// EmailArtifact es un artefacto efímero de un solo uso: token de
// verificación/reset o código numérico. SecretHash es el digest del
// valor enviado por mail; el valor crudo nunca se guarda.
type EmailArtifact struct {
	ID         string
	UserID     string
	Email      string
	Purpose    ArtifactPurpose
	Kind       ArtifactKind
	SecretHash string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// ArtifactRepository define el store de artefactos efímeros.
//
// Invariante: a lo sumo un artefacto vivo por (user, purpose). Emitir
// uno nuevo borra el anterior. Un artefacto expirado pero aún no
// purgado se comporta como inexistente.
type ArtifactRepository interface {
	// Issue persiste un artefacto nuevo, borrando primero cualquier
	// anterior del mismo (user, purpose).
	Issue(ctx context.Context, a *EmailArtifact) error

	// Consume busca por digest y borra la fila en la misma operación
	// lógica (single-use). Retorna ErrNotFound si no existe o si ya
	// expiró, sin distinguir ambos casos.
	Consume(ctx context.Context, purpose ArtifactPurpose, secretHash string) (*EmailArtifact, error)

	// DeleteExpired purga artefactos vencidos.
	DeleteExpired(ctx context.Context) (int, error)
}
