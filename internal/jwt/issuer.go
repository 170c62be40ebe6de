// Package jwt emite y verifica los tokens firmados del sistema.
//
// La primitiva de firma (EdDSA vía golang-jwt) es un colaborador opaco:
// este paquete solo define la forma del payload, los TTLs y la
// distinción Expired vs Invalid que los callers necesitan para decidir
// entre "pedir refresh" y "forzar re-autenticación".
package jwt

import (
	"crypto/ed25519"
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
)

// TokenKind distingue access de refresh en el claim token_use.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// Payload es la forma mínima que debe traer un token: identificador de
// usuario y claim de identidad. Extra se anida bajo "custom".
type Payload struct {
	UserID string
	Email  string
	Extra  map[string]any
}

// TokenPair es el resultado de generateTokens.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Claims es el resultado de una verificación exitosa.
type Claims struct {
	UserID    string
	Email     string
	Kind      TokenKind
	ExpiresAt time.Time
	Custom    map[string]any
}

// Issuer firma tokens con una clave Ed25519 provista por configuración.
type Issuer struct {
	Iss        string
	AccessTTL  time.Duration // ej: 15m
	RefreshTTL time.Duration // ej: 720h
	priv       ed25519.PrivateKey
	pub        ed25519.PublicKey
}

func NewIssuer(iss string, priv ed25519.PrivateKey, accessTTL, refreshTTL time.Duration) *Issuer {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	return &Issuer{
		Iss:        iss,
		AccessTTL:  accessTTL,
		RefreshTTL: refreshTTL,
		priv:       priv,
		pub:        priv.Public().(ed25519.PublicKey),
	}
}

// GenerateTokens valida la forma del payload y emite el par
// access/refresh. Retorna ValidationError si falta el identificador de
// usuario o el claim de identidad.
func (i *Issuer) GenerateTokens(p Payload) (*TokenPair, error) {
	if p.UserID == "" {
		return nil, repository.Validationf("userId", "payload must carry a user identifier")
	}
	if p.Email == "" {
		return nil, repository.Validationf("email", "payload must carry an identity claim")
	}

	now := time.Now().UTC()

	access, accessExp, err := i.sign(p, KindAccess, now, now.Add(i.AccessTTL))
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := i.sign(p, KindRefresh, now, now.Add(i.RefreshTTL))
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (i *Issuer) sign(p Payload, kind TokenKind, now, exp time.Time) (string, time.Time, error) {
	claims := jwtv5.MapClaims{
		"iss":       i.Iss,
		"sub":       p.UserID,
		"email":     p.Email,
		"token_use": string(kind),
		"iat":       now.Unix(),
		"nbf":       now.Unix(),
		"exp":       exp.Unix(),
	}
	if len(p.Extra) > 0 {
		claims["custom"] = p.Extra
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	tk.Header["typ"] = "JWT"
	signed, err := tk.SignedString(i.priv)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// VerifyAccessToken valida firma, exp/nbf e iss de un access token.
func (i *Issuer) VerifyAccessToken(token string) (*Claims, error) {
	return i.verify(token, KindAccess)
}

// VerifyRefreshToken valida un refresh token. El vault debe consultarse
// ANTES de llamar acá: un token revocado se rechaza barato sin verificar
// la firma.
func (i *Issuer) VerifyRefreshToken(token string) (*Claims, error) {
	return i.verify(token, KindRefresh)
}

func (i *Issuer) verify(token string, want TokenKind) (*Claims, error) {
	keyfunc := func(t *jwtv5.Token) (any, error) { return i.pub, nil }

	tok, err := jwtv5.Parse(token, keyfunc,
		jwtv5.WithValidMethods([]string{"EdDSA"}),
		jwtv5.WithLeeway(30*time.Second),
	)
	if err != nil {
		// Expired es un error distinto de Malformed/Invalid: el caller
		// reacciona diferente (refresh vs re-login).
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, repository.ErrTokenExpired
		}
		return nil, repository.ErrTokenInvalid
	}
	if !tok.Valid {
		return nil, repository.ErrTokenInvalid
	}

	mc, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, repository.ErrTokenInvalid
	}
	if i.Iss != "" {
		if iss, _ := mc["iss"].(string); iss != i.Iss {
			return nil, repository.ErrTokenInvalid
		}
	}
	if use, _ := mc["token_use"].(string); use != string(want) {
		return nil, repository.ErrTokenInvalid
	}

	c := &Claims{Kind: want}
	c.UserID, _ = mc["sub"].(string)
	c.Email, _ = mc["email"].(string)
	if c.UserID == "" {
		return nil, repository.ErrTokenInvalid
	}
	if expf, ok := mc["exp"].(float64); ok {
		c.ExpiresAt = time.Unix(int64(expf), 0)
	}
	if custom, ok := mc["custom"].(map[string]any); ok {
		c.Custom = custom
	}
	return c, nil
}
