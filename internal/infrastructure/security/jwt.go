package security

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/baechuer/community-service/internal/application/identity"
	"github.com/baechuer/community-service/internal/domain"
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

type JWTIssuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewJWTIssuer(secret string, issuer string) *JWTIssuer {
	return &JWTIssuer{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}
}

type tokenClaims struct {
	UserID int64  `json:"uid"`
	Role   string `json:"role,omitempty"`
	Type   string `json:"typ"`
	jwt.RegisteredClaims
}

func (s *JWTIssuer) SignAccessToken(userID int64, role domain.Role, ttl time.Duration) (string, error) {
	now := s.now()
	return s.sign(tokenClaims{
		UserID:           userID,
		Role:             string(role),
		Type:             typeAccess,
		RegisteredClaims: s.registered(userID, now, ttl, ""),
	})
}

func (s *JWTIssuer) SignRefreshToken(userID int64, ttl time.Duration) (string, string, error) {
	jti := uuid.NewString()
	tok, err := s.sign(tokenClaims{
		UserID:           userID,
		Type:             typeRefresh,
		RegisteredClaims: s.registered(userID, s.now(), ttl, jti),
	})
	if err != nil {
		return "", "", err
	}
	return tok, jti, nil
}

func (s *JWTIssuer) VerifyAccessToken(token string) (identity.AccessClaims, error) {
	c, err := s.parse(token, typeAccess)
	if err != nil {
		return identity.AccessClaims{}, err
	}
	if !domain.IsValidRole(c.Role) {
		return identity.AccessClaims{}, domain.ErrTokenInvalid()
	}
	return identity.AccessClaims{
		UserID: c.UserID,
		Role:   domain.Role(c.Role),
		Exp:    c.ExpiresAt.Time,
	}, nil
}

func (s *JWTIssuer) VerifyRefreshToken(token string) (identity.RefreshClaims, error) {
	c, err := s.parse(token, typeRefresh)
	if err != nil {
		return identity.RefreshClaims{}, err
	}
	if c.ID == "" || c.IssuedAt == nil {
		return identity.RefreshClaims{}, domain.ErrTokenInvalid()
	}
	return identity.RefreshClaims{
		UserID:   c.UserID,
		JTI:      c.ID,
		IssuedAt: c.IssuedAt.Time,
		Exp:      c.ExpiresAt.Time,
	}, nil
}

func (s *JWTIssuer) registered(userID int64, now time.Time, ttl time.Duration, jti string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        jti,
		Issuer:    s.issuer,
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (s *JWTIssuer) sign(c tokenClaims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", domain.ErrTokenSignFailed(err)
	}
	return signed, nil
}

func (s *JWTIssuer) parse(token string, typ string) (*tokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		// prevent alg confusion
		if t.Method != jwt.SigningMethodHS256 {
			return nil, domain.ErrTokenInvalid()
		}
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired()
		}
		return nil, domain.ErrTokenInvalid()
	}

	c, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid || c.Type != typ || c.UserID <= 0 {
		return nil, domain.ErrTokenInvalid()
	}
	return c, nil
}
