// Package auth issues and validates credentials: bcrypt password hashes,
// short-lived HS256 access tokens and persisted, revocable refresh tokens.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/itc-hub/sitecontrol/internal/domain"
	"github.com/itc-hub/sitecontrol/internal/models"
	"github.com/itc-hub/sitecontrol/internal/syslog"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Claims is the JWT payload carried by both token types.
type Claims struct {
	jwt.RegisteredClaims
	Role      string `json:"role,omitempty"`
	TokenType string `json:"token_type"`
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int // access token lifetime, seconds
}

// LoginMeta is optional request metadata recorded with the refresh token.
type LoginMeta struct {
	UserAgent string
	IP        string
}

// Service signs and verifies tokens against a shared secret.
type Service struct {
	conn       *gorm.DB
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewService builds an auth service. TTLs fall back to 15m / 30d when zero.
func NewService(conn *gorm.DB, secret string, accessTTL, refreshTTL time.Duration) *Service {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	return &Service{conn: conn, secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// HashPassword returns a bcrypt hash of the plaintext password.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(h), nil
}

// CheckPassword reports whether the plaintext matches the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Login verifies credentials and returns a fresh token pair. Unknown email,
// wrong password and deactivated accounts all fail the same way so callers
// cannot probe for registered addresses.
func (s *Service) Login(email, password string, meta LoginMeta) (*TokenPair, *models.User, error) {
	var user models.User
	err := s.conn.Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("auth: invalid credentials: %w", domain.ErrForbidden)
		}
		return nil, nil, fmt.Errorf("auth: login: %w", err)
	}
	if !user.IsActive || !CheckPassword(user.PasswordHash, password) {
		syslog.Warning(s.conn, models.LogCategoryAuth, "failed login for %s", email)
		return nil, nil, fmt.Errorf("auth: invalid credentials: %w", domain.ErrForbidden)
	}

	pair, err := s.issuePair(&user, meta)
	if err != nil {
		return nil, nil, err
	}
	syslog.Info(s.conn, models.LogCategoryAuth, "login %s (%s)", user.Email, user.Role)
	return pair, &user, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair issued. A revoked or expired token is rejected.
func (s *Service) Refresh(refreshToken string, meta LoginMeta) (*TokenPair, error) {
	claims, err := s.parse(refreshToken, tokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	var row models.RefreshToken
	err = s.conn.Preload("User").Where("jti = ?", claims.ID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("auth: unknown refresh token: %w", domain.ErrForbidden)
		}
		return nil, fmt.Errorf("auth: refresh lookup: %w", err)
	}
	if row.Revoked || time.Now().After(row.ExpiresAt) {
		return nil, fmt.Errorf("auth: refresh token revoked or expired: %w", domain.ErrForbidden)
	}
	if row.TokenHash != hashToken(refreshToken) {
		return nil, fmt.Errorf("auth: refresh token mismatch: %w", domain.ErrForbidden)
	}
	if !row.User.IsActive {
		return nil, fmt.Errorf("auth: account deactivated: %w", domain.ErrForbidden)
	}

	if err := s.conn.Model(&row).Update("revoked", true).Error; err != nil {
		return nil, fmt.Errorf("auth: revoke refresh token: %w", err)
	}
	return s.issuePair(&row.User, meta)
}

// Logout revokes the presented refresh token. Already-revoked tokens are a
// no-op so repeated logouts succeed.
func (s *Service) Logout(refreshToken string) error {
	claims, err := s.parse(refreshToken, tokenTypeRefresh)
	if err != nil {
		return err
	}
	err = s.conn.Model(&models.RefreshToken{}).
		Where("jti = ?", claims.ID).Update("revoked", true).Error
	if err != nil {
		return fmt.Errorf("auth: logout: %w", err)
	}
	return nil
}

// RevokeAll revokes every refresh token of a user, e.g. on deactivation.
func (s *Service) RevokeAll(userID string) error {
	err := s.conn.Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Update("revoked", true).Error
	if err != nil {
		return fmt.Errorf("auth: revoke all for %s: %w", userID, err)
	}
	return nil
}

// Authenticate validates an access token and loads its active user.
func (s *Service) Authenticate(accessToken string) (*models.User, error) {
	claims, err := s.parse(accessToken, tokenTypeAccess)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := s.conn.Where("id = ?", claims.Subject).First(&user).Error; err != nil {
		return nil, fmt.Errorf("auth: unknown subject: %w", domain.ErrForbidden)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("auth: account deactivated: %w", domain.ErrForbidden)
	}
	return &user, nil
}

func (s *Service) issuePair(user *models.User, meta LoginMeta) (*TokenPair, error) {
	now := time.Now()

	access, err := s.sign(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
		Role:      string(user.Role),
		TokenType: tokenTypeAccess,
	})
	if err != nil {
		return nil, err
	}

	jti := uuid.New().String()
	refreshExp := now.Add(s.refreshTTL)
	refresh, err := s.sign(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExp),
		},
		TokenType: tokenTypeRefresh,
	})
	if err != nil {
		return nil, err
	}

	row := models.RefreshToken{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		JTI:       jti,
		TokenHash: hashToken(refresh),
		UserAgent: meta.UserAgent,
		IP:        meta.IP,
		ExpiresAt: refreshExp,
	}
	if err := s.conn.Create(&row).Error; err != nil {
		return nil, fmt.Errorf("auth: persist refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(s.accessTTL.Seconds()),
	}, nil
}

func (s *Service) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

func (s *Service) parse(tokenString, wantType string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("auth: parse token: %v: %w", err, domain.ErrForbidden)
	}
	if !parsed.Valid || claims.TokenType != wantType {
		return nil, fmt.Errorf("auth: wrong token type: %w", domain.ErrForbidden)
	}
	return claims, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
