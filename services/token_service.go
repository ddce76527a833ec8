package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"room-booking/models"
	"room-booking/utils"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

const refreshTokenBytes = 48

// TokenPair is handed to the client after login, registration or refresh.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
	TokenType        string    `json:"tokenType"`
}

// AccessClaims are the claims carried by an access token.
type AccessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// UserID returns the numeric subject.
func (c AccessClaims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidToken
	}
	return uint(id), nil
}

// TokenService is the Token Issuer: HS256 access tokens and single-use
// opaque refresh tokens stored as SHA-256 hashes.
type TokenService struct {
	DB         *gorm.DB
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Now        func() time.Time
}

func NewTokenService(db *gorm.DB, secret string, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		DB:         db,
		Secret:     []byte(secret),
		AccessTTL:  accessTTL,
		RefreshTTL: refreshTTL,
		Now:        time.Now,
	}
}

func (s *TokenService) now() time.Time {
	return s.Now().UTC()
}

func (s *TokenService) signAccess(user *models.User, now time.Time) (string, time.Time, error) {
	exp := now.Add(s.AccessTTL)
	claims := AccessClaims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, exp, nil
}

func (s *TokenService) issue(tx *gorm.DB, user *models.User) (*TokenPair, error) {
	now := s.now()
	access, accessExp, err := s.signAccess(user, now)
	if err != nil {
		return nil, err
	}

	raw, err := utils.GenerateSecureToken(refreshTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	rt := models.RefreshToken{
		UserID:    user.ID,
		TokenHash: utils.HashToken(raw),
		ExpiresAt: now.Add(s.RefreshTTL),
		CreatedAt: now,
	}
	if err := tx.Create(&rt).Error; err != nil {
		return nil, classifyDBError("store refresh token", err)
	}

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     raw,
		RefreshExpiresAt: rt.ExpiresAt,
		TokenType:        "Bearer",
	}, nil
}

// IssuePair creates a fresh access/refresh pair for user.
func (s *TokenService) IssuePair(ctx context.Context, user *models.User) (*TokenPair, error) {
	return s.issue(s.DB.WithContext(ctx), user)
}

// ParseAccess validates signature, algorithm and expiry.
func (s *TokenService) ParseAccess(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	return claims, nil
}

// Rotate consumes rawRefresh and returns a new pair. The conditional revoke
// makes a refresh token usable exactly once even under concurrent use.
func (s *TokenService) Rotate(ctx context.Context, rawRefresh string) (*TokenPair, *models.User, error) {
	if rawRefresh == "" {
		return nil, nil, ErrInvalidToken
	}
	hash := utils.HashToken(rawRefresh)

	var pair *TokenPair
	var user models.User
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rt models.RefreshToken
		if err := tx.Where("token_hash = ?", hash).First(&rt).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidToken
			}
			return err
		}

		now := s.now()
		res := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL AND expires_at > ?", rt.ID, now).
			Update("revoked_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidToken
		}

		if err := tx.First(&user, rt.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidToken
			}
			return err
		}

		var err error
		pair, err = s.issue(tx, &user)
		return err
	})
	if err != nil {
		return nil, nil, classifyDBError("rotate refresh token", err)
	}
	return pair, &user, nil
}

// Revoke invalidates one refresh token. Unknown tokens are not an error.
func (s *TokenService) Revoke(ctx context.Context, rawRefresh string) error {
	if rawRefresh == "" {
		return nil
	}
	err := s.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", utils.HashToken(rawRefresh)).
		Update("revoked_at", s.now()).Error
	return classifyDBError("revoke refresh token", err)
}

// RevokeAll logs the user out everywhere.
func (s *TokenService) RevokeAll(ctx context.Context, userID uint) error {
	err := s.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", s.now()).Error
	return classifyDBError("revoke refresh tokens", err)
}
