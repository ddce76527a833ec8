package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"room-booking/models"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 8

// UserService is the User Directory. Password hashes never leave it.
type UserService struct {
	DB         *gorm.DB
	BcryptCost int
	Logger     zerolog.Logger

	dummyHash []byte
}

func NewUserService(db *gorm.DB, bcryptCost int, logger *zerolog.Logger) *UserService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	// Compared against when the email is unknown so both paths cost one bcrypt run.
	dummy, err := bcrypt.GenerateFromPassword([]byte("placeholder-password-for-timing"), bcryptCost)
	if err != nil {
		dummy, _ = bcrypt.GenerateFromPassword([]byte("placeholder-password-for-timing"), bcrypt.DefaultCost)
	}
	return &UserService{
		DB:         db,
		BcryptCost: bcryptCost,
		Logger:     logger.With().Str("component", "users").Logger(),
		dummyHash:  dummy,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return validationError("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return validationError("email is not a valid address")
	}
	return nil
}

func (s *UserService) create(ctx context.Context, email, name, password, role string) (*models.User, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, validationError("password must be at least %d characters", minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.BcryptCost)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.DB.WithContext(ctx).Create(&user).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, ErrEmailTaken
		}
		return nil, classifyDBError("create user", err)
	}
	return &user, nil
}

// Register creates a regular user account.
func (s *UserService) Register(ctx context.Context, email, name, password string) (*models.User, error) {
	return s.create(ctx, email, name, password, models.RoleUser)
}

// Authenticate always runs exactly one bcrypt comparison, whether or not the
// email exists, and reports both failures as ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, classifyDBError("find user", err)
	}

	hash := s.dummyHash
	found := err == nil
	if found {
		hash = []byte(user.PasswordHash)
	}

	if cmpErr := bcrypt.CompareHashAndPassword(hash, []byte(password)); cmpErr != nil || !found {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

func (s *UserService) FindUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, classifyDBError("find user", err)
	}
	return &user, nil
}

// EnsureAdmin creates the configured admin account, or promotes an existing
// account with that email. The password of an existing account is untouched.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, nil
	}

	var user models.User
	err := s.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error
	switch {
	case err == nil:
		if user.Role != models.RoleAdmin {
			if err := s.DB.WithContext(ctx).Model(&user).Update("role", models.RoleAdmin).Error; err != nil {
				return nil, classifyDBError("promote admin", err)
			}
			s.Logger.Info().Uint("user_id", user.ID).Msg("existing user promoted to admin")
		}
		return &user, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		created, cErr := s.create(ctx, email, "Administrator", password, models.RoleAdmin)
		if cErr != nil {
			return nil, cErr
		}
		s.Logger.Info().Uint("user_id", created.ID).Msg("admin account created")
		return created, nil
	default:
		return nil, classifyDBError("find admin", err)
	}
}
