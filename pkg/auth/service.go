package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/example/tablepos/pkg/errs"
	"github.com/example/tablepos/pkg/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

type Session struct {
	Token      string             `json:"token"`
	ExpiresAt  int64              `json:"expires_at"`
	Credential *models.Credential `json:"user"`
}

type Service struct {
	db     *gorm.DB
	issuer *Issuer
	logger *zap.Logger
}

func NewService(db *gorm.DB, issuer *Issuer, logger *zap.Logger) *Service {
	return &Service{db: db, issuer: issuer, logger: logger}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register stores a new staff credential with a bcrypt hash of password.
func (s *Service) Register(ctx context.Context, email, password string, role models.Role) (*models.Credential, error) {
	email = normalizeEmail(email)
	if email == "" || len(password) < 8 {
		return nil, errs.E(errs.KindInvalid, "register", errors.New("email and a password of at least 8 characters are required"))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errs.Write("register", err)
	}

	cred := &models.Credential{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.db.WithContext(ctx).Create(cred).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errs.E(errs.KindConflict, "register", errors.New("email already registered"))
		}
		return nil, errs.Write("register", err)
	}

	s.logger.Info("Registered staff credential", zap.String("email", email), zap.String("role", string(role)))
	return cred, nil
}

// Login checks the password and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	var cred models.Credential
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.E(errs.KindMissingIdentity, "login", ErrInvalidCredentials)
	}
	if err != nil {
		return nil, errs.Fetch("login", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("Failed login attempt", zap.String("email", cred.Email))
		return nil, errs.E(errs.KindMissingIdentity, "login", ErrInvalidCredentials)
	}

	token, expires, err := s.issuer.Issue(&cred)
	if err != nil {
		return nil, errs.E(errs.KindWrite, "login", err)
	}
	return &Session{Token: token, ExpiresAt: expires.Unix(), Credential: &cred}, nil
}

// Seed creates the first admin credential unless one with that email exists.
// An empty email or password skips seeding.
func (s *Service) Seed(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		s.logger.Warn("Skipping admin seed: bootstrap email or password not set")
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Credential{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return errs.Fetch("seed admin", err)
	}
	if count > 0 {
		return nil
	}

	_, err := s.Register(ctx, email, password, models.RoleAdmin)
	return err
}
