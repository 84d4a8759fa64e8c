package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/example/tablepos/pkg/errs"
	"github.com/example/tablepos/pkg/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var phonePattern = regexp.MustCompile(`^[0-9+]{8,}$`)

// NormalizePhone trims the number and checks it looks like a phone number.
func NormalizePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if !phonePattern.MatchString(phone) {
		return "", errs.E(errs.KindInvalid, "validate phone", fmt.Errorf("%w: %q", errs.ErrInvalidPhone, phone))
	}
	return phone, nil
}

// UserRepository resolves the user row an order is attributed to: staff by
// their auth identity, guests by phone number.
type UserRepository struct {
	db     *gorm.DB
	cache  GuestCache
	logger *zap.Logger
}

func NewUserRepository(db *gorm.DB, cache GuestCache, logger *zap.Logger) *UserRepository {
	return &UserRepository{db: db, cache: cache, logger: logger}
}

// ResolveStaff returns the profile of an authenticated staff member, creating
// it on first use.
func (r *UserRepository) ResolveStaff(ctx context.Context, authID, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("auth_id = ?", authID).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.Fetch("lookup staff user", err)
	}

	user = models.User{
		ID:     uuid.NewString(),
		AuthID: &authID,
		Name:   email,
		Role:   models.RoleAdmin,
	}
	if err := r.db.WithContext(ctx).Create(&user).Error; err != nil {
		r.logger.Error("Failed to create staff user", zap.String("auth_id", authID), zap.Error(err))
		return nil, errs.Write("create staff user", err)
	}

	r.logger.Info("Created staff user", zap.String("user_id", user.ID), zap.String("auth_id", authID))
	return &user, nil
}

// LookupGuest finds a guest by phone number. found is false when no guest
// row exists yet.
func (r *UserRepository) LookupGuest(ctx context.Context, phone string) (user *models.User, found bool, err error) {
	phone, err = NormalizePhone(phone)
	if err != nil {
		return nil, false, err
	}

	if r.cache != nil {
		if cached, err := r.cache.GetGuestCache(ctx, phone); err == nil {
			return &models.User{ID: cached.ID, Name: cached.Name, PhoneNumber: &cached.Phone, Role: models.RoleGuest}, true, nil
		}
	}

	var u models.User
	err = r.db.WithContext(ctx).Where("phone_number = ?", phone).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.Fetch("lookup guest", err)
	}

	if r.cache != nil {
		if err := r.cache.CacheGuest(ctx, &CachedGuest{ID: u.ID, Name: u.Name, Phone: phone}); err != nil {
			r.logger.Warn("Failed to cache guest", zap.Error(err))
		}
	}
	return &u, true, nil
}

// UpsertGuest inserts or updates the guest row keyed by phone number. An empty
// name reuses the stored one; a new guest without a name is rejected.
func (r *UserRepository) UpsertGuest(ctx context.Context, phone, name string) (*models.User, error) {
	phone, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		existing, found, err := r.LookupGuest(ctx, phone)
		if err != nil {
			return nil, err
		}
		if !found || existing.Name == "" {
			return nil, errs.E(errs.KindInvalid, "upsert guest", errs.ErrGuestNameRequired)
		}
		name = existing.Name
	}

	guest := models.User{
		ID:          uuid.NewString(),
		PhoneNumber: &phone,
		Name:        name,
		Role:        models.RoleGuest,
	}
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "phone_number"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "role", "updated_at"}),
	}).Create(&guest).Error
	if err != nil {
		r.logger.Error("Failed to upsert guest", zap.String("phone", phone), zap.Error(err))
		return nil, errs.Write("upsert guest", err)
	}

	// on conflict the generated id was discarded; read back the stored row
	var stored models.User
	if err := r.db.WithContext(ctx).Where("phone_number = ?", phone).First(&stored).Error; err != nil {
		return nil, errs.Fetch("upsert guest", err)
	}

	if r.cache != nil {
		if err := r.cache.InvalidateGuest(ctx, phone); err != nil {
			r.logger.Warn("Failed to invalidate guest cache", zap.Error(err))
		}
	}
	return &stored, nil
}
