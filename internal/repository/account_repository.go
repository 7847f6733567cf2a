package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"rconhub/internal/microservices/rcon"
	"rconhub/internal/models"
)

// AccountRepository is the gorm-backed account store. It serves both
// name-based authentication and the ban commands.
type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Migrate creates or updates the accounts table.
func (r *AccountRepository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&models.Account{})
}

// Create inserts a new account with a hashed password.
func (r *AccountRepository) Create(ctx context.Context, username, password string, privilege int) (*models.Account, error) {
	acc := &models.Account{Username: username, Privilege: privilege}
	if err := acc.SetPassword(password); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(acc).Error; err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return acc, nil
}

// FindByUsername returns the account or an error wrapping
// rcon.ErrUnknownAccount.
func (r *AccountRepository) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	var acc models.Account
	err := r.db.WithContext(ctx).
		Where("username = ?", models.NormalizeUsername(username)).
		First(&acc).Error
	if err != nil {
		// never hand back a zero-value account
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", rcon.ErrUnknownAccount, username)
		}
		return nil, err
	}
	return &acc, nil
}

// Lookup implements rcon.IdentityStore.
func (r *AccountRepository) Lookup(ctx context.Context, name string) (rcon.Identity, error) {
	acc, err := r.FindByUsername(ctx, name)
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// SetPassword replaces an account's password.
func (r *AccountRepository) SetPassword(ctx context.Context, username, password string) error {
	acc, err := r.FindByUsername(ctx, username)
	if err != nil {
		return err
	}
	if err := acc.SetPassword(password); err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return r.db.WithContext(ctx).Model(acc).Update("password_hash", acc.PasswordHash).Error
}

// TouchLogin records a successful login.
func (r *AccountRepository) TouchLogin(ctx context.Context, username string) error {
	return r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("username = ?", models.NormalizeUsername(username)).
		Update("last_login", time.Now()).Error
}

// ListBanned implements rcon.BanManager.
func (r *AccountRepository) ListBanned(ctx context.Context) ([]rcon.BanRecord, error) {
	var accounts []models.Account
	if err := r.db.WithContext(ctx).
		Where("banned = ?", true).
		Order("username").
		Find(&accounts).Error; err != nil {
		return nil, err
	}

	records := make([]rcon.BanRecord, 0, len(accounts))
	for i := range accounts {
		records = append(records, banRecord(&accounts[i]))
	}
	return records, nil
}

// BanInfo implements rcon.BanManager.
func (r *AccountRepository) BanInfo(ctx context.Context, name string) (*rcon.BanRecord, error) {
	acc, err := r.FindByUsername(ctx, name)
	if err != nil {
		return nil, err
	}
	if !acc.Banned {
		return nil, nil
	}
	rec := banRecord(acc)
	return &rec, nil
}

// Ban implements rcon.BanManager.
func (r *AccountRepository) Ban(ctx context.Context, name, reason, bannedBy string) error {
	now := time.Now()
	return r.updateBan(ctx, name, map[string]any{
		"banned":     true,
		"ban_reason": reason,
		"banned_by":  bannedBy,
		"banned_at":  &now,
	})
}

// Unban implements rcon.BanManager.
func (r *AccountRepository) Unban(ctx context.Context, name string) error {
	return r.updateBan(ctx, name, map[string]any{
		"banned":     false,
		"ban_reason": "",
		"banned_by":  "",
		"banned_at":  nil,
	})
}

func (r *AccountRepository) updateBan(ctx context.Context, name string, fields map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("username = ?", models.NormalizeUsername(name)).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", rcon.ErrUnknownAccount, name)
	}
	return nil
}

func banRecord(acc *models.Account) rcon.BanRecord {
	rec := rcon.BanRecord{
		Name:     acc.Username,
		Reason:   acc.BanReason,
		BannedBy: acc.BannedBy,
	}
	if acc.BannedAt != nil {
		rec.BannedAt = *acc.BannedAt
	}
	return rec
}
