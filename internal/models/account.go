package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"rconhub/internal/middleware/auth"
)

// Account is an operator allowed to log in with a name and password.
type Account struct {
	ID           string     `gorm:"primaryKey;type:uuid" json:"id"`
	Username     string     `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string     `gorm:"column:password_hash;not null" json:"-"`
	Privilege    int        `gorm:"not null;default:1" json:"privilege"`
	Banned       bool       `gorm:"not null;default:false;index" json:"banned"`
	BanReason    string     `json:"ban_reason,omitempty"`
	BannedBy     string     `json:"banned_by,omitempty"`
	BannedAt     *time.Time `json:"banned_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// BeforeCreate assigns a UUID and normalizes the username.
func (a *Account) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.Username = NormalizeUsername(a.Username)
	return
}

func (Account) TableName() string {
	return "rcon_accounts"
}

// NormalizeUsername is the canonical form usernames are stored and looked
// up by.
func NormalizeUsername(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (a *Account) Name() string {
	return a.Username
}

// CheckPassword reports whether pw matches the stored hash.
func (a *Account) CheckPassword(pw string) bool {
	return auth.VerifyPassword(a.PasswordHash, pw) == nil
}

func (a *Account) PrivilegeLevel() int {
	return a.Privilege
}

// SetPassword replaces the stored hash.
func (a *Account) SetPassword(pw string) error {
	hash, err := auth.HashPassword(pw)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	return nil
}
