package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/zihaowei/bilipanel/internal/domain/model"
	"github.com/zihaowei/bilipanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CookieStore = (*CookieRepo)(nil)

const (
	// defaultCookieTTL is how long a saved cookie is considered usable.
	// bilibili session cookies live for roughly a month.
	defaultCookieTTL = 30 * 24 * time.Hour

	// defaultRenewWindow is the remaining lifetime under which GetValid
	// starts reporting the cookie as close to expiry.
	defaultRenewWindow = 72 * time.Hour
)

// CookieRepo is the SQLite implementation of the CookieStore port interface.
// Cookie values are encrypted with AES-256-GCM before write and decrypted
// after read. The table holds at most one row; Save replaces it.
type CookieRepo struct {
	db          *DB
	key         []byte // 32-byte AES-256 key
	ttl         time.Duration
	renewWindow time.Duration
	now         func() time.Time
}

// NewCookieRepo creates a new CookieRepo. key must be 32 bytes for
// AES-256-GCM.
func NewCookieRepo(db *DB, key []byte) (*CookieRepo, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("cookie encryption key must be 32 bytes, got %d", len(key))
	}
	return &CookieRepo{
		db:          db,
		key:         key,
		ttl:         defaultCookieTTL,
		renewWindow: defaultRenewWindow,
		now:         time.Now,
	}, nil
}

// Save stores the cookie, replacing any previously stored one, with a fresh
// expiry window.
func (r *CookieRepo) Save(ctx context.Context, raw string) error {
	encrypted, err := r.encrypt(raw)
	if err != nil {
		return err
	}

	now := r.now().UTC()

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save cookie: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cookies`); err != nil {
		return fmt.Errorf("replace cookie: %w", err)
	}

	const query = `INSERT INTO cookies (value, saved_at, expires_at) VALUES (?, ?, ?)`
	if _, err := tx.ExecContext(ctx, query, encrypted, formatTime(now), formatTime(now.Add(r.ttl))); err != nil {
		return fmt.Errorf("save cookie: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save cookie: %w", err)
	}
	return nil
}

// GetValid returns the stored cookie if it has not expired, along with a flag
// indicating it is inside the renewal window. Returns (nil, false, nil) when
// no usable cookie exists.
func (r *CookieRepo) GetValid(ctx context.Context) (*model.StoredCookie, bool, error) {
	const query = `SELECT value, saved_at, expires_at FROM cookies ORDER BY id DESC LIMIT 1`

	var encrypted, savedAt, expiresAt string
	err := r.db.Reader.QueryRowContext(ctx, query).Scan(&encrypted, &savedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cookie: %w", err)
	}

	stored := &model.StoredCookie{}
	if stored.SavedAt, err = parseTime(savedAt); err != nil {
		return nil, false, fmt.Errorf("parse saved_at: %w", err)
	}
	if stored.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, false, fmt.Errorf("parse expires_at: %w", err)
	}

	now := r.now().UTC()
	if !stored.ExpiresAt.After(now) {
		return nil, false, nil
	}

	if stored.Value, err = r.decrypt(encrypted); err != nil {
		return nil, false, fmt.Errorf("decrypt cookie: %w", err)
	}

	nearExpiry := stored.ExpiresAt.Sub(now) < r.renewWindow
	return stored, nearExpiry, nil
}

// Clear removes all stored cookies.
func (r *CookieRepo) Clear(ctx context.Context) error {
	if _, err := r.db.Writer.ExecContext(ctx, `DELETE FROM cookies`); err != nil {
		return fmt.Errorf("clear cookies: %w", err)
	}
	return nil
}

// encrypt encrypts plaintext using AES-256-GCM and returns a base64-encoded
// string containing the nonce (12 bytes) prepended to the ciphertext.
func (r *CookieRepo) encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts a base64-encoded AES-256-GCM ciphertext.
func (r *CookieRepo) decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}

	return string(plaintext), nil
}
