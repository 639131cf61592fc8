// ABOUTME: Encrypted credential store for gateway profiles using modernc.org/sqlite
// ABOUTME: Tokens and passwords are sealed with NaCl secretbox under a local key file

package credstore

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/nacl/secretbox"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested profile does not exist
var ErrNotFound = errors.New("profile not found")

const (
	dbFileName  = "clawlink.db"
	keyFileName = "secret.key"

	// schemaVersion is stamped into PRAGMA user_version; Open refuses a
	// database written by a newer build.
	schemaVersion = 1

	nonceSize = 24
	keySize   = 32
)

// Profile is one saved gateway login. Token and Password are encrypted at
// rest; Endpoint and Email are stored in the clear so List can show them
// without touching the key.
type Profile struct {
	Name      string
	Endpoint  string
	Email     string
	Token     string
	Password  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists credential profiles in a SQLite database next to a
// generated secretbox key file. Secret columns hold nonce-prefixed
// ciphertext; losing the key file orphans them.
type Store struct {
	db     *sql.DB
	key    *[keySize]byte
	logger *slog.Logger
}

// Open initializes the credential store under dir, creating the directory,
// the database schema, and the key file on first use. The key file is
// written with mode 0600.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "credstore")

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	key, err := loadOrCreateKey(filepath.Join(dir, keyFileName))
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, dbFileName)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &Store{
		db:     db,
		key:    key,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Debug("credential store opened", "path", path)
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS credentials (
			profile         TEXT PRIMARY KEY,
			endpoint        TEXT NOT NULL,
			email           TEXT NOT NULL DEFAULT '',
			token_cipher    BLOB,
			password_cipher BLOB,
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// runMigrations brings an existing database up to schemaVersion. Safe to run
// multiple times; the version in PRAGMA user_version gates each step.
func (s *Store) runMigrations() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	switch {
	case version == schemaVersion:
		return nil
	case version > schemaVersion:
		return fmt.Errorf("database schema version %d is newer than this build supports (%d)", version, schemaVersion)
	}

	// Version 0 is a fresh database, or one from before versioning; either
	// way createSchema already brought it to the current shape.
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("stamping schema version: %w", err)
	}

	s.logger.Debug("stamped schema version", "from", version, "to", schemaVersion)
	return nil
}

// Save upserts a profile. An existing profile with the same name is
// replaced wholesale, including cleared fields.
func (s *Store) Save(ctx context.Context, p *Profile) error {
	if p.Name == "" {
		return fmt.Errorf("profile name is required")
	}

	tokenCipher, err := s.seal(p.Token)
	if err != nil {
		return fmt.Errorf("sealing token: %w", err)
	}
	passwordCipher, err := s.seal(p.Password)
	if err != nil {
		return fmt.Errorf("sealing password: %w", err)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO credentials (profile, endpoint, email, token_cipher, password_cipher, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(profile) DO UPDATE SET
			endpoint = excluded.endpoint,
			email = excluded.email,
			token_cipher = excluded.token_cipher,
			password_cipher = excluded.password_cipher,
			updated_at = excluded.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		p.Name,
		p.Endpoint,
		p.Email,
		tokenCipher,
		passwordCipher,
		now.Format(time.RFC3339),
		now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}

	s.logger.Debug("saved credential profile", "profile", p.Name, "endpoint", p.Endpoint)
	return nil
}

// Load retrieves a profile by name with its secrets decrypted.
// Returns ErrNotFound if the profile doesn't exist.
func (s *Store) Load(ctx context.Context, name string) (*Profile, error) {
	query := `
		SELECT profile, endpoint, email, token_cipher, password_cipher, created_at, updated_at
		FROM credentials
		WHERE profile = ?
	`

	var p Profile
	var tokenCipher, passwordCipher []byte
	var createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx, query, name).Scan(
		&p.Name,
		&p.Endpoint,
		&p.Email,
		&tokenCipher,
		&passwordCipher,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying profile: %w", err)
	}

	if p.Token, err = s.open(tokenCipher); err != nil {
		return nil, fmt.Errorf("opening token for profile %q: %w", name, err)
	}
	if p.Password, err = s.open(passwordCipher); err != nil {
		return nil, fmt.Errorf("opening password for profile %q: %w", name, err)
	}

	p.CreatedAt = parseTimestamp(createdAt, name, "created_at", s.logger)
	p.UpdatedAt = parseTimestamp(updatedAt, name, "updated_at", s.logger)
	return &p, nil
}

// Delete removes a profile. Returns ErrNotFound if it doesn't exist.
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE profile = ?`, name)
	if err != nil {
		return fmt.Errorf("deleting profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted credential profile", "profile", name)
	return nil
}

// List returns all profiles ordered by name. Secret fields are left empty;
// use Load to decrypt a specific profile.
func (s *Store) List(ctx context.Context) ([]*Profile, error) {
	query := `
		SELECT profile, endpoint, email, created_at, updated_at
		FROM credentials
		ORDER BY profile
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*Profile
	for rows.Next() {
		var p Profile
		var createdAt, updatedAt string
		if err := rows.Scan(&p.Name, &p.Endpoint, &p.Email, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning profile row: %w", err)
		}
		p.CreatedAt = parseTimestamp(createdAt, p.Name, "created_at", s.logger)
		p.UpdatedAt = parseTimestamp(updatedAt, p.Name, "updated_at", s.logger)
		profiles = append(profiles, &p)
	}
	return profiles, rows.Err()
}

func parseTimestamp(value, profile, column string, logger *slog.Logger) time.Time {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		logger.Warn("failed to parse profile timestamp", "profile", profile, "column", column, "error", err)
		return time.Time{}
	}
	return parsed
}

// seal encrypts plain under the store key with a fresh random nonce
// prepended to the ciphertext. Empty strings seal to nil so absent secrets
// stay absent.
func (s *Store) seal(plain string) ([]byte, error) {
	if plain == "" {
		return nil, nil
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], []byte(plain), &nonce, s.key), nil
}

// open reverses seal.
func (s *Store) open(cipher []byte) (string, error) {
	if len(cipher) == 0 {
		return "", nil
	}
	if len(cipher) < nonceSize {
		return "", errors.New("ciphertext shorter than nonce")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], cipher[:nonceSize])
	plain, ok := secretbox.Open(nil, cipher[nonceSize:], &nonce, s.key)
	if !ok {
		return "", errors.New("ciphertext did not open; was the key file replaced?")
	}
	return string(plain), nil
}

// loadOrCreateKey reads the 32-byte secretbox key, generating and persisting
// a new one on first use.
func loadOrCreateKey(path string) (*[keySize]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != keySize {
			return nil, fmt.Errorf("key file %s holds %d bytes, want %d", path, len(data), keySize)
		}
		key := new([keySize]byte)
		copy(key[:], data)
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading key file: %w", err)
	}

	key := new([keySize]byte)
	if _, err := rand.Read(key[:]); err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	if err := os.WriteFile(path, key[:], 0600); err != nil {
		return nil, fmt.Errorf("writing key file: %w", err)
	}
	return key, nil
}
