package admin

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	// DefaultUser and DefaultPassword are the built-in admin credentials
	DefaultUser     = "admin"
	DefaultPassword = "plaza2025"

	// DefaultAuthFile holds "username:argon2id-hash" when present
	DefaultAuthFile = "auth.secret"
)

// Argon2id parameters (OWASP recommended)
const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4
	argon2KeyLen  = 32
	saltLen       = 16
)

// Credentials checks a username and password pair
type Credentials interface {
	Verify(user, password string) bool
	User() string
}

// PlainCredentials compares against a fixed pair
type PlainCredentials struct {
	Username string
	Password string
}

// DefaultCredentials returns admin / plaza2025
func DefaultCredentials() PlainCredentials {
	return PlainCredentials{Username: DefaultUser, Password: DefaultPassword}
}

// Verify implements Credentials
func (c PlainCredentials) Verify(user, password string) bool {
	userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(c.Username)) == 1
	passMatch := subtle.ConstantTimeCompare([]byte(password), []byte(c.Password)) == 1
	return userMatch && passMatch
}

// User implements Credentials
func (c PlainCredentials) User() string { return c.Username }

// HashedCredentials compares against an Argon2id hash
type HashedCredentials struct {
	Username string
	Hash     string
}

// Verify implements Credentials
func (c HashedCredentials) Verify(user, password string) bool {
	if subtle.ConstantTimeCompare([]byte(user), []byte(c.Username)) != 1 {
		return false
	}
	ok, err := VerifyPassword(password, c.Hash)
	return err == nil && ok
}

// User implements Credentials
func (c HashedCredentials) User() string { return c.Username }

// LoadAuthFile reads a "username:hash" file
func LoadAuthFile(path string) (HashedCredentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return HashedCredentials{}, fmt.Errorf("failed to read auth file: %w", err)
	}

	line := strings.TrimSpace(string(data))
	user, hash, ok := strings.Cut(line, ":")
	if !ok || user == "" || hash == "" {
		return HashedCredentials{}, fmt.Errorf("invalid auth file format (expected: username:hash)")
	}
	return HashedCredentials{Username: user, Hash: hash}, nil
}

// WriteAuthFile stores username and the Argon2id hash of password at path
// with mode 0400. An existing file is replaced only when overwrite is set.
func WriteAuthFile(path, username, password string, overwrite bool) error {
	if _, err := os.Stat(path); err == nil {
		if !overwrite {
			return fmt.Errorf("auth file already exists: %s", path)
		}
		// 0400 files cannot be truncated in place
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove existing auth file: %w", err)
		}
	}

	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	content := fmt.Sprintf("%s:%s\n", username, hash)
	if err := os.WriteFile(path, []byte(content), 0400); err != nil {
		return fmt.Errorf("failed to write auth file: %w", err)
	}
	return nil
}

// HashPassword creates an Argon2id hash of the password
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$salt$hash
	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argon2Memory, argon2Time, argon2Threads, b64Salt, b64Hash), nil
}

// VerifyPassword checks a password against an Argon2id hash
func VerifyPassword(password, hash string) (bool, error) {
	parts := strings.Split(hash, "$")
	if len(parts) != 6 {
		return false, fmt.Errorf("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return false, fmt.Errorf("not an argon2id hash")
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false, fmt.Errorf("failed to parse hash parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("failed to decode salt: %w", err)
	}
	decoded, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("failed to decode hash: %w", err)
	}

	computed := argon2.IDKey([]byte(password), salt, iterations, memory, uint8(threads), uint32(len(decoded)))
	return subtle.ConstantTimeCompare(decoded, computed) == 1, nil
}
