// Package confidential implements the confidentiality provider from
// spec.md §4.O: it reads the raw secret bytes at SECRET_FILE_PATH and
// derives scoped keys (the JWT signing key, the SQL DSN credential) via
// HKDF so the raw file bytes are never used directly as a signing key.
// The teacher's own secret-handling is bcrypt for password hashes
// ([[dropped teacher dependencies]] in DESIGN.md); this domain has no
// login flow, so golang.org/x/crypto stays wired through hkdf instead.
package confidential

import (
	"crypto/sha256"
	"io"
	"os"

	"golang.org/x/crypto/hkdf"

	"ecommerce-core/internal/apperror"
)

// Provider derives scoped secrets from one master secret file.
type Provider struct {
	master []byte
}

// LoadFromFile reads the master secret from path (SECRET_FILE_PATH).
func LoadFromFile(path string) (*Provider, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperror.Wrap(apperror.MissingDataStore, "read secret file", err)
	}
	if len(raw) == 0 {
		return nil, apperror.New(apperror.EmptyInputData, "secret file is empty")
	}
	return &Provider{master: raw}, nil
}

// Derive produces an `size`-byte key scoped to `purpose` (e.g. "jwt-sign",
// "sql-dsn-credential") via HKDF-SHA256, so two purposes never share bytes
// even though they trace back to the same master secret.
func (p *Provider) Derive(purpose string, size int) ([]byte, error) {
	r := hkdf.New(sha256.New, p.master, nil, []byte(purpose))
	out := make([]byte, size)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, apperror.Wrap(apperror.IOError, "hkdf derive: "+purpose, err)
	}
	return out, nil
}

// JWTSigningKey derives the 32-byte HMAC key the auth keystore signs with.
func (p *Provider) JWTSigningKey() ([]byte, error) {
	return p.Derive("jwt-sign", 32)
}

// SQLDSNCredential derives a 24-byte value usable as a rotated-in DSN
// credential (e.g. a password component), keeping the raw secret file
// bytes out of connection strings.
func (p *Provider) SQLDSNCredential() ([]byte, error) {
	return p.Derive("sql-dsn-credential", 24)
}
