package values

import (
	"crypto/sha256"
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/atlaspay/fraud-risk-engine/internal/domain/errors"
)

// Digest represents a one-way SHA-256 digest of sensitive payment data.
// Raw payment instrument data and user agents never cross the storage
// boundary; only their digests do. A Digest can be compared for equality
// (reuse detection) but never reversed.
type Digest struct {
	hex string // lowercase hex, 64 characters
}

var sha256HexRegex = regexp.MustCompile(`^[a-f0-9]{64}$`)

// NewDigest validates and wraps an existing hex-encoded SHA-256 digest.
func NewDigest(hexDigest string) (Digest, error) {
	if hexDigest == "" {
		return Digest{}, errors.NewValidationError("EMPTY_DIGEST",
			"digest cannot be empty")
	}

	normalized := strings.ToLower(strings.TrimSpace(hexDigest))
	if !sha256HexRegex.MatchString(normalized) {
		return Digest{}, errors.NewValidationError("INVALID_DIGEST_FORMAT",
			"digest must be a 64-character hexadecimal string (SHA-256)")
	}

	return Digest{hex: normalized}, nil
}

// ComputeDigest hashes raw sensitive data into a Digest. This is the only
// path from raw instrument data into the engine.
func ComputeDigest(raw string) Digest {
	sum := sha256.Sum256([]byte(raw))
	return Digest{hex: hex.EncodeToString(sum[:])}
}

// MustNewDigest wraps NewDigest and panics on error (for tests).
func MustNewDigest(hexDigest string) Digest {
	d, err := NewDigest(hexDigest)
	if err != nil {
		panic(err)
	}
	return d
}

// String returns the hex-encoded digest.
func (d Digest) String() string {
	return d.hex
}

// IsZero reports whether the digest is unset.
func (d Digest) IsZero() bool {
	return d.hex == ""
}

// Equal compares two digests in constant structure (hex strings).
func (d Digest) Equal(other Digest) bool {
	return d.hex == other.hex
}

// MarshalText implements encoding.TextMarshaler.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.hex), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = Digest{}
		return nil
	}
	parsed, err := NewDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan implements sql.Scanner.
func (d *Digest) Scan(value interface{}) error {
	if value == nil {
		*d = Digest{}
		return nil
	}
	switch v := value.(type) {
	case string:
		return d.UnmarshalText([]byte(v))
	case []byte:
		return d.UnmarshalText(v)
	default:
		return fmt.Errorf("cannot scan %T into Digest", value)
	}
}

// Value implements driver.Valuer.
func (d Digest) Value() (driver.Value, error) {
	if d.hex == "" {
		return nil, nil
	}
	return d.hex, nil
}
