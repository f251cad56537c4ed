// AngelaMos | 2026
// security.go

package core

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/crypto/argon2"
)

const (
	saltLength         = 16
	refreshTokenBytes  = 32
	maxNextPathLength  = 512
	argonIDPrefix      = "$argon2id$"
	argonEncodedFields = 6
)

var errMalformedHash = errors.New("malformed password hash")

// argonParams are the cost settings stored alongside each hash. Hashes made
// with other settings verify fine and are rehashed on the next login.
type argonParams struct {
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
}

var currentArgon = argonParams{
	memory:  64 * 1024,
	time:    1,
	threads: 4,
	keyLen:  32,
}

func (p argonParams) key(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, p.keyLen)
}

func (p argonParams) encode(salt, key []byte) string {
	return fmt.Sprintf(
		"%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argonIDPrefix,
		argon2.Version,
		p.memory,
		p.time,
		p.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

// decodeHash parses "$argon2id$v=19$m=65536,t=1,p=4$salt$key".
func decodeHash(encoded string) (argonParams, []byte, []byte, error) {
	var p argonParams

	parts := strings.Split(encoded, "$")
	if len(parts) != argonEncodedFields || !strings.HasPrefix(encoded, argonIDPrefix) {
		return p, nil, nil, errMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, nil, nil, fmt.Errorf("%w: version: %w", errMalformedHash, err)
	}
	if version != argon2.Version {
		return p, nil, nil, fmt.Errorf("%w: argon2 version %d", errMalformedHash, version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return p, nil, nil, fmt.Errorf("%w: params: %w", errMalformedHash, err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, fmt.Errorf("%w: salt: %w", errMalformedHash, err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return p, nil, nil, fmt.Errorf("%w: key: %w", errMalformedHash, err)
	}

	//nolint:gosec // G115: argon2 keys are a few dozen bytes
	p.keyLen = uint32(len(key))
	return p, salt, key, nil
}

func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return currentArgon.encode(salt, currentArgon.key(password, salt)), nil
}

// VerifyPasswordWithRehash checks password against encoded. When it matches
// and the hash was made with outdated settings, a fresh hash is returned so
// the caller can store it.
func VerifyPasswordWithRehash(password, encoded string) (bool, string, error) {
	params, salt, key, err := decodeHash(encoded)
	if err != nil {
		return false, "", err
	}

	if subtle.ConstantTimeCompare(key, params.key(password, salt)) != 1 {
		return false, "", nil
	}

	if params == currentArgon {
		return true, "", nil
	}

	rehashed, err := HashPassword(password)
	if err != nil {
		//nolint:nilerr // the password matched; the upgrade can wait for the next login
		return true, "", nil
	}
	return true, rehashed, nil
}

var dummyHash = sync.OnceValue(func() string {
	hash, err := HashPassword("dummy_password_for_timing_attack_prevention")
	if err != nil {
		panic(fmt.Sprintf("security: failed to generate dummy hash: %v", err))
	}
	return hash
})

// VerifyPasswordTimingSafe runs a full argon2 derivation even when the
// account has no hash, so unknown emails and wrong passwords take the same
// time.
func VerifyPasswordTimingSafe(password string, encoded *string) (bool, string, error) {
	if encoded == nil || *encoded == "" {
		//nolint:errcheck // only the elapsed time matters here
		_, _, _ = VerifyPasswordWithRehash(password, dummyHash())
		return false, "", nil
	}
	return VerifyPasswordWithRehash(password, *encoded)
}

// GenerateRefreshToken returns an opaque token. Only its HashToken digest is
// stored.
func GenerateRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// SafeNextPath returns p when it is a same-origin absolute path that is safe
// to redirect to after login, and "" otherwise.
func SafeNextPath(p string) string {
	if p == "" || len(p) > maxNextPathLength {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		return ""
	}
	// browsers treat "//host" as a network path
	if strings.HasPrefix(p, "//") {
		return ""
	}
	for _, r := range p {
		if unicode.IsControl(r) || r == '\\' {
			return ""
		}
	}
	return p
}
