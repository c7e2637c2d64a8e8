// Package password hashes account passwords with Argon2id using the PHC
// string format ($argon2id$v=19$m=..,t=..,p=..$salt$hash).
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argonTime    uint32 = 1
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 4
	argonKeyLen  uint32 = 32
	argonSaltLen        = 16

	// unusablePrefix marks accounts that cannot log in with a password.
	unusablePrefix = "!"
)

var ErrTooShort = errors.New("password_too_short")

// Hash returns the encoded Argon2id hash. An empty password yields an
// unusable marker that never verifies.
func Hash(password string) (string, error) {
	if password == "" {
		return Unusable()
	}

	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	sum := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

// Unusable returns a random marker that no password matches.
func Unusable() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return unusablePrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

func IsUsable(encoded string) bool {
	return encoded != "" && !strings.HasPrefix(encoded, unusablePrefix)
}

// CheckLength enforces the configured minimum length. Zero disables the check.
func CheckLength(password string, minLength int) error {
	if minLength > 0 && len([]rune(password)) < minLength {
		return ErrTooShort
	}
	return nil
}

// Verify reports whether password matches the encoded hash.
func Verify(password, encoded string) bool {
	if !IsUsable(encoded) {
		return false
	}

	p, salt, sum, ok := decode(encoded)
	if !ok {
		return false
	}

	check := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, uint32(len(sum)))
	return subtle.ConstantTimeCompare(sum, check) == 1
}

type params struct {
	memory  uint32
	time    uint32
	threads uint8
}

func decode(encoded string) (params, []byte, []byte, bool) {
	var p params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" || parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return p, nil, nil, false
	}

	fields := strings.Split(parts[3], ",")
	if len(fields) != 3 {
		return p, nil, nil, false
	}
	values := make([]uint64, 3)
	for i, key := range []string{"m=", "t=", "p="} {
		raw, ok := strings.CutPrefix(fields[i], key)
		if !ok {
			return p, nil, nil, false
		}
		bits := 32
		if key == "p=" {
			bits = 8
		}
		v, err := strconv.ParseUint(raw, 10, bits)
		if err != nil {
			return p, nil, nil, false
		}
		values[i] = v
	}
	p.memory, p.time, p.threads = uint32(values[0]), uint32(values[1]), uint8(values[2])

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, false
	}
	sum, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(sum) == 0 {
		return p, nil, nil, false
	}
	return p, salt, sum, true
}
