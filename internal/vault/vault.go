// Package vault encrypts account session secrets at rest.
//
// Ciphertexts use XChaCha20-Poly1305 and are laid out as:
//
//	[Nonce: 24 bytes (random)] [Ciphertext+Tag: N+16 bytes]
//
// Every ciphertext is paired with the key version that produced it. The
// version is bound as additional authenticated data, so presenting a
// ciphertext under another provisioned version fails authentication rather
// than decrypting with the wrong key. Several versions can be valid at once;
// rotating means provisioning a new version and making it active, existing
// ciphertexts keep decrypting under their own version.
package vault

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	apperrors "github.com/lueurxax/feedpulse/internal/core/errors"
)

// KeySize is the size in bytes of a derived per-version key.
const KeySize = chacha20poly1305.KeySize

// NonceSize is the size of the random nonce prefixed to every ciphertext.
const NonceSize = chacha20poly1305.NonceSizeX

const hkdfInfoPrefix = "feedpulse.vault.key.v"

// Vault holds one AEAD per provisioned key version.
type Vault struct {
	aeads  map[int]cipher.AEAD
	active int
}

// New derives a key for every version from its passphrase and returns a vault
// encrypting with the active version.
func New(passphrases map[int]string, active int) (*Vault, error) {
	if len(passphrases) == 0 {
		return nil, fmt.Errorf("%w: no key versions configured", apperrors.ErrInvalidKey)
	}

	v := &Vault{aeads: make(map[int]cipher.AEAD, len(passphrases)), active: active}

	for version, passphrase := range passphrases {
		if version <= 0 {
			return nil, fmt.Errorf("%w: key version %d must be positive", apperrors.ErrInvalidKey, version)
		}

		if passphrase == "" {
			return nil, fmt.Errorf("%w: empty passphrase for version %d", apperrors.ErrInvalidKey, version)
		}

		key, err := deriveKey([]byte(passphrase), version)
		if err != nil {
			return nil, err
		}

		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
		}

		v.aeads[version] = aead
	}

	if _, ok := v.aeads[active]; !ok {
		return nil, fmt.Errorf("%w: active version %d", apperrors.ErrUnsupportedKeyVersion, active)
	}

	return v, nil
}

func deriveKey(material []byte, version int) ([]byte, error) {
	info := []byte(hkdfInfoPrefix + strconv.Itoa(version))

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, material, nil, info), key); err != nil {
		return nil, fmt.Errorf("deriving key for version %d: %w", version, err)
	}

	return key, nil
}

// ActiveVersion returns the version used by Encrypt.
func (v *Vault) ActiveVersion() int {
	return v.active
}

// Versions returns every provisioned version in ascending order.
func (v *Vault) Versions() []int {
	versions := make([]int, 0, len(v.aeads))
	for version := range v.aeads {
		versions = append(versions, version)
	}

	sort.Ints(versions)

	return versions
}

// Encrypt seals secret under the active key with a fresh random nonce and
// returns nonce||ciphertext together with the key version used.
func (v *Vault) Encrypt(secret []byte) ([]byte, int, error) {
	aead := v.aeads[v.active]

	nonce := make([]byte, NonceSize, NonceSize+len(secret)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, 0, fmt.Errorf("generating random nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, secret, additionalData(v.active)), v.active, nil
}

// Decrypt opens a ciphertext produced by Encrypt under keyVersion.
// It fails with ErrUnsupportedKeyVersion for unknown versions and with
// ErrAuthenticationFailure for any input that does not authenticate.
func (v *Vault) Decrypt(ciphertext []byte, keyVersion int) ([]byte, error) {
	aead, ok := v.aeads[keyVersion]
	if !ok {
		return nil, fmt.Errorf("%w: %d", apperrors.ErrUnsupportedKeyVersion, keyVersion)
	}

	if len(ciphertext) < NonceSize+aead.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext too short", apperrors.ErrAuthenticationFailure)
	}

	nonce, sealed := ciphertext[:NonceSize], ciphertext[NonceSize:]

	plaintext, err := aead.Open(nil, nonce, sealed, additionalData(keyVersion))
	if err != nil {
		return nil, fmt.Errorf("%w: version %d", apperrors.ErrAuthenticationFailure, keyVersion)
	}

	return plaintext, nil
}

// EncryptString encrypts secret and returns the base64 form stored in the database.
func (v *Vault) EncryptString(secret string) (string, int, error) {
	sealed, version, err := v.Encrypt([]byte(secret))
	if err != nil {
		return "", 0, err
	}

	return base64.StdEncoding.EncodeToString(sealed), version, nil
}

// DecryptString reverses EncryptString. Undecodable input is reported as an
// authentication failure.
func (v *Vault) DecryptString(cipherB64 string, keyVersion int) (string, error) {
	if _, ok := v.aeads[keyVersion]; !ok {
		return "", fmt.Errorf("%w: %d", apperrors.ErrUnsupportedKeyVersion, keyVersion)
	}

	raw, err := base64.StdEncoding.DecodeString(cipherB64)
	if err != nil {
		return "", fmt.Errorf("%w: malformed base64", apperrors.ErrAuthenticationFailure)
	}

	plaintext, err := v.Decrypt(raw, keyVersion)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}

func additionalData(version int) []byte {
	return []byte(hkdfInfoPrefix + strconv.Itoa(version))
}

// ParseKeyring parses "1:passphrase,2:other" into a version map.
func ParseKeyring(s string) (map[int]string, error) {
	keys := make(map[int]string)

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		rawVersion, passphrase, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("%w: key entry must be version:passphrase", apperrors.ErrInvalidKey)
		}

		version, err := strconv.Atoi(strings.TrimSpace(rawVersion))
		if err != nil {
			return nil, fmt.Errorf("%w: version %q: %w", apperrors.ErrInvalidKey, rawVersion, err)
		}

		if _, dup := keys[version]; dup {
			return nil, fmt.Errorf("%w: duplicate version %d", apperrors.ErrInvalidKey, version)
		}

		keys[version] = passphrase
	}

	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: empty keyring", apperrors.ErrInvalidKey)
	}

	return keys, nil
}
