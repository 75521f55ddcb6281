package mocks

import (
	"fmt"
	"sync"
)

// SecretOpener maps stored ciphertexts to plaintext secrets.
type SecretOpener struct {
	mu      sync.Mutex
	secrets map[string]string

	// DecryptFn allows overriding DecryptString behavior.
	DecryptFn func(cipherB64 string, keyVersion int) (string, error)
}

// NewSecretOpener creates an opener with no registered secrets.
func NewSecretOpener() *SecretOpener {
	return &SecretOpener{secrets: make(map[string]string)}
}

// Register makes cipherB64 decrypt to secret.
func (o *SecretOpener) Register(cipherB64, secret string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.secrets[cipherB64] = secret
}

func (o *SecretOpener) DecryptString(cipherB64 string, keyVersion int) (string, error) {
	if o.DecryptFn != nil {
		return o.DecryptFn(cipherB64, keyVersion)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	secret, ok := o.secrets[cipherB64]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSecret, cipherB64)
	}

	return secret, nil
}
