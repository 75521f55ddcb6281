package ports

import (
	"context"

	"github.com/lueurxax/feedpulse/internal/core/domain"
)

// Session is an authenticated connection to the remote messaging source.
type Session interface {
	// ListMessagesSince returns at most limit messages with id > cursor in
	// ascending id order. Only an empty page means the channel is exhausted;
	// a short page may follow skipped service messages.
	// Rate limiting is reported as *errors.RateLimitError.
	ListMessagesSince(ctx context.Context, channel domain.Channel, cursor int64, limit int) ([]domain.RemoteMessage, error)
	DownloadMedia(ctx context.Context, msg domain.RemoteMessage) ([]byte, error)
}

// MessageSource opens sessions for account secrets. The session is torn down
// when fn returns, whatever the outcome.
type MessageSource interface {
	WithSession(ctx context.Context, secret string, fn func(ctx context.Context, s Session) error) error
}

// ObjectStorage stores media blobs.
type ObjectStorage interface {
	Upload(ctx context.Context, path string, data []byte) error
	PublicURL(path string) string
}

// SecretOpener decrypts stored account credentials.
type SecretOpener interface {
	DecryptString(cipherB64 string, keyVersion int) (string, error)
}
