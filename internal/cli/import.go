package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	apperrors "github.com/lueurxax/feedpulse/internal/core/errors"
	"github.com/lueurxax/feedpulse/internal/ingest/telegram"
	"github.com/lueurxax/feedpulse/internal/vault"
)

const stdinPath = "-"

type importOptions struct {
	sessionFile string
	phone       string
	channels    []string
}

func newImportSessionCmd() *cobra.Command {
	opts := &importOptions{}

	cmd := &cobra.Command{
		Use:   "import-session",
		Short: "Encrypt a Telethon or gotd session and register it as an account",
		Long: "Reads a session (Telethon StringSession or gotd JSON) from a file or stdin, " +
			"encrypts it with the active vault key and stores it as a new active account " +
			"subscribed to the given channels.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runImportSession(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.sessionFile, "session-file", stdinPath, "path to the session, - for stdin")
	cmd.Flags().StringVar(&opts.phone, "phone", "", "phone number of the account, informational")
	cmd.Flags().StringSliceVar(&opts.channels, "channel", nil, "channel username to subscribe to (repeatable)")

	return cmd
}

func runImportSession(cmd *cobra.Command, opts *importOptions) error {
	secret, err := readSecret(opts.sessionFile, cmd.InOrStdin())
	if err != nil {
		return err
	}

	if _, err := telegram.NormalizeSession([]byte(secret)); err != nil {
		return err
	}

	ctx := cmd.Context()

	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	keys, err := vault.ParseKeyring(e.cfg.VaultKeys)
	if err != nil {
		return err
	}

	v, err := vault.New(keys, e.cfg.VaultActiveVersion)
	if err != nil {
		return err
	}

	cipher, version, err := v.EncryptString(secret)
	if err != nil {
		return err
	}

	accountID, err := e.database.RegisterAccount(ctx, cipher, version, opts.phone, opts.channels)
	if err != nil {
		return err
	}

	e.logger.Info().
		Int64("account_id", accountID).
		Int("kver", version).
		Int("channels", len(opts.channels)).
		Msg("account registered")

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d\n", accountID)

	return err
}

// readSecret reads the session from path, or from stdin when path is "-".
func readSecret(path string, stdin io.Reader) (string, error) {
	var (
		raw []byte
		err error
	)

	if path == stdinPath {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}

	if err != nil {
		return "", fmt.Errorf("read session: %w", err)
	}

	secret := strings.TrimSpace(string(raw))
	if secret == "" {
		return "", fmt.Errorf("%w: session is empty", apperrors.ErrInvalidInput)
	}

	return secret, nil
}
