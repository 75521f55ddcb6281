package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	apperrors "github.com/lueurxax/feedpulse/internal/core/errors"
)

func newSubscribeCmd() *cobra.Command {
	var (
		accountID int64
		channels  []string
	)

	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Subscribe an account to channels",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if accountID <= 0 || len(channels) == 0 {
				return fmt.Errorf("%w: --account and at least one --channel are required", apperrors.ErrInvalidInput)
			}

			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.database.SubscribeChannels(cmd.Context(), accountID, channels); err != nil {
				return err
			}

			e.logger.Info().Int64("account_id", accountID).Strs("channels", channels).Msg("subscriptions added")

			return nil
		},
	}

	cmd.Flags().Int64Var(&accountID, "account", 0, "account id")
	cmd.Flags().StringSliceVar(&channels, "channel", nil, "channel username (repeatable)")

	return cmd
}
