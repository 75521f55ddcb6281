package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lueurxax/feedpulse/internal/core/domain"
	apperrors "github.com/lueurxax/feedpulse/internal/core/errors"
)

const defaultTopLimit = 10

func newTopCmd() *cobra.Command {
	var (
		kind   string
		window string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "top",
		Short: "Print the highest ranked messages or topics of a window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if kind != domain.EntityMessage && kind != domain.EntityTopic {
				return fmt.Errorf("%w: --kind must be %s or %s", apperrors.ErrInvalidInput, domain.EntityMessage, domain.EntityTopic)
			}

			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			entries, err := e.database.TopRankings(cmd.Context(), kind, window, limit)
			if err != nil {
				return err
			}

			return printRankings(cmd.OutOrStdout(), entries)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", domain.EntityMessage, "entity kind: message or topic")
	cmd.Flags().StringVar(&window, "window", "24h", "ranking window name")
	cmd.Flags().IntVar(&limit, "limit", defaultTopLimit, "number of rows")

	return cmd
}

func printRankings(out io.Writer, entries []domain.RankingEntry) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	if _, err := fmt.Fprintln(w, "RANK\tKIND\tID\tSCORE\tINDEXED"); err != nil {
		return err
	}

	for i, e := range entries {
		if _, err := fmt.Fprintf(w, "%d\t%s\t%d\t%.4f\t%s\n",
			i+1, e.EntityKind, e.EntityID, e.Score, e.Indexed.UTC().Format(time.RFC3339)); err != nil {
			return err
		}
	}

	return w.Flush()
}
