package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"exportmap/pkg/model"
	"exportmap/pkg/normalize"
)

// normalizeOutput is what the normalize command prints.
type normalizeOutput struct {
	Rows    int                        `json:"rows"`
	Dropped int                        `json:"dropped"`
	Singles []model.SingleSectorStory  `json:"singles"`
	Multis  []model.MultiSectorCountry `json:"multis"`
}

func newNormalizeCmd() *cobra.Command {
	var (
		seed      uint64
		timeframe string
	)
	cmd := &cobra.Command{
		Use:   "normalize <rows.json>",
		Short: "Print the stories and countries built from a rows file",
		Long: "Reads a JSON array of table rows (snake_case or camelCase columns) and prints\n" +
			"the normalized single-sector stories and multi-sector countries.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read rows: %w", err)
			}
			rows := normalize.DecodeRows(data)
			if len(rows) == 0 {
				return fmt.Errorf("%s: no rows found", args[0])
			}

			opts := []normalize.Option{normalize.WithSeed(seed)}
			if timeframe != "" {
				opts = append(opts, normalize.WithTimeframe(timeframe))
			}
			res := normalize.New(opts...).Normalize(rows)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(normalizeOutput{
				Rows:    len(rows),
				Dropped: res.Dropped,
				Singles: res.Singles,
				Multis:  res.Multis,
			})
		},
	}
	cmd.Flags().Uint64Var(&seed, "seed", 0, "narrative template seed")
	cmd.Flags().StringVar(&timeframe, "timeframe", "", "timeframe label, e.g. 1995-2022")
	return cmd
}
