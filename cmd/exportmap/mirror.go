package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"exportmap/pkg/cache"
	"exportmap/pkg/config"
	"exportmap/pkg/source"
	"exportmap/pkg/tracker"
)

// newMirrorCmd copies the remote table into the local export_rows table so
// kind: sqlite can serve without the hosted database.
func newMirrorCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Copy rows from the remote source into the local database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			appCfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if kind != "" {
				appCfg.Source.Kind = kind
			}
			if appCfg.Source.Kind == "sqlite" {
				return fmt.Errorf("mirror needs a remote source, got kind %q", appCfg.Source.Kind)
			}

			dbConn, st, err := initDB(appCfg)
			if err != nil {
				return err
			}
			defer dbConn.Close()

			rc := newRequestClient(appCfg, cache.NewMemory(), tracker.New())
			src, closeSrc, err := initSource(ctx, appCfg, rc, st)
			if err != nil {
				return err
			}
			defer closeSrc()

			n, err := source.Mirror(ctx, src, st)
			if err != nil {
				return fmt.Errorf("mirror from %s failed: %w", src.Name(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Mirrored %d rows from %s into %s\n", n, src.Name(), appCfg.DB.Path)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "from", "", "override source.kind (rest, postgres, static)")
	return cmd
}
