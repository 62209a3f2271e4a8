package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vstore/internal/errors"
	"github.com/vango-dev/vstore/pkg/demo"
)

func (c *cli) inspectCmd() *cobra.Command {
	var compact bool

	cmd := &cobra.Command{
		Use:   "inspect [store...]",
		Short: "Print store snapshots as JSON",
		Long: `Print the snapshot of each named store, or of every store when no
name is given. Persisted stores are read back from the configured backend.

Examples:
  vstore inspect
  vstore inspect theme --backend=file
  vstore inspect cart counter --compact`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Log, c.stderr)

			inst, err := openInstance(cmd.Context(), cfg, logger, nil)
			if err != nil {
				return err
			}
			defer inst.Close()

			names := args
			if len(names) == 0 {
				names = inst.app.StoreNames()
			}
			snaps := make([]demo.Snapshot, 0, len(names))
			for _, name := range names {
				b, ok := inst.app.Binding(name)
				if !ok {
					return errors.New("E401").WithSubject(name)
				}
				snaps = append(snaps, b.Snapshot())
			}

			enc := json.NewEncoder(c.stdout)
			if !compact {
				enc.SetIndent("", "  ")
			}
			if len(args) == 1 {
				return enc.Encode(snaps[0])
			}
			return enc.Encode(snaps)
		},
	}

	cmd.Flags().BoolVar(&compact, "compact", false, "Print one line per document")

	return cmd
}
