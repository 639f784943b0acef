package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"toastd/internal/config"
	"toastd/internal/storage"
	logx "toastd/pkg/logx"
)

func snapshotsCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "Inspect critical toasts persisted for the next start",
		Long: `Inspect critical toasts persisted for the next start.

Run these while the daemon is stopped; the sqlite driver tolerates a
running daemon, the file driver does not.`,
	}
	cmd.AddCommand(snapshotsListCmd(cfgPath), snapshotsClearCmd(cfgPath))
	return cmd
}

func openConfiguredStore(cfgPath string) (storage.Store, error) {
	cfg, err := config.NewManager(cfgPath).Load()
	if err != nil {
		return nil, err
	}
	sc, err := cfg.StorageOptions()
	if err != nil {
		return nil, err
	}
	st, err := storage.Open(sc, logx.Nop())
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, storage.ErrDisabled
	}
	return st, nil
}

func snapshotsListCmd(cfgPath *string) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List persisted snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openConfiguredStore(*cfgPath)
			if err != nil {
				return err
			}
			defer st.Close()
			snaps, err := st.LoadAll(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(snaps)
			}
			if len(snaps) == 0 {
				fmt.Fprintln(out, "no snapshots")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SAVED\tKIND\tPRIORITY\tDURATION\tMESSAGE")
			for _, s := range snaps {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.SavedAt.Format("2006-01-02 15:04:05"), s.Kind, s.Priority, s.Duration, s.Message)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func snapshotsClearCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every persisted snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openConfiguredStore(*cfgPath)
			if errors.Is(err, storage.ErrDisabled) {
				fmt.Fprintln(cmd.OutOrStdout(), "storage disabled; nothing to clear")
				return nil
			}
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "snapshots cleared")
			return nil
		},
	}
}
