package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"toastd/internal/config"
)

func validateCmd(cfgPath *string) *cobra.Command {
	var printCfg bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a config file and print the resolved policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewManager(*cfgPath).Load()
			if err != nil {
				return err
			}
			p, err := cfg.ToastPolicy()
			if err != nil {
				return err
			}
			rs, err := cfg.ReminderSet()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if printCfg {
				b, err := config.Encode(*cfgPath, cfg)
				if err != nil {
					return err
				}
				_, err = out.Write(b)
				return err
			}
			fmt.Fprintf(out, "config ok: %s\n", *cfgPath)
			fmt.Fprintf(out, "  minimum_interval:        %s\n", p.MinimumInterval)
			fmt.Fprintf(out, "  max_queue_size:          %d\n", p.MaxQueueSize)
			fmt.Fprintf(out, "  coalescing_window:       %s\n", p.CoalescingWindow)
			fmt.Fprintf(out, "  persist_critical_toasts: %t\n", p.PersistCriticalToasts)
			fmt.Fprintf(out, "  respect_low_power_mode:  %t\n", p.RespectLowPowerMode)
			fmt.Fprintf(out, "  http:                    %t (%s)\n", cfg.HTTP.Enabled, cfg.HTTPAddr())
			fmt.Fprintf(out, "  telegram:                %t\n", cfg.Telegram != nil)
			fmt.Fprintf(out, "  reminders:               %d (enabled=%t, tz=%s)\n", len(rs.Reminders), rs.Enabled, rs.Location)
			return nil
		},
	}
	cmd.Flags().BoolVar(&printCfg, "print", false, "print the decoded config instead of a summary")
	return cmd
}
