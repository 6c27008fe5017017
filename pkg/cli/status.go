package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/getmockd/apidiag/pkg/apilog"
)

// StatusResult is the output of status, enable and disable.
type StatusResult struct {
	Enabled bool   `json:"enabled"`
	Count   int    `json:"count"`
	MaxLogs int    `json:"maxLogs"`
	Driver  string `json:"driver"`
	Path    string `json:"path,omitempty"`
}

func statusOf(store *apilog.Store) StatusResult {
	return StatusResult{
		Enabled: store.IsEnabled(),
		Count:   store.Count(),
		MaxLogs: store.MaxLogs(),
		Driver:  app.cfg.Storage.Driver,
		Path:    app.cfg.Storage.Path,
	}
}

func printStatus(cmd *cobra.Command, st StatusResult) {
	printResult(cmd, st, func() {
		state := "disabled"
		if st.Enabled {
			state = "enabled"
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Capture:  %s\n", state)
		fmt.Fprintf(out, "Entries:  %d / %d\n", st.Count, st.MaxLogs)
		if st.Path != "" {
			fmt.Fprintf(out, "Storage:  %s (%s)\n", st.Driver, st.Path)
		} else {
			fmt.Fprintf(out, "Storage:  %s\n", st.Driver)
		}
	})
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether capture is enabled and how many entries are stored",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(store *apilog.Store) error {
			printStatus(cmd, statusOf(store))
			return nil
		})
	},
}

func setEnabledCmd(use string, enabled bool, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(store *apilog.Store) error {
				store.SetEnabled(enabled)
				printStatus(cmd, statusOf(store))
				return nil
			})
		},
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(setEnabledCmd("enable", true, "Start capturing API calls"))
	rootCmd.AddCommand(setEnabledCmd("disable", false, "Stop capturing API calls (existing entries are kept)"))
}
