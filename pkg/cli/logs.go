package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/getmockd/apidiag/pkg/apilog"
	"github.com/getmockd/apidiag/pkg/cli/internal/output"
	"github.com/getmockd/apidiag/pkg/inspect"
)

var (
	logsFilter  string
	logsURLGlob string
	logsLimit   int

	exportFormat string
	exportOutput string

	clearYes bool
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Inspect captured API calls",
}

var logsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List captured calls, most recent first",
	Example: `  apidiag logs list
  apidiag logs list --filter 'status >= 500 || retries > 0'
  apidiag logs list --url '/v1/users/**' -n 5`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := inspect.CompileFilter(logsFilter, logsURLGlob)
		if err != nil {
			return err
		}
		return withStore(cmd.Context(), func(store *apilog.Store) error {
			entries := filter.Apply(store.Logs())
			if logsLimit > 0 && len(entries) > logsLimit {
				entries = entries[:logsLimit]
			}
			summaries := inspect.Summaries(entries)

			printResult(cmd, summaries, func() {
				if len(summaries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No captured calls.")
					return
				}
				tw := output.Table(cmd.OutOrStdout())
				fmt.Fprintln(tw, "ID\tTIME\tMETHOD\tSTATUS\tDURATION\tRETRIES\tURL")
				for _, s := range summaries {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
						shortID(s.ID),
						s.Timestamp.Local().Format(time.TimeOnly),
						s.Method,
						statusLabel(s),
						durationLabel(s.DurationMs),
						s.Retries,
						output.Truncate(s.URL, 60),
					)
				}
				_ = tw.Flush()
			})
			return nil
		})
	},
}

func statusLabel(s inspect.Summary) string {
	switch {
	case s.State == inspect.StatePending:
		return "pending"
	case s.Status == 0:
		return "error"
	default:
		return strconv.Itoa(s.Status)
	}
}

func durationLabel(ms *int64) string {
	if ms == nil {
		return "-"
	}
	return (time.Duration(*ms) * time.Millisecond).String()
}

var logsShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one captured call (ID or unique ID prefix)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(store *apilog.Store) error {
			e, err := findEntry(store, args[0])
			if err != nil {
				return err
			}
			printResult(cmd, e, func() {
				printEntry(cmd.OutOrStdout(), e)
			})
			return nil
		})
	},
}

func printEntry(w io.Writer, e apilog.Entry) {
	s := inspect.Summarize(e)
	fmt.Fprintf(w, "ID:        %s\n", e.ID)
	fmt.Fprintf(w, "Time:      %s\n", e.Timestamp.Local().Format(time.RFC3339))
	fmt.Fprintf(w, "Request:   %s %s\n", e.Request.Method, inspect.RequestURL(e.Request))
	fmt.Fprintf(w, "State:     %s (%s)\n", s.State, statusLabel(s))
	fmt.Fprintf(w, "Duration:  %s\n", durationLabel(e.DurationMs))
	fmt.Fprintf(w, "Retries:   %d\n", e.Retries)
	if e.Error != nil {
		fmt.Fprintf(w, "Error:     %s\n", e.Error.Message)
	}
	printHeaders(w, "Request headers", e.Request.Headers)
	printBody(w, "Request body", e.Request.Body)

	resp := e.Response
	if resp == nil && e.Error != nil {
		resp = e.Error.Response
	}
	if resp != nil {
		printHeaders(w, "Response headers", resp.Headers)
		printBody(w, "Response body", resp.Data)
	}
}

func printHeaders(w io.Writer, title string, h map[string]string) {
	if len(h) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	names := make([]string, 0, len(h))
	for k := range h {
		names = append(names, k)
	}
	sort.Strings(names)
	tw := output.Table(w)
	for _, k := range names {
		fmt.Fprintf(tw, "  %s:\t%s\n", k, h[k])
	}
	_ = tw.Flush()
}

func printBody(w io.Writer, title string, b apilog.Body) {
	if b.IsNull() {
		return
	}
	fmt.Fprintf(w, "\n%s (%s):\n", title, b.Kind())
	if v, ok := b.Decode(); ok {
		_ = output.JSON(w, v)
		return
	}
	fmt.Fprintln(w, b.String())
}

var logsCurlCmd = &cobra.Command{
	Use:   "curl ID",
	Short: "Print a replayable curl command for a captured call",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(store *apilog.Store) error {
			e, err := findEntry(store, args[0])
			if err != nil {
				return err
			}
			curl := inspect.CURL(e.Request)
			printResult(cmd, map[string]string{"id": e.ID, "curl": curl}, func() {
				fmt.Fprintln(cmd.OutOrStdout(), curl)
			})
			return nil
		})
	},
}

var logsTimelineCmd = &cobra.Command{
	Use:   "timeline ID",
	Short: "Show the attempts of a captured call",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(store *apilog.Store) error {
			e, err := findEntry(store, args[0])
			if err != nil {
				return err
			}
			items := inspect.Timeline(e)
			printResult(cmd, items, func() {
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No attempts recorded.")
					return
				}
				tw := output.Table(cmd.OutOrStdout())
				fmt.Fprintln(tw, "#\tAT\tDURATION\tSTATUS\tCLASS\tDETAIL")
				for _, it := range items {
					status := "-"
					if it.Status != 0 {
						status = strconv.Itoa(it.Status)
					}
					fmt.Fprintf(tw, "%d\t+%dms\t%dms\t%s\t%s\t%s\n",
						it.Attempt, it.OffsetMs, it.DurationMs, status, it.Class, output.Truncate(it.Message, 50))
				}
				_ = tw.Flush()
			})
			return nil
		})
	},
}

var logsExtractCmd = &cobra.Command{
	Use:     "extract ID JSONPATH",
	Short:   "Query a captured call with JSONPath",
	Example: `  apidiag logs extract 3f2a '$.response.data.items[*].id'`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(store *apilog.Store) error {
			e, err := findEntry(store, args[0])
			if err != nil {
				return err
			}
			results, err := inspect.Extract(e, args[1])
			if err != nil {
				return err
			}
			return output.JSON(cmd.OutOrStdout(), results)
		})
	},
}

var logsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export captured calls as JSON or HAR",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := inspect.ParseExportFormat(exportFormat)
		if err != nil {
			return err
		}
		return withStore(cmd.Context(), func(store *apilog.Store) error {
			entries := store.Logs()
			if exportOutput == "" || exportOutput == "-" {
				return inspect.Export(cmd.OutOrStdout(), format, entries, Version)
			}
			if err := writeExportFile(exportOutput, format, entries); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d entries to %s\n", len(entries), exportOutput)
			return nil
		})
	},
}

// writeExportFile writes to a temp file and renames it into place.
func writeExportFile(path string, format inspect.ExportFormat, entries []apilog.Entry) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := inspect.Export(f, format, entries, Version); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write export file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}

// confirmClear asks before deleting n entries. Replaced in tests.
var confirmClear = func(n int) (bool, error) {
	var confirmed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete all %d captured calls?", n)).
				Description("This cannot be undone.").
				Affirmative("Delete").
				Negative("Cancel").
				Value(&confirmed),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("confirmation failed (use --yes to skip): %w", err)
	}
	return confirmed, nil
}

var logsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all captured calls",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(store *apilog.Store) error {
			n := store.Count()
			if n > 0 && !clearYes {
				ok, err := confirmClear(n)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.ErrOrStderr(), "Aborted.")
					return nil
				}
			}
			store.Clear()
			printResult(cmd, map[string]int{"cleared": n}, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d entries.\n", n)
			})
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.AddCommand(logsListCmd, logsShowCmd, logsCurlCmd, logsTimelineCmd, logsExtractCmd, logsExportCmd, logsClearCmd)

	logsListCmd.Flags().StringVar(&logsFilter, "filter", "", "Filter expression, e.g. 'status >= 500'")
	logsListCmd.Flags().StringVar(&logsURLGlob, "url", "", "Glob over the URL path, e.g. '/v1/**'")
	logsListCmd.Flags().IntVarP(&logsLimit, "limit", "n", 0, "Maximum number of entries to show (0 = all)")

	logsExportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "Export format (json, har)")
	logsExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")

	logsClearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "Skip confirmation")
}
