package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/getmockd/apidiag/pkg/apilog"
	"github.com/getmockd/apidiag/pkg/cli/internal/output"
	"github.com/getmockd/apidiag/pkg/httpclient"
)

var (
	fetchMethod  string
	fetchHeaders []string
	fetchData    string
	fetchParams  []string
)

// FetchResult is the --json output of fetch.
type FetchResult struct {
	LogID    string `json:"logId,omitempty"`
	Status   int    `json:"status"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
	Body     string `json:"body,omitempty"`
}

var fetchCmd = &cobra.Command{
	Use:   "fetch URL",
	Short: "Send a request through the capturing client",
	Long: `Send an HTTP request with the configured retry policy and record it in the
capture log. Transport errors, 429 and 5xx responses are retried.`,
	Example: `  apidiag fetch https://api.example.com/v1/users
  apidiag fetch https://api.example.com/v1/login -X POST -d '{"user":"ana","password":"x"}'
  apidiag fetch https://api.example.com/v1/items -H 'Authorization: Bearer abc' --param page=2`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := buildFetchRequest(args[0])
		if err != nil {
			return err
		}
		return withStore(cmd.Context(), func(store *apilog.Store) error {
			if !store.IsEnabled() {
				output.Warn(cmd.ErrOrStderr(), "capture is disabled; run 'apidiag enable' to record this call")
			}

			client := httpclient.New(
				httpclient.WithRecorder(store),
				httpclient.WithMaxRetries(app.cfg.Retry.MaxRetries),
				httpclient.WithBackoff(app.cfg.Retry.InitialInterval, app.cfg.Retry.MaxInterval),
				httpclient.WithLogger(app.log),
			)
			resp, reqErr := client.Do(cmd.Context(), req)

			result := FetchResult{}
			if resp != nil {
				result.LogID = resp.LogID
				result.Status = resp.Status
				result.Attempts = resp.Attempts
				result.Body = string(resp.Body)
			}
			if reqErr != nil {
				result.Error = reqErr.Error()
			}
			if result.LogID == "" && store.IsEnabled() {
				if logs := store.Logs(); len(logs) > 0 {
					result.LogID = logs[0].ID
				}
			}

			printResult(cmd, result, func() {
				out := cmd.OutOrStdout()
				if result.Status != 0 {
					fmt.Fprintf(out, "%d %s (%d attempt(s))\n", result.Status, resp.StatusText, result.Attempts)
				}
				if result.LogID != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "Captured as %s\n", shortID(result.LogID))
				}
				if result.Body != "" {
					fmt.Fprintln(out, result.Body)
				}
			})

			var statusErr *httpclient.StatusError
			if reqErr != nil && !errors.As(reqErr, &statusErr) {
				return reqErr
			}
			return nil
		})
	},
}

func buildFetchRequest(url string) (httpclient.Request, error) {
	req := httpclient.Request{
		Method: strings.ToUpper(fetchMethod),
		URL:    url,
	}
	if len(fetchHeaders) > 0 {
		req.Headers = make(map[string]string, len(fetchHeaders))
		for _, h := range fetchHeaders {
			name, value, ok := strings.Cut(h, ":")
			if !ok || strings.TrimSpace(name) == "" {
				return req, fmt.Errorf("invalid header %q (expected 'Name: value')", h)
			}
			req.Headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}
	}
	if len(fetchParams) > 0 {
		req.Params = make(map[string]string, len(fetchParams))
		for _, p := range fetchParams {
			key, value, ok := strings.Cut(p, "=")
			if !ok || key == "" {
				return req, fmt.Errorf("invalid param %q (expected key=value)", p)
			}
			req.Params[key] = value
		}
	}
	if fetchData != "" {
		req.Body = fetchData
		if json.Valid([]byte(fetchData)) {
			req.Body = json.RawMessage(fetchData)
		}
		if req.Method == "GET" && !fetchMethodChanged {
			req.Method = "POST"
		}
	}
	return req, nil
}

// fetchMethodChanged is set by the command's PreRun; -d implies POST only
// when -X was not given.
var fetchMethodChanged bool

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.PreRun = func(cmd *cobra.Command, _ []string) {
		fetchMethodChanged = cmd.Flags().Changed("request")
	}
	fetchCmd.Flags().StringVarP(&fetchMethod, "request", "X", "GET", "HTTP method")
	fetchCmd.Flags().StringArrayVarP(&fetchHeaders, "header", "H", nil, "Request header 'Name: value' (repeatable)")
	fetchCmd.Flags().StringVarP(&fetchData, "data", "d", "", "Request body")
	fetchCmd.Flags().StringArrayVar(&fetchParams, "param", nil, "Query parameter key=value (repeatable)")
}
