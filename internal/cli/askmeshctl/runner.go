// Package askmeshctl is the command line client for the askmesh API.
package askmeshctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/askmesh/askmesh/internal/present"
	"github.com/askmesh/askmesh/internal/query"
)

type Options struct {
	BaseURL    string
	APIKey     string
	SessionID  string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

// Run executes one command and returns the process exit code: 0 on success,
// 1 when the API request fails and 2 for usage errors.
func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	root := newRootCommand(defaults)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	_, _ = fmt.Fprintln(stderr, err)
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return 1
	}
	_, _ = fmt.Fprintln(stderr)
	_, _ = fmt.Fprint(stderr, root.UsageString())
	return 2
}

type globalFlags struct {
	baseURL   string
	apiKey    string
	sessionID string
	timeout   time.Duration
}

func newRootCommand(defaults Options) *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "askmeshctl",
		Short:         "Ask questions about your data in plain language",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return errors.New("a command is required")
		},
	}
	root.PersistentFlags().StringVar(&flags.baseURL, "base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "askmesh API base URL")
	root.PersistentFlags().StringVar(&flags.apiKey, "api-key", defaults.APIKey, "API key for authenticated requests")
	root.PersistentFlags().StringVar(&flags.sessionID, "session", defaults.SessionID, "session id to continue")
	root.PersistentFlags().DurationVar(&flags.timeout, "timeout", durationOr(defaults.Timeout, 10*time.Minute), "HTTP timeout (e.g. 90s)")

	newClient := func() *client {
		httpClient := defaults.HTTPClient
		if httpClient == nil {
			httpClient = newHTTPClient(flags.timeout)
		}
		return &client{baseURL: flags.baseURL, apiKey: flags.apiKey, sessionID: flags.sessionID, http: httpClient}
	}

	root.AddCommand(
		rawCommand("health", "Check API liveness", http.MethodGet, "/v1/health", newClient),
		rawCommand("ready", "Check the model server and database are reachable", http.MethodGet, "/v1/ready", newClient),
		schemaCommand(newClient),
		examplesCommand(newClient),
		askCommand(newClient),
		chartCommand(newClient),
		rawCommand("session", "Show the current session state", http.MethodGet, "/v1/session", newClient),
		runCommand(newClient),
	)
	return root
}

func rawCommand(name, short, method, path string, newClient func() *client) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := newClient().do(cmd.Context(), method, path, nil)
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), resp.Body)
			return nil
		},
	}
}

func runCommand(newClient func() *client) *cobra.Command {
	return &cobra.Command{
		Use:   "run <run_id>",
		Short: "Fetch an archived result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newClient().do(cmd.Context(), http.MethodGet, "/v1/runs/"+strings.TrimSpace(args[0]), nil)
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), resp.Body)
			return nil
		},
	}
}

func schemaCommand(newClient func() *client) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the dataset schema the model sees",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := newClient().do(cmd.Context(), http.MethodGet, "/v1/schema", nil)
			if err != nil {
				return err
			}
			var body struct {
				Variant string   `json:"variant"`
				Dataset string   `json:"dataset"`
				Schema  string   `json:"schema"`
				Summary []string `json:"summary"`
			}
			if err := json.Unmarshal(resp.Body, &body); err != nil {
				return fmt.Errorf("decode schema: %w", err)
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, pterm.DefaultBox.WithTitle(body.Variant+" / "+body.Dataset).Sprint(strings.TrimSpace(body.Schema)))
			if len(body.Summary) > 0 {
				list, err := pterm.DefaultBulletList.WithItems(bulletItems(body.Summary)).Srender()
				if err != nil {
					return fmt.Errorf("render summary: %w", err)
				}
				_, _ = fmt.Fprintln(out, list)
			}
			return nil
		},
	}
}

func examplesCommand(newClient func() *client) *cobra.Command {
	return &cobra.Command{
		Use:   "examples",
		Short: "List the canned example questions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := newClient().do(cmd.Context(), http.MethodGet, "/v1/examples", nil)
			if err != nil {
				return err
			}
			var body struct {
				Examples []string `json:"examples"`
			}
			if err := json.Unmarshal(resp.Body, &body); err != nil {
				return fmt.Errorf("decode examples: %w", err)
			}
			for i, example := range body.Examples {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%2d  %s\n", i, example)
			}
			return nil
		},
	}
}

type askFlags struct {
	example   int
	showQuery bool
	showRaw   bool
	json      bool
}

func askCommand(newClient func() *client) *cobra.Command {
	flags := &askFlags{}
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Translate a question, run it and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{}
			question := strings.TrimSpace(strings.Join(args, " "))
			switch {
			case cmd.Flags().Changed("example"):
				if question != "" {
					return errors.New("pass either a question or --example, not both")
				}
				payload["example"] = flags.example
			case question == "":
				return errors.New("a question or --example is required")
			default:
				payload["question"] = question
			}

			resp, err := newClient().do(cmd.Context(), http.MethodPost, "/v1/ask", payload)
			if err != nil {
				var reqErr *requestError
				if errors.As(err, &reqErr) && len(reqErr.Body) > 0 {
					renderAskFailure(cmd, flags, reqErr.Body)
				}
				return err
			}
			if flags.json {
				printJSON(cmd.OutOrStdout(), resp.Body)
				return nil
			}
			var view askView
			if err := json.Unmarshal(resp.Body, &view); err != nil {
				return fmt.Errorf("decode ask response: %w", err)
			}
			renderAsk(cmd.OutOrStdout(), flags, view)
			if resp.SessionID != "" {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "session: %s\n", resp.SessionID)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&flags.example, "example", 0, "run the example question with this index")
	cmd.Flags().BoolVar(&flags.showQuery, "show-query", false, "print the generated query")
	cmd.Flags().BoolVar(&flags.showRaw, "show-raw", false, "print the raw model output")
	cmd.Flags().BoolVar(&flags.json, "json", false, "print the raw JSON response")
	return cmd
}

func chartCommand(newClient func() *client) *cobra.Command {
	var x, y, kind, sortOrder string
	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Change the chart options of the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := newClient()
			if strings.TrimSpace(c.sessionID) == "" {
				return errors.New("--session is required")
			}
			resp, err := c.do(cmd.Context(), http.MethodPost, "/v1/chart", map[string]string{
				"x":    x,
				"y":    y,
				"kind": kind,
				"sort": sortOrder,
			})
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), resp.Body)
			return nil
		},
	}
	cmd.Flags().StringVar(&x, "x", "", "X axis column")
	cmd.Flags().StringVar(&y, "y", "", "Y axis column")
	cmd.Flags().StringVar(&kind, "kind", "", "chart kind: bar, line or pie")
	cmd.Flags().StringVar(&sortOrder, "sort", "", "sort order: desc or asc")
	return cmd
}

type askView struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Display   string `json:"display"`
	Raw       string `json:"raw"`
	Notices   []struct {
		Level   string `json:"level"`
		Message string `json:"message"`
	} `json:"notices"`
	Result struct {
		Columns  []string `json:"columns"`
		Rows     [][]any  `json:"rows"`
		RowCount int      `json:"row_count"`
	} `json:"result"`
	Warnings []struct {
		Message string `json:"message"`
	} `json:"warnings"`
	RunID string `json:"run_id"`
}

func renderAsk(out io.Writer, flags *askFlags, view askView) {
	if flags.showQuery && view.Display != "" {
		_, _ = fmt.Fprintln(out, pterm.DefaultBox.WithTitle("query").Sprint(view.Display))
	}
	if flags.showRaw {
		_, _ = fmt.Fprintln(out, pterm.DefaultBox.WithTitle("raw model output").Sprint(strings.TrimSpace(view.Raw)))
	}
	for _, notice := range view.Notices {
		_, _ = fmt.Fprintln(out, "["+notice.Level+"] "+notice.Message)
	}
	for _, warning := range view.Warnings {
		_, _ = fmt.Fprintln(out, "[warning] "+warning.Message)
	}
	if view.Result.RowCount == 0 {
		_, _ = fmt.Fprintln(out, "no data to display")
		return
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(present.TableRows(query.Result{
		Columns: view.Result.Columns,
		Rows:    view.Result.Rows,
	})).Srender()
	if err != nil {
		_, _ = fmt.Fprintln(out, err)
		return
	}
	_, _ = fmt.Fprintln(out, table)
	summary := strconv.Itoa(view.Result.RowCount) + " row(s)"
	if view.RunID != "" {
		summary += ", run " + view.RunID
	}
	_, _ = fmt.Fprintln(out, summary)
}

// renderAskFailure prints whatever query and raw output the failed run
// produced so the user can see what the model did.
func renderAskFailure(cmd *cobra.Command, flags *askFlags, body []byte) {
	var envelope struct {
		Context json.RawMessage `json:"context"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Context) == 0 {
		return
	}
	if flags.json {
		printJSON(cmd.OutOrStdout(), body)
		return
	}
	var view askView
	if err := json.Unmarshal(envelope.Context, &view); err != nil {
		return
	}
	out := cmd.OutOrStdout()
	if flags.showQuery && view.Display != "" {
		_, _ = fmt.Fprintln(out, pterm.DefaultBox.WithTitle("query").Sprint(view.Display))
	}
	if flags.showRaw && view.Raw != "" {
		_, _ = fmt.Fprintln(out, pterm.DefaultBox.WithTitle("raw model output").Sprint(strings.TrimSpace(view.Raw)))
	}
	for _, notice := range view.Notices {
		_, _ = fmt.Fprintln(out, "["+notice.Level+"] "+notice.Message)
	}
}

func printJSON(out io.Writer, raw []byte) {
	if pretty, ok := prettyJSON(raw); ok {
		_, _ = fmt.Fprintln(out, pretty)
		return
	}
	if len(raw) > 0 {
		_, _ = fmt.Fprintln(out, string(raw))
	}
}

func bulletItems(lines []string) []pterm.BulletListItem {
	items := make([]pterm.BulletListItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, pterm.BulletListItem{Level: 0, Text: line})
	}
	return items
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
