package commands

import (
	"fmt"
	"io"
	nethttp "net/http"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	agenthttp "github.com/gaborage/agentlink/http"
)

// DoOptions holds options for the do command
type DoOptions struct {
	Method  string
	URL     string
	Data    string
	Headers []string
	Include bool
}

// NewDoCommand creates the do command
func NewDoCommand(global *GlobalOptions) *cobra.Command {
	opts := &DoOptions{}

	cmd := &cobra.Command{
		Use:   "do",
		Short: "Send one request through the retrying executor",
		Long: `Sends a single logical request and prints the response body.

Retryable failures are retried according to the retry section of the
configuration. A response with a non-2xx status is printed and makes the
command fail.`,
		Example: `  # Fetch the agent config
  agentlink do --url https://cp.example.com/api/v1/agents/a1/config -H "Authorization=Bearer $TOKEN"

  # Post a payload read from a file
  agentlink do -X POST --url https://cp.example.com/hooks -d @event.json -H Content-Type=application/json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDo(cmd, global, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Method, "method", "X", nethttp.MethodGet, "HTTP method")
	cmd.Flags().StringVarP(&opts.URL, "url", "u", "", "Absolute request URL")
	cmd.Flags().StringVarP(&opts.Data, "data", "d", "", "Request body, or @file to read it from a file")
	cmd.Flags().StringArrayVarP(&opts.Headers, "header", "H", nil, "Request header as key=value (repeatable)")
	cmd.Flags().BoolVarP(&opts.Include, "include", "i", false, "Print the status line and response headers")
	_ = cmd.MarkFlagRequired("url")

	return cmd
}

func runDo(cmd *cobra.Command, global *GlobalOptions, opts *DoOptions) error {
	headers, err := parseHeaders(opts.Headers)
	if err != nil {
		return err
	}
	body, err := readData(opts.Data)
	if err != nil {
		return err
	}

	s, err := global.open(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	transport := &nethttp.Client{Timeout: s.cfg.Client.Timeout}
	resp, err := s.executor.Execute(cmd.Context(), transport, &agenthttp.Request{
		Method:  strings.ToUpper(opts.Method),
		URL:     opts.URL,
		Body:    body,
		Headers: headers,
	}, s.cfg.RetryPolicy())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	out := cmd.OutOrStdout()
	if opts.Include {
		writeResponseHead(out, resp)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if !agenthttp.IsSuccessStatus(resp.StatusCode) {
		return fmt.Errorf("request failed with status %s", resp.Status)
	}
	return nil
}

// parseHeaders turns key=value pairs into a header set. Repeated keys
// accumulate values.
func parseHeaders(values []string) (nethttp.Header, error) {
	headers := nethttp.Header{}
	for _, v := range values {
		key, value, ok := strings.Cut(v, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid header %q: expected key=value", v)
		}
		headers.Add(key, strings.TrimSpace(value))
	}
	return headers, nil
}

func readData(data string) ([]byte, error) {
	if data == "" {
		return nil, nil
	}
	path, fromFile := strings.CutPrefix(data, "@")
	if !fromFile {
		return []byte(data), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	return b, nil
}

func writeResponseHead(w io.Writer, resp *nethttp.Response) {
	fmt.Fprintf(w, "%s %s\n", resp.Proto, resp.Status)
	keys := make([]string, 0, len(resp.Header))
	for k := range resp.Header {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		for _, v := range resp.Header[k] {
			fmt.Fprintf(w, "%s: %s\n", k, v)
		}
	}
	fmt.Fprintln(w)
}
