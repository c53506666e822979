package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/modoterra/hookscope/pkg/core"
	"github.com/modoterra/hookscope/pkg/export"
	"github.com/modoterra/hookscope/pkg/transport/uds"
)

func init() {
	rootCmd.AddCommand(datesCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(facetsCmd)
	rootCmd.AddCommand(followCmd)

	for _, c := range []*cobra.Command{queryCmd, showCmd} {
		addQueryFlags(c)
	}
	queryCmd.Flags().IntVar(&queryFlags.limit, "limit", 0, "maximum records (default from config)")
	queryCmd.Flags().BoolVar(&outputJSON, "json", false, "output JSON lines")
	datesCmd.Flags().BoolVar(&outputJSON, "json", false, "output JSON")
	facetsCmd.Flags().StringVar(&queryFlags.date, "date", "", "day to inspect (YYYY-MM-DD, default all)")
	facetsCmd.Flags().BoolVar(&outputJSON, "json", false, "output JSON")
	followCmd.Flags().StringVar(&followDate, "date", "", "day to start on (default today)")
	followCmd.Flags().BoolVar(&outputJSON, "json", false, "output JSON lines")
}

var (
	outputJSON bool
	followDate string
	queryFlags struct {
		date   string
		event  string
		tool   string
		search string
		limit  int
	}
)

func addQueryFlags(c *cobra.Command) {
	c.Flags().StringVar(&queryFlags.date, "date", "", "day to read (YYYY-MM-DD, default all days)")
	c.Flags().StringVar(&queryFlags.event, "event", "", "only this hook_event")
	c.Flags().StringVar(&queryFlags.tool, "tool", "", "only this input.tool_name")
	c.Flags().StringVar(&queryFlags.search, "search", "", "case-insensitive text match")
}

func queryRequest() uds.QueryLogsRequest {
	return uds.QueryLogsRequest{
		Date:      queryFlags.date,
		HookEvent: queryFlags.event,
		ToolName:  queryFlags.tool,
		Search:    queryFlags.search,
		Limit:     queryFlags.limit,
	}
}

func wantJSON(cmd *cobra.Command) bool {
	return outputJSON || !isTerminal(cmd.OutOrStdout())
}

// --- Dates ---

var datesCmd = &cobra.Command{
	Use:   "dates",
	Short: "List days with hook logs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var resp uds.ListDatesResponse
		if err := call(uds.MethodListDates, nil, &resp); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if wantJSON(cmd) {
			return writeJSONValue(out, resp)
		}
		if len(resp.Files) == 0 {
			fmt.Fprintln(out, "no hook logs")
			return nil
		}
		rows := make([][]string, len(resp.Files))
		for i, f := range resp.Files {
			date := f.Date
			if date == resp.Today {
				date += " (today)"
			}
			rows[i] = []string{date, humanBytes(f.Size), f.ModTime.Local().Format(time.DateTime)}
		}
		fmt.Fprintln(out, renderTable([]string{"DATE", "SIZE", "MODIFIED"}, rows,
			[]columnAlignment{alignLeft, alignRight}))
		return nil
	},
}

// --- Query ---

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "List records, newest first",
	Long: `List records newest first.

Filters apply in order: --event, --tool, then --search, and the result is
capped at --limit.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var resp uds.QueryLogsResponse
		if err := call(uds.MethodQueryLogs, queryRequest(), &resp); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if wantJSON(cmd) {
			return export.Write(out, export.FormatJSONL, resp.Records)
		}
		if len(resp.Records) == 0 {
			fmt.Fprintln(out, "no records")
			return nil
		}
		fmt.Fprintln(out, recordsTable(resp.Records))
		return nil
	},
}

// --- Show ---

var showCmd = &cobra.Command{
	Use:   "show <index>",
	Short: "Print one record of a query result in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[0])
		if err != nil || index < 0 {
			return fmt.Errorf("index must be a non-negative integer, got %q", args[0])
		}
		var rec core.Record
		if err := call(uds.MethodGetLog, uds.GetLogRequest{QueryLogsRequest: queryRequest(), Index: index}, &rec); err != nil {
			return err
		}
		return export.Write(cmd.OutOrStdout(), export.FormatJSON, []core.Record{rec})
	},
}

// --- Facets ---

var facetsCmd = &cobra.Command{
	Use:   "facets",
	Short: "List hook events and tool names seen in the logs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var resp uds.FacetsResponse
		if err := call(uds.MethodFacets, uds.FacetsRequest{Date: queryFlags.date}, &resp); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if wantJSON(cmd) {
			return writeJSONValue(out, resp)
		}
		fmt.Fprintf(out, "hook events: %s\n", joinOrNone(resp.HookEvents))
		fmt.Fprintf(out, "tool names:  %s\n", joinOrNone(resp.ToolNames))
		return nil
	},
}

// --- Follow ---

var followCmd = &cobra.Command{
	Use:   "follow",
	Short: "Stream new records as they are written",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return follow(ctx, cmd)
	},
}

func follow(ctx context.Context, cmd *cobra.Command) error {
	client, err := dialDaemon()
	if err != nil {
		return err
	}
	defer client.Close()

	events := make(chan uds.Message, 256)
	client.OnEvent(func(msg uds.Message) {
		if strings.HasPrefix(msg.Method, "stream.") {
			events <- msg
		}
	})

	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	var sub uds.StreamSubscribeResponse
	err = client.Call(reqCtx, uds.MethodStreamSubscribe, uds.StreamSubscribeRequest{Date: followDate}, &sub)
	cancel()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	asJSON := wantJSON(cmd)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-client.Done():
			return errors.New("daemon connection closed")
		case msg := <-events:
			var evt uds.StreamEvent
			if err := msg.UnmarshalData(&evt); err != nil {
				return err
			}
			if evt.SessionID != sub.SessionID {
				continue
			}
			switch msg.Method {
			case uds.EventStreamConnected:
				fmt.Fprintf(errOut, "watching %s\n", evt.Watching)
			case uds.EventStreamNewDay:
				fmt.Fprintf(errOut, "new day: now watching %s\n", evt.Date)
			case uds.EventStreamError:
				fmt.Fprintf(errOut, "stream error: %s\n", evt.Message)
			case uds.EventStreamLog:
				if evt.Record == nil {
					continue
				}
				if asJSON {
					if err := export.Write(out, export.FormatJSONL, []core.Record{*evt.Record}); err != nil {
						return err
					}
				} else {
					fmt.Fprintln(out, recordLine(*evt.Record))
				}
			}
		}
	}
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "(none)"
	}
	return strings.Join(values, ", ")
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func itoa(i int) string { return strconv.Itoa(i) }
