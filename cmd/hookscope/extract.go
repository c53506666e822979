package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/modoterra/hookscope/pkg/export"
	"github.com/modoterra/hookscope/pkg/extract"
	"github.com/modoterra/hookscope/pkg/query"
)

var extractFlags struct {
	format string
	stats  bool
	event  string
	tool   string
	search string
	limit  int
}

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Extract records from a hook log file without the daemon",
	Long: `Extract every well-formed record from a hook log file, skipping corrupted
regions, and write them in file order.

Any of --event, --tool, --search or --limit switches to query order: newest
first, filtered, then capped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := export.ParseFormat(extractFlags.format)
		if err != nil {
			return err
		}

		fs := afero.NewOsFs()
		data, err := afero.ReadFile(fs, args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		records, stats := extract.ExtractStats(data)

		if extractFlags.event != "" || extractFlags.tool != "" || extractFlags.search != "" || extractFlags.limit > 0 {
			limit := extractFlags.limit
			if limit <= 0 {
				limit = max(len(records), 1)
			}
			records = query.Apply(records, query.Query{
				HookEvent: extractFlags.event,
				ToolName:  extractFlags.tool,
				Search:    extractFlags.search,
				Limit:     limit,
			})
		}

		if extractFlags.stats {
			fmt.Fprintf(cmd.ErrOrStderr(),
				"candidates=%d decode_failures=%d rejected=%d records=%d\n",
				stats.Candidates, stats.DecodeFailures, stats.Rejected, stats.Records)
		}
		return export.Write(cmd.OutOrStdout(), format, records)
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractFlags.format, "format", string(export.FormatJSONL), "output format: json, jsonl or msgpack")
	extractCmd.Flags().BoolVar(&extractFlags.stats, "stats", false, "print extraction counters to stderr")
	extractCmd.Flags().StringVar(&extractFlags.event, "event", "", "only this hook_event")
	extractCmd.Flags().StringVar(&extractFlags.tool, "tool", "", "only this input.tool_name")
	extractCmd.Flags().StringVar(&extractFlags.search, "search", "", "case-insensitive text match")
	extractCmd.Flags().IntVar(&extractFlags.limit, "limit", 0, "maximum records")
	rootCmd.AddCommand(extractCmd)
}
