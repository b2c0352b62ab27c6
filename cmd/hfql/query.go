package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/omniql-engine/hfql"
	"github.com/omniql-engine/hfql/engine/executor"
	"github.com/omniql-engine/hfql/engine/lexer"
)

func newQueryCmd(flags *globalFlags) *cobra.Command {
	var limit int
	var searchID string
	var offset int
	cmd := &cobra.Command{
		Use:   "query <statement>",
		Short: "Run a statement and print the rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			client, closeClient, err := newClient(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeClient()

			client.SetLimit(limit)
			var result executor.Result
			if searchID != "" {
				result, err = client.Continue(ctx, args[0], searchID, offset)
			} else {
				result, err = client.Query(ctx, args[0])
			}
			if err != nil {
				return describeError(err)
			}
			defer result.Close()
			return printResult(ctx, cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", executor.NoLimit, "maximum rows for statements without LIMIT")
	cmd.Flags().StringVar(&searchID, "continue", "", "search id of a previous query to resume")
	cmd.Flags().IntVar(&offset, "offset", 0, "row offset to resume from, with --continue")
	return cmd
}

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <statement>",
		Short: "Print the parsed statement as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stmt, err := hfql.Parse(args[0])
			if err != nil {
				return describeError(err)
			}
			out, err := json.MarshalIndent(stmt, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
}

// describeError adds the closest known keyword or resource type to a parse error
func describeError(err error) error {
	var perr *lexer.ParseError
	if errors.As(err, &perr) && perr.Suggestion != "" {
		return fmt.Errorf("%w. Did you mean '%s'?", err, perr.Suggestion)
	}
	return err
}

// printResult writes the rows as a tab-aligned table followed by the search id.
// An error row stops the output and is returned as an error.
func printResult(ctx context.Context, w io.Writer, result executor.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(result.ColumnNames(), "\t"))

	count := 0
	for result.HasNext(ctx) {
		row, err := result.NextRow(ctx)
		if errors.Is(err, executor.ErrNoMoreRows) {
			break
		}
		if err != nil {
			return err
		}
		if row.IsError() {
			_ = tw.Flush()
			return errors.New(row.Message())
		}
		cells := make([]string, len(row.Values))
		for i, v := range row.Values {
			if v != nil {
				cells[i] = fmt.Sprint(v)
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
		count++
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "(%d rows, search id %s)\n", count, result.SearchID())
	return err
}
