package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/omniql-engine/hfql"
)

const historyFile = ".hfql_history"

func newShellCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Run statements interactively",
		Args:  cobra.NoArgs,
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
			return runShell(ctx, client, cmd.OutOrStdout())
		},
	}
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, historyFile)
}

func runShell(ctx context.Context, client *hfql.Client, out io.Writer) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	path := historyPath()
	if path != "" {
		if f, err := os.Open(path); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
		defer func() {
			f, err := os.Create(path)
			if err != nil {
				log.WithError(err).Warn("Failed to save shell history")
				return
			}
			defer f.Close()
			_, _ = line.WriteHistory(f)
		}()
	}

	fmt.Fprintln(out, `HFQL shell. End statements with a newline, \q to quit.`)
	for {
		input, err := line.Prompt("hfql> ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)
		if quit := runShellLine(ctx, client, out, input); quit {
			return nil
		}
	}
}

// runShellLine handles one line of input and reports whether the shell should exit
func runShellLine(ctx context.Context, client *hfql.Client, out io.Writer, input string) bool {
	switch {
	case input == `\q`:
		return true
	case strings.HasPrefix(input, `\limit`):
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(input, `\limit`)))
		if err != nil {
			fmt.Fprintf(out, "usage: \\limit <n>, -1 for none\n")
			return false
		}
		client.SetLimit(n)
		return false
	}

	result, err := client.Query(ctx, strings.TrimSuffix(input, ";"))
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", describeError(err))
		return false
	}
	defer result.Close()
	if err := printResult(ctx, out, result); err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
	}
	return false
}
