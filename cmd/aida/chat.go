package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hrygo/aida/ai/assistant"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant in the terminal",
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, err := loadProfile()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), terminationSignals...)
		defer stop()

		a, err := newApp(ctx, p)
		if err != nil {
			return err
		}
		defer a.close()
		a.start(ctx)

		return chat(ctx, a.assistant, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

// chat reads one utterance per line until EOF, "exit" or "quit".
func chat(ctx context.Context, a *assistant.Assistant, in io.Reader, out io.Writer) error {
	a.Activate(ctx)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "you> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		reply := a.ProcessMessage(ctx, line, assistant.ProcessOptions{Source: assistant.SourceChat})
		fmt.Fprintf(out, "aida> %s\n", reply.Text)
		if ctx.Err() != nil {
			return nil
		}
	}
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the semantic index from stored messages",
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, err := loadProfile()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), terminationSignals...)
		defer stop()

		a, err := newApp(ctx, p)
		if err != nil {
			return err
		}
		defer a.close()

		n, err := a.memory.Reindex(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d messages\n", n)
		return nil
	},
}
