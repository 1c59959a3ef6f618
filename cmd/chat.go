// File: cmd/chat.go
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/websec-cli/internal/chat"
	"github.com/xkilldash9x/websec-cli/internal/service"
)

func newChatCmd(factory service.ComponentFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "chat [message]",
		Short: "Talks to Sentinel, the security assistant",
		Long: `With a message, asks Sentinel once and prints the reply. Without one,
starts a conversation that ends on "exit", "quit" or end of input.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			components, _, _, err := loadComponents(cmd, factory)
			if err != nil {
				return err
			}
			defer components.Shutdown()

			if len(args) > 0 {
				reply, err := components.Chat.Send(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), reply.Content)
				return nil
			}
			return runChatLoop(cmd.Context(), components.Chat, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// runChatLoop reads one message per line until exit, quit or EOF.
func runChatLoop(ctx context.Context, session *chat.Session, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "%s %s\n", sentinelStyle.Render("sentinel >"), chat.Greeting)
	fmt.Fprintln(out, subtleStyle.Render(`(type "exit" to leave)`))

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, userStyle.Render("you > "))
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		reply, err := session.Send(ctx, line)
		if errors.Is(err, chat.ErrEmptyMessage) {
			continue
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s\n", sentinelStyle.Render("sentinel >"), reply.Content)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	fmt.Fprintln(out)
	return scanner.Err()
}
