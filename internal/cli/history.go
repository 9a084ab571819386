package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/chatsync/internal/chat"
	"github.com/raphaelgruber/chatsync/internal/models"
)

var historyCmd = &cobra.Command{
	Use:   "history <peer>",
	Short: "Print the stored conversation with a peer",
	Long: `Print the stored conversation with a peer, oldest first.

Examples:
  chatsync history bob --user alice`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	user, err := requireUser()
	if err != nil {
		return err
	}

	// History needs no live updates.
	engine, err := newEngine(user, nil, chat.Config{})
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ClientTimeout)
	defer cancel()

	if err := engine.Select(ctx, args[0]); err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	printMessages(os.Stdout, args[0], engine.Snapshot())
	return nil
}

// printMessages writes a plain transcript.
func printMessages(w io.Writer, peer string, msgs []models.Message) {
	if len(msgs) == 0 {
		fmt.Fprintf(w, "No messages with %s.\n", peer)
		return
	}
	for _, m := range msgs {
		fmt.Fprintln(w, plainLine(peer, m))
	}
}

func plainLine(peer string, m models.Message) string {
	if m.FromSelf() {
		switch m.DeliveryState {
		case models.DeliveryPending:
			return "you: " + m.Text + " (sending)"
		case models.DeliveryFailed:
			return "you: " + m.Text + " (not delivered)"
		}
		return "you: " + m.Text
	}
	return peer + ": " + m.Text
}
