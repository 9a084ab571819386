package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/chatsync/internal/chat"
)

var sendCmd = &cobra.Command{
	Use:   "send <peer> <text...>",
	Short: "Send one message and exit",
	Long: `Send one message to a peer and exit.

The message is pushed to the peer if they are online and stored on the
server either way.

Examples:
  chatsync send bob "see you at 6" --user alice`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSend,
}

func runSend(cmd *cobra.Command, args []string) error {
	user, err := requireUser()
	if err != nil {
		return err
	}
	peer := args[0]
	text := strings.Join(args[1:], " ")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ClientTimeout)
	defer cancel()

	ch := dialChannel(ctx, user)
	if ch != nil {
		defer ch.Close()
	}

	engine, err := newEngine(user, ch, chat.Config{})
	if err != nil {
		return err
	}
	defer engine.Close()

	// No Start: a one-shot send does not listen for replies.
	if err := engine.Select(ctx, peer); err != nil {
		logger.Warn("history unavailable, sending anyway", "peer", peer, "error", err)
	}

	key, ok := engine.ActiveKey()
	if !ok {
		return fmt.Errorf("no conversation with %q", peer)
	}
	msg, err := engine.Send(ctx, key, text)
	if err != nil {
		return err
	}

	fmt.Println(plainLine(peer, msg))
	return nil
}
