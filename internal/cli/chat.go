package cli

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var chatCmd = &cobra.Command{
	Use:   "chat <peer>",
	Short: "Open an interactive conversation",
	Long: `Open an interactive conversation with a peer.

History is loaded from the server; new messages arrive live over the
websocket. Your messages show up immediately and are marked until the
server has stored them.

Examples:
  chatsync chat bob --user alice
  CHATSYNC_USER=alice chatsync chat bob`,
	Args: cobra.ExactArgs(1),
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("chat needs an interactive terminal; use 'chatsync history' or 'chatsync send' instead")
	}

	user, err := requireUser()
	if err != nil {
		return err
	}
	peer := args[0]

	ctx := context.Background()
	ch := dialChannel(ctx, user)
	var channelDone <-chan struct{}
	if ch != nil {
		defer ch.Close()
		channelDone = ch.Done()
	}

	events := newUIEvents()
	engine, err := newEngine(user, ch, events.hooks())
	if err != nil {
		return err
	}
	defer engine.Close()
	if err := engine.Start(); err != nil {
		return err
	}

	return RunChat(engine, events, user, peer, channelDone)
}
