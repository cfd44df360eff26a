package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send one message through the pipeline and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(true)
	if err != nil {
		return err
	}
	defer rt.Close()

	message := strings.Join(args, " ")
	resp, err := rt.orch.Handle(cmd.Context(), message)
	if err != nil {
		return fmt.Errorf("chat: %w", err)
	}

	fmt.Println(resp.Reply)
	if resp.Degraded {
		fmt.Println("(degraded response)")
	}
	return nil
}
