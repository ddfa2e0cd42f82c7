package main

import (
	"fmt"
	"strings"

	"github.com/codeconnects/backend/internal/messaging"
	"github.com/spf13/cobra"
)

var messagesCmd = &cobra.Command{
	Use:   "messages [user-id]",
	Short: "List conversations, or show the thread with one user",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(true)
		if err != nil {
			return err
		}
		if len(args) == 0 {
			convs, err := c.Conversations(cmd.Context())
			if err != nil {
				return err
			}
			printConversations(convs)
			return nil
		}

		msgs, err := c.Conversation(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if _, err := c.MarkRead(cmd.Context(), args[0]); err != nil {
			return err
		}
		printThread(msgs)
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <user-id> <text>",
	Short: "Send a direct message",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(true)
		if err != nil {
			return err
		}
		msg, err := c.SendMessage(cmd.Context(), args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		if printJSON(msg) {
			return nil
		}
		printSuccess("Sent to @%s", msg.Receiver.Username)
		return nil
	},
}

func printConversations(convs []messaging.Conversation) {
	if printJSON(convs) {
		return
	}
	if len(convs) == 0 {
		dimColor.Println("no conversations yet")
		return
	}
	for _, conv := range convs {
		boldColor.Printf("@%s", conv.Peer.Username)
		if conv.UnreadCount > 0 {
			warnColor.Printf("  %d unread", conv.UnreadCount)
		}
		dimColor.Printf("  %s\n", ago(conv.LatestMessage.CreatedAt))
		fmt.Printf("  %s\n", conv.LatestMessage.Content)
	}
}

func printThread(msgs []messaging.MessageView) {
	if printJSON(msgs) {
		return
	}
	if len(msgs) == 0 {
		dimColor.Println("no messages yet")
		return
	}
	for _, m := range msgs {
		boldColor.Printf("@%s", m.Sender.Username)
		dimColor.Printf("  %s\n", ago(m.CreatedAt))
		fmt.Printf("  %s\n", m.Content)
	}
}
