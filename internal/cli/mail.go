package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crewmux/crewmux/internal/mailbox"
)

func newMailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mail",
		Short: "Worker mailbox operations",
		Long: `Send, read and acknowledge messages between the leader and workers.

Each recipient has its own mailbox file; "leader" is a valid recipient.

Examples:
  crewmux mail send myteam --from leader --to worker-1 "start with the lexer"
  crewmux mail broadcast myteam --from leader "sync and report status"
  crewmux mail inbox myteam worker-1
  crewmux mail ack myteam worker-1 m-1712345-abcdef`,
	}

	cmd.AddCommand(
		newMailSendCmd(),
		newMailBroadcastCmd(),
		newMailInboxCmd(),
		newMailAckCmd(),
	)
	return cmd
}

// mailBody assembles the message body from args or --file.
func mailBody(args []string, fromFile string) (string, error) {
	if fromFile != "" {
		content, err := os.ReadFile(fromFile)
		if err != nil {
			return "", fmt.Errorf("reading file: %w", err)
		}
		return string(content), nil
	}
	if len(args) == 0 {
		return "", fmt.Errorf("message body required (provide as argument or use --file)")
	}
	return strings.Join(args, " "), nil
}

func newMailSendCmd() *cobra.Command {
	var (
		from     string
		to       string
		fromFile string
	)

	cmd := &cobra.Command{
		Use:   "send <team> [message]",
		Short: "Send a message to one recipient",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := mailBody(args[1:], fromFile)
			if err != nil {
				return failJSON(err)
			}
			msg, err := mailbox.Send(args[0], from, to, body)
			if err != nil {
				return failJSON(err)
			}

			if IsJSONOutput() {
				return encodeJSONResult(map[string]any{"success": true, "message": msg})
			}
			fmt.Printf("Sent %s to %s\n", msg.MessageID, msg.ToWorker)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "leader", "sender name")
	cmd.Flags().StringVar(&to, "to", "", "recipient worker (or \"leader\")")
	cmd.Flags().StringVarP(&fromFile, "file", "f", "", "read message body from file")
	cmd.MarkFlagRequired("to")
	return cmd
}

func newMailBroadcastCmd() *cobra.Command {
	var (
		from     string
		fromFile string
	)

	cmd := &cobra.Command{
		Use:   "broadcast <team> [message]",
		Short: "Send a message to every worker except the sender",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := mailBody(args[1:], fromFile)
			if err != nil {
				return failJSON(err)
			}
			sent, err := mailbox.Broadcast(args[0], from, body)
			if err != nil {
				return failJSON(err)
			}

			if IsJSONOutput() {
				return encodeJSONResult(map[string]any{"success": true, "sent": sent})
			}
			fmt.Printf("Broadcast to %d recipient(s)\n", sent)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "leader", "sender name")
	cmd.Flags().StringVarP(&fromFile, "file", "f", "", "read message body from file")
	return cmd
}

func newMailInboxCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "inbox <team> <worker>",
		Short: "List a recipient's messages",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			msgs := mailbox.List(args[0], args[1], all)

			if IsJSONOutput() {
				return encodeJSONResult(map[string]any{"success": true, "messages": msgs})
			}
			if len(msgs) == 0 {
				fmt.Println("Mailbox empty.")
				return nil
			}

			tbl := newTable("ID", "FROM", "AGE", "DELIVERED", "BODY")
			for _, m := range msgs {
				delivered := ""
				if m.DeliveredAt != nil {
					delivered = styled(okStyle, "yes")
				}
				tbl.addRow(m.MessageID, m.FromWorker, ageString(m.CreatedAt),
					delivered, truncate(m.Body, 50))
			}
			tbl.render()
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "include delivered messages")
	return cmd
}

func newMailAckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ack <team> <worker> <message-id>",
		Short: "Mark a message delivered",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			updated, err := mailbox.MarkDelivered(args[0], args[1], args[2])
			if err != nil {
				return failJSON(err)
			}

			if IsJSONOutput() {
				return encodeJSONResult(map[string]any{"success": true, "updated": updated})
			}
			if updated {
				fmt.Printf("Message %s marked delivered\n", args[2])
			} else {
				fmt.Printf("Message %s already delivered or unknown\n", args[2])
			}
			return nil
		},
	}
}
