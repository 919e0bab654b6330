package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"membooth/internal/ipc"
)

func newSessionCommand(ctx *commandContext) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and manage booth sessions",
	}

	sessionCmd.AddCommand(newSessionListCommand(ctx))
	sessionCmd.AddCommand(newSessionShowCommand(ctx))
	sessionCmd.AddCommand(newSessionClearCommand(ctx))
	sessionCmd.AddCommand(newSessionRetryCommand(ctx))
	sessionCmd.AddCommand(newSessionResetCommand(ctx))
	sessionCmd.AddCommand(newSessionRemoveCommand(ctx))
	sessionCmd.AddCommand(newSessionHealthCommand(ctx))

	return sessionCmd
}

func newSessionListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List booth sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SessionList(listStatuses)
				if err != nil {
					return err
				}
				if len(resp.Sessions) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded")
					return nil
				}
				table := renderTable(
					[]string{"Token", "Type", "Status", "Style", "Progress", "Created"},
					buildSessionListRows(resp.Sessions),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by session status (repeatable)")
	return cmd
}

func buildSessionListRows(sessions []ipc.Session) [][]string {
	rows := make([][]string, 0, len(sessions))
	for _, sess := range sessions {
		style := sess.StyleID
		if style == "" {
			style = "-"
		}
		rows = append(rows, []string{
			sess.Token,
			sess.MementoType,
			sess.Status,
			style,
			fmt.Sprintf("%.0f%%", sess.Progress.Percent),
			sess.CreatedAt,
		})
	}
	return rows
}

func newSessionShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <token>",
		Short: "Show a single session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := strings.TrimSpace(args[0])
			if token == "" {
				return errors.New("session token is required")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SessionDescribe(token)
				if err != nil {
					return err
				}
				renderSessionDetail(cmd, resp.Session)
				return nil
			})
		},
	}
}

func renderSessionDetail(cmd *cobra.Command, sess ipc.Session) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("Session "+sess.Token, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Type", statusInfo, sess.MementoType, colorize))
	fmt.Fprintln(out, renderStatusLine("Status", sessionStatusKind(sess.Status), sess.Status, colorize))
	fmt.Fprintln(out, renderStatusLine("Screen", statusInfo, sess.Step, colorize))
	if sess.StyleID != "" {
		fmt.Fprintln(out, renderStatusLine("Style", statusInfo, sess.StyleID, colorize))
	}
	if sess.VoiceType != "" {
		fmt.Fprintln(out, renderStatusLine("Voice", statusInfo, sess.VoiceType, colorize))
	}
	if sess.MusicCategory != "" {
		fmt.Fprintln(out, renderStatusLine("Music", statusInfo, sess.MusicCategory, colorize))
	}
	progress := fmt.Sprintf("%.0f%% %s", sess.Progress.Percent, sess.Progress.Message)
	fmt.Fprintln(out, renderStatusLine("Progress", statusInfo, strings.TrimSpace(progress), colorize))
	fmt.Fprintln(out, renderStatusLine("Capture", statusInfo, yesNo(sess.HasCapture), colorize))
	fmt.Fprintln(out, renderStatusLine("Result", statusInfo, yesNo(sess.HasResult), colorize))
	if sess.ErrorMessage != "" {
		fmt.Fprintln(out, renderStatusLine("Error", statusError, sess.ErrorMessage, colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Created", statusInfo, sess.CreatedAt, colorize))
	fmt.Fprintln(out, renderStatusLine("Updated", statusInfo, sess.UpdatedAt, colorize))
}

func sessionStatusKind(status string) statusKind {
	switch status {
	case "completed":
		return statusOK
	case "failed":
		return statusError
	case "generating", "ready":
		return statusWarn
	default:
		return statusInfo
	}
}

func newSessionClearCommand(ctx *commandContext) *cobra.Command {
	var clearCompleted bool
	var clearFailed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearCompleted && clearFailed {
				return errors.New("specify only one of --completed or --failed")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				out := cmd.OutOrStdout()
				switch {
				case clearCompleted:
					resp, err := client.SessionClearCompleted()
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d completed sessions\n", resp.Removed)
				case clearFailed:
					resp, err := client.SessionClearFailed()
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d failed sessions\n", resp.Removed)
				default:
					if _, err := client.SessionClear(); err != nil {
						return err
					}
					fmt.Fprintln(out, "Cleared all sessions")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearCompleted, "completed", false, "Remove only completed sessions")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove only failed sessions")
	return cmd
}

func newSessionRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [token]",
		Short: "Retry failed sessions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = strings.TrimSpace(args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SessionRetry(token)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if token != "" {
					if resp.Updated == 0 {
						fmt.Fprintf(out, "Session %s is not in failed state\n", token)
						return nil
					}
					fmt.Fprintf(out, "Session %s queued for another attempt\n", token)
					return nil
				}
				fmt.Fprintf(out, "Retried %d failed sessions\n", resp.Updated)
				return nil
			})
		},
	}
}

func newSessionResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-stuck",
		Short: "Return in-flight sessions to the generation queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SessionReset()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d sessions\n", resp.Updated)
				return nil
			})
		},
	}
}

func newSessionRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <token>",
		Short: "Remove a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := strings.TrimSpace(args[0])
			if token == "" {
				return errors.New("session token is required")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SessionRemove(token)
				if err != nil {
					return err
				}
				if !resp.Removed {
					fmt.Fprintf(cmd.OutOrStdout(), "Session %s not found\n", token)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed session %s\n", token)
				return nil
			})
		},
	}
}

func newSessionHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show session store health counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SessionHealth()
				if err != nil {
					return err
				}
				rows := [][]string{
					{"total", fmt.Sprintf("%d", resp.Total)},
					{"pending", fmt.Sprintf("%d", resp.Pending)},
					{"captured", fmt.Sprintf("%d", resp.Captured)},
					{"queued", fmt.Sprintf("%d", resp.Queued)},
					{"generating", fmt.Sprintf("%d", resp.Generating)},
					{"completed", fmt.Sprintf("%d", resp.Completed)},
					{"failed", fmt.Sprintf("%d", resp.Failed)},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Counter", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}
