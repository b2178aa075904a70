package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"movie-chatbot/internal/chatbot"
	"movie-chatbot/internal/stream"
)

var askStream bool

func init() {
	askCmd.Flags().BoolVar(&askStream, "stream", false, "Print frames as they arrive")
	rootCmd.AddCommand(messagesCmd)
	rootCmd.AddCommand(askCmd)
}

var messagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "Print the stored conversation log as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		msgs, err := st.List(cmd.Context())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(msgs)
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Run one chatbot turn against the configured store and model",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		svc, err := newChatbot(cfg, st)
		if err != nil {
			return err
		}

		question := strings.Join(args, " ")
		if _, err := svc.Send(cmd.Context(), question); err != nil {
			return err
		}

		var res chatbot.Result
		if askStream {
			enc := json.NewEncoder(cmd.OutOrStdout())
			res, err = svc.AskStream(cmd.Context(), question, stream.SinkFunc(func(event stream.Event) error {
				return enc.Encode(event)
			}))
		} else {
			res, err = svc.Ask(cmd.Context(), question)
		}
		if err != nil {
			return err
		}

		if !askStream {
			fmt.Fprintln(cmd.OutOrStdout(), res.Transcript.PlainText())
		}
		if res.Outcome.State == stream.StateCutoff {
			fmt.Fprintf(cmd.ErrOrStderr(), "reply cut off: %v\n", res.Outcome.Reason)
		}
		return nil
	},
}
