package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "ask --session <id> <query>",
		Short: "Ask a question about an ingested document",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionID == "" {
				return errors.New("--session is required")
			}
			query := strings.Join(args, " ")

			a, err := opts.bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ans, err := a.chat.Respond(cmd.Context(), sessionID, query)
			if err != nil {
				return fmt.Errorf("ask failed: %w", err)
			}
			cmd.Println(ans.Text)
			return nil
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id printed by ingest")
	return cmd
}
