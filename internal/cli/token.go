package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"inkpad/api/internal/auth"
	"inkpad/api/internal/util"
)

func newTokenCmd(opts *options) *cobra.Command {
	var (
		subject string
		email   string
		name    string
		secret  string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a session token for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if subject == "" {
				return errors.New("--sub is required")
			}
			token, err := auth.IssueToken([]byte(secret), auth.Identity{Subject: subject, Email: email, Name: name}, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "sub", "", "Subject, e.g. user|provider")
	cmd.Flags().StringVar(&email, "email", "", "Email claim")
	cmd.Flags().StringVar(&name, "name", "", "Name claim")
	cmd.Flags().StringVar(&secret, "secret", opts.cfg.SessionSecret, "Signing secret")
	cmd.Flags().DurationVar(&ttl, "ttl", opts.cfg.SessionTTL, "Token lifetime")
	return cmd
}

func newIDCmd() *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "new-id",
		Short: "Print a fresh document id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), util.NewID(prefix))
			return err
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Optional id prefix")
	return cmd
}
