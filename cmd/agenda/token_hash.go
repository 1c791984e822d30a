package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/church-agenda/internal/auth"
)

func newTokenHashCommand() *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "token-hash [secret]",
		Short: "Print the argon2id hash of an API token secret",
		Long: "Prints the argon2id hash to put in AGENDA_API_TOKENS or api_tokens. " +
			"The secret is read from stdin when no argument is given. Clients send \"actor:secret\" as their bearer token.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var secret string
			if len(args) == 1 {
				secret = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read secret: %w", err)
				}
				secret = line
			}
			secret = strings.TrimSpace(secret)
			if secret == "" {
				return errors.New("secret must not be empty")
			}

			hash, err := auth.CreateHash(secret, auth.DefaultArgon2idParams)
			if err != nil {
				return err
			}
			if actor = strings.TrimSpace(actor); actor != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", actor, hash)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "prefix the hash with actor= for AGENDA_API_TOKENS")
	return cmd
}
