package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/disputedesk/internal/wire"
)

// TokenCmd returns the token command, which mints bearer tokens for the HTTP API.
func TokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API bearer token for the acting party",
		Long: `Mint a signed bearer token for --as. The actor must exist in the configured
directory; the signing secret comes from auth.secret (or DISPUTEDESK_AUTH_SECRET).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := ActorID()
			if err != nil {
				return err
			}
			record, err := wire.Directory().ResolveActor(NewContext(), actor)
			if err != nil {
				return err
			}
			tokens, err := wire.TokenService()
			if err != nil {
				return err
			}
			if ttl == 0 {
				ttl = wire.Config().Auth.TokenTTL
			}
			token, expires, err := tokens.Issue(record.ID, record.Role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s (%s, %s)\n", expires.Format(time.RFC3339), record.ID, record.Role)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to auth.token_ttl)")
	return cmd
}
