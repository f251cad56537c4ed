// AngelaMos | 2026
// root.go

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/carterperez-dev/marketplace-access/internal/access"
)

type options struct {
	output   string
	resolver *access.Resolver
}

// NewRootCmd builds the accessctl command tree. It evaluates the built-in
// access catalog locally and never talks to the API.
func NewRootCmd() *cobra.Command {
	opts := &options{resolver: access.NewResolver(nil)}

	root := &cobra.Command{
		Use:   "accessctl",
		Short: "Inspect marketplace role and tier access rules",
		Long: `accessctl answers the same questions the API does for a given role and
tier: where a user lands, what their navigation shows, and whether a path is
allowed, locked or redirected.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch opts.output {
			case formatTable, formatJSON, formatYAML:
				return nil
			default:
				return fmt.Errorf("unknown output format %q (want table, json or yaml)", opts.output)
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.output, "output", "o", formatTable, "output format: table, json, yaml")

	root.AddCommand(newResolveCmd(opts))
	root.AddCommand(newLandingCmd(opts))
	root.AddCommand(newNavCmd(opts))
	root.AddCommand(newMatrixCmd(opts))
	root.AddCommand(newMeetsCmd(opts))
	root.AddCommand(newKeygenCmd())

	return root
}

func Execute() error {
	return NewRootCmd().Execute()
}

// sessionFlags binds --role, --tier and --admin on cmd.
type sessionFlags struct {
	role  string
	tier  string
	admin bool
}

func (f *sessionFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.role, "role", "", "role: engineer, client, enterprise, admin (empty for anonymous)")
	cmd.Flags().StringVar(&f.tier, "tier", string(access.TierFree), "subscription tier: free, basic, pro, enterprise")
	cmd.Flags().BoolVar(&f.admin, "admin", false, "treat the session as an administrator")
}

// session rejects an unknown role outright. An unknown tier is kept and
// normalized, the same as a stale tier claim.
func (f *sessionFlags) session() (access.Session, error) {
	if f.role == "" {
		return access.Session{}, nil
	}
	if _, ok := access.ParseRole(f.role); !ok {
		return access.Session{}, fmt.Errorf("unknown role %q", f.role)
	}
	return access.NewSession("accessctl", f.role, f.tier, f.admin), nil
}
