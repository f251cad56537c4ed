// AngelaMos | 2026
// access.go

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/carterperez-dev/marketplace-access/internal/access"
)

func newResolveCmd(opts *options) *cobra.Command {
	var flags sessionFlags

	cmd := &cobra.Command{
		Use:   "resolve PATH",
		Short: "Decide whether a session may open a path",
		Example: `  accessctl resolve --role engineer --tier free /engineer/matches
  accessctl resolve /enterprise/sso`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := flags.session()
			if err != nil {
				return err
			}

			rd := opts.resolver.ResolvePath(session, args[0])

			return render(cmd.OutOrStdout(), opts.output, rd, func() *table {
				t := newTable("PATH", "OUTCOME", "FEATURE", "REDIRECT", "UPGRADE")
				upgrade := ""
				if rd.Decision != nil && rd.Decision.Upgrade != nil {
					upgrade = rd.Decision.Upgrade.CTAPath
				}
				t.addRow(rd.Path, string(rd.Outcome), orDash(rd.Feature), orDash(rd.Redirect), orDash(upgrade))
				return t
			})
		},
	}

	flags.bind(cmd)
	return cmd
}

type landingResult struct {
	Role    access.Role `json:"role,omitempty"`
	Landing string      `json:"landing"`
}

func newLandingCmd(opts *options) *cobra.Command {
	var flags sessionFlags

	cmd := &cobra.Command{
		Use:   "landing",
		Short: "Show where a session lands after login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := flags.session()
			if err != nil {
				return err
			}

			res := landingResult{Role: session.Role, Landing: opts.resolver.Landing(session)}

			return render(cmd.OutOrStdout(), opts.output, res, func() *table {
				t := newTable("ROLE", "LANDING")
				t.addRow(orDash(string(res.Role)), res.Landing)
				return t
			})
		},
	}

	flags.bind(cmd)
	return cmd
}

func newNavCmd(opts *options) *cobra.Command {
	var flags sessionFlags

	cmd := &cobra.Command{
		Use:   "nav",
		Short: "List the navigation items a session sees",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := flags.session()
			if err != nil {
				return err
			}
			if !session.Authenticated() {
				return fmt.Errorf("--role is required")
			}

			items := opts.resolver.Navigation(session)
			if items == nil {
				items = []access.MenuItem{}
			}

			return render(cmd.OutOrStdout(), opts.output, items, func() *table {
				t := newTable("FEATURE", "PATH", "REQUIRES", "ENABLED", "UPGRADE")
				for _, item := range items {
					upgrade := ""
					if item.Upgrade != nil {
						upgrade = item.Upgrade.CTAPath
					}
					t.addRow(item.Feature, item.Path, string(item.RequiredTier), yesNo(item.Enabled), orDash(upgrade))
				}
				return t
			})
		},
	}

	flags.bind(cmd)
	return cmd
}

func newMatrixCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "matrix",
		Short: "Print the feature by tier grid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows := opts.resolver.Catalog().Matrix()

			return render(cmd.OutOrStdout(), opts.output, rows, func() *table {
				tiers := access.Tiers()
				headers := []string{"FEATURE", "ROLES"}
				for _, tier := range tiers {
					headers = append(headers, strings.ToUpper(string(tier)))
				}

				t := newTable(headers...)
				for _, row := range rows {
					roles := make([]string, len(row.Roles))
					for i, r := range row.Roles {
						roles[i] = string(r)
					}
					cols := []string{row.Feature, strings.Join(roles, ",")}
					for _, tier := range tiers {
						cols = append(cols, yesNo(row.Tiers[tier]))
					}
					t.addRow(cols...)
				}
				return t
			})
		},
	}
}

type meetsResult struct {
	Actual   access.Tier `json:"actual"`
	Required access.Tier `json:"required"`
	Meets    bool        `json:"meets"`
}

func newMeetsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "meets ACTUAL REQUIRED",
		Short: "Check whether one tier satisfies another",
		Long: `meets compares two tiers by rank. ACTUAL is normalized, so an unknown
value is treated as free. REQUIRED must be a known tier.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			required, err := access.ParseTier(args[1])
			if err != nil {
				return err
			}
			actual := access.NormalizeTier(args[0])

			res := meetsResult{
				Actual:   actual,
				Required: required,
				Meets:    access.MeetsRequirement(actual, required),
			}

			return render(cmd.OutOrStdout(), opts.output, res, func() *table {
				t := newTable("ACTUAL", "REQUIRED", "MEETS")
				t.addRow(string(res.Actual), string(res.Required), yesNo(res.Meets))
				return t
			})
		},
	}
}
