// AngelaMos | 2026
// defaults.go

package access

import (
	"sync"
)

var (
	allMembers = []Role{RoleEngineer, RoleClient, RoleEnterprise}
	everyone   = []Role{RoleEngineer, RoleClient, RoleEnterprise, RoleAdmin}
	hiring     = []Role{RoleClient, RoleEnterprise}
)

var defaultFeatures = []Feature{
	{Key: "dashboard", Label: "Dashboard", RequiredTier: TierFree, Roles: everyone},
	{Key: "settings", Label: "Settings", RequiredTier: TierFree, Roles: everyone},
	{Key: "profile", Label: "Profile", RequiredTier: TierFree, Roles: allMembers},
	{Key: "messages", Label: "Messages", RequiredTier: TierFree, Roles: allMembers},
	{Key: "billing", Label: "Billing", RequiredTier: TierFree, Roles: allMembers},

	{Key: "job-board", Label: "Job board", RequiredTier: TierFree, Roles: []Role{RoleEngineer}},
	{Key: "applications", Label: "Applications", RequiredTier: TierFree, Roles: []Role{RoleEngineer}},
	{
		Key:          "featured-profile",
		Label:        "Featured profile",
		Description:  "Pin your profile to the top of client searches",
		RequiredTier: TierBasic,
		Roles:        []Role{RoleEngineer},
	},
	{
		Key:          "skill-assessments",
		Label:        "Skill assessments",
		Description:  "Verified skill badges on your profile",
		RequiredTier: TierBasic,
		Roles:        []Role{RoleEngineer},
	},

	{Key: "post-job", Label: "Post a job", RequiredTier: TierFree, Roles: hiring},
	{Key: "find-engineers", Label: "Find engineers", RequiredTier: TierFree, Roles: hiring},
	{
		Key:          "saved-engineers",
		Label:        "Saved engineers",
		Description:  "Shortlist engineers across searches",
		RequiredTier: TierBasic,
		Roles:        []Role{RoleClient},
	},
	{
		Key:          "contracts",
		Label:        "Contracts",
		Description:  "Contract templates and e-signature",
		RequiredTier: TierBasic,
		Roles:        hiring,
	},

	{
		Key:          "ai-matching",
		Label:        "AI matching",
		Description:  "Ranked matches between engineers and open roles",
		RequiredTier: TierPro,
		Roles:        allMembers,
	},
	{
		Key:          "market-insights",
		Label:        "Market insights",
		Description:  "Supply and demand trends across the marketplace",
		RequiredTier: TierPro,
		Roles:        allMembers,
	},

	{
		Key:          "team-management",
		Label:        "Team",
		Description:  "Seats, roles and hiring pipelines for your organization",
		RequiredTier: TierEnterprise,
		Roles:        []Role{RoleEnterprise},
	},
	{
		Key:          "api-access",
		Label:        "API access",
		RequiredTier: TierEnterprise,
		Roles:        []Role{RoleEnterprise},
	},
	{
		Key:          "sso",
		Label:        "Single sign-on",
		RequiredTier: TierEnterprise,
		Roles:        []Role{RoleEnterprise},
	},

	{Key: "user-management", Label: "Users", RequiredTier: TierFree, Roles: []Role{RoleAdmin}},
	{Key: "subscriptions", Label: "Subscriptions", RequiredTier: TierFree, Roles: []Role{RoleAdmin}},
	{Key: "reports", Label: "Reports", RequiredTier: TierFree, Roles: []Role{RoleAdmin}},
}

var defaultShells = []Shell{
	{
		Role:     RoleEngineer,
		BasePath: "/engineer",
		Routes: []Route{
			{Segment: "", Feature: "dashboard", InMenu: true},
			{Segment: "jobs", Feature: "job-board", InMenu: true},
			{Segment: "applications", Feature: "applications", InMenu: true},
			{Segment: "messages", Feature: "messages", InMenu: true},
			{Segment: "featured", Feature: "featured-profile", InMenu: true},
			{Segment: "assessments", Feature: "skill-assessments", InMenu: true},
			{Segment: "matches", Feature: "ai-matching", InMenu: true},
			{Segment: "insights", Feature: "market-insights", InMenu: true},
			{Segment: "profile", Feature: "profile"},
			{Segment: "billing", Feature: "billing"},
			{Segment: "settings", Feature: "settings"},
		},
	},
	{
		Role:     RoleClient,
		BasePath: "/free",
		Routes: []Route{
			{Segment: "", Feature: "dashboard", InMenu: true},
			{Segment: "post-job", Feature: "post-job", InMenu: true},
			{Segment: "engineers", Feature: "find-engineers", InMenu: true},
			{Segment: "saved", Feature: "saved-engineers", InMenu: true},
			{Segment: "contracts", Feature: "contracts", InMenu: true},
			{Segment: "messages", Feature: "messages", InMenu: true},
			{Segment: "matches", Feature: "ai-matching", InMenu: true},
			{Segment: "insights", Feature: "market-insights", InMenu: true},
			{Segment: "profile", Feature: "profile"},
			{Segment: "billing", Feature: "billing"},
			{Segment: "settings", Feature: "settings"},
		},
	},
	{
		Role:     RoleEnterprise,
		BasePath: "/enterprise",
		Routes: []Route{
			{Segment: "", Feature: "dashboard", InMenu: true},
			{Segment: "post-job", Feature: "post-job", InMenu: true},
			{Segment: "engineers", Feature: "find-engineers", InMenu: true},
			{Segment: "contracts", Feature: "contracts", InMenu: true},
			{Segment: "team", Feature: "team-management", InMenu: true},
			{Segment: "matches", Feature: "ai-matching", InMenu: true},
			{Segment: "insights", Feature: "market-insights", InMenu: true},
			{Segment: "api", Feature: "api-access", InMenu: true},
			{Segment: "sso", Feature: "sso", InMenu: true},
			{Segment: "messages", Feature: "messages", InMenu: true},
			{Segment: "profile", Feature: "profile"},
			{Segment: "billing", Feature: "billing"},
			{Segment: "settings", Feature: "settings"},
		},
	},
	{
		Role:     RoleAdmin,
		BasePath: "/admin",
		Routes: []Route{
			{Segment: "", Feature: "dashboard", InMenu: true},
			{Segment: "users", Feature: "user-management", InMenu: true},
			{Segment: "subscriptions", Feature: "subscriptions", InMenu: true},
			{Segment: "reports", Feature: "reports", InMenu: true},
			{Segment: "settings", Feature: "settings"},
		},
	},
}

var (
	defaultCatalog     *Catalog
	defaultCatalogOnce sync.Once
)

// DefaultCatalog returns the marketplace's built-in catalog. It panics if the
// static tables are inconsistent.
func DefaultCatalog() *Catalog {
	defaultCatalogOnce.Do(func() {
		c, err := NewCatalog(defaultFeatures, defaultShells)
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}
