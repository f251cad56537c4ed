// AngelaMos | 2026
// resolver.go

package access

import (
	"net/url"
	"path"
	"strings"
)

type RouteOutcome string

const (
	RouteAllow    RouteOutcome = "allow"
	RouteLocked   RouteOutcome = "locked"
	RouteRedirect RouteOutcome = "redirect"
	RouteNotFound RouteOutcome = "not_found"
)

type RouteDecision struct {
	Path     string       `json:"path"`
	Outcome  RouteOutcome `json:"outcome"`
	Redirect string       `json:"redirect,omitempty"`
	Feature  string       `json:"feature,omitempty"`
	Decision *Decision    `json:"decision,omitempty"`
}

type MenuItem struct {
	Feature      string         `json:"feature"`
	Label        string         `json:"label"`
	Path         string         `json:"path"`
	Enabled      bool           `json:"enabled"`
	Locked       bool           `json:"locked"`
	RequiredTier Tier           `json:"required_tier"`
	Upgrade      *UpgradePrompt `json:"upgrade,omitempty"`
}

var publicPrefixes = []string{AuthEntryPath, PricingPath}

// Resolver answers landing, navigation and route questions for a session.
// It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	catalog *Catalog
}

func NewResolver(catalog *Catalog) *Resolver {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Resolver{catalog: catalog}
}

func (r *Resolver) Catalog() *Catalog {
	return r.catalog
}

// Landing is the dashboard base path for the session's role, or the auth
// entry point when there is no usable session.
func (r *Resolver) Landing(s Session) string {
	if !s.Authenticated() {
		return AuthEntryPath
	}
	base, ok := r.catalog.BasePath(s.Role)
	if !ok {
		return AuthEntryPath
	}
	return base
}

// Navigation lists the menu of the session's own shell. Locked items stay
// visible with their upgrade prompt.
func (r *Resolver) Navigation(s Session) []MenuItem {
	if !s.Authenticated() {
		return nil
	}
	shell, ok := r.catalog.Shell(s.Role)
	if !ok {
		return nil
	}

	items := make([]MenuItem, 0, len(shell.Routes))
	for _, route := range shell.Routes {
		if !route.InMenu {
			continue
		}
		f, ok := r.catalog.Feature(route.Feature)
		if !ok {
			continue
		}
		d := Evaluate(s, f)
		items = append(items, MenuItem{
			Feature:      f.Key,
			Label:        f.Label,
			Path:         shell.pathFor(route),
			Enabled:      d.Allowed(),
			Locked:       d.Outcome == OutcomeLocked,
			RequiredTier: f.RequiredTier,
			Upgrade:      d.Upgrade,
		})
	}
	return items
}

// CheckFeature evaluates a single feature by key.
func (r *Resolver) CheckFeature(s Session, key string) (Decision, bool) {
	f, ok := r.catalog.Feature(key)
	if !ok {
		return Decision{}, false
	}
	return Evaluate(s, f), true
}

func (r *Resolver) ResolvePath(s Session, rawPath string) RouteDecision {
	p := cleanPath(rawPath)
	rd := RouteDecision{Path: p}

	if isPublic(p) {
		rd.Outcome = RouteAllow
		return rd
	}

	if !s.Authenticated() {
		rd.Outcome = RouteRedirect
		rd.Redirect = AuthEntryPath + "?" + url.Values{"next": {p}}.Encode()
		return rd
	}

	shell, rest, ok := r.catalog.shellForPath(p)
	if !ok {
		rd.Outcome = RouteNotFound
		return rd
	}

	if shell.Role != s.Role && !s.Admin() {
		rd.Outcome = RouteRedirect
		rd.Redirect = r.Landing(s)
		return rd
	}

	segment, _, _ := strings.Cut(rest, "/")
	route, ok := shell.route(segment)
	if !ok {
		rd.Outcome = RouteNotFound
		return rd
	}

	f, ok := r.catalog.Feature(route.Feature)
	if !ok {
		rd.Outcome = RouteNotFound
		return rd
	}

	// An admin inside another role's shell is evaluated as that role.
	gateSession := s
	gateSession.IsAdmin = s.Admin()
	if shell.Role != s.Role {
		gateSession.Role = shell.Role
	}

	d := Evaluate(gateSession, f)
	rd.Feature = f.Key
	rd.Decision = &d

	switch d.Outcome {
	case OutcomeAllowed:
		rd.Outcome = RouteAllow
	case OutcomeLocked:
		rd.Outcome = RouteLocked
	default:
		rd.Outcome = RouteNotFound
	}

	return rd
}

func cleanPath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

func isPublic(p string) bool {
	if p == "/" {
		return true
	}
	for _, prefix := range publicPrefixes {
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}
	return false
}
