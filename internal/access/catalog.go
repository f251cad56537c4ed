// AngelaMos | 2026
// catalog.go

package access

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type Feature struct {
	Key          string
	Label        string
	Description  string
	RequiredTier Tier
	Roles        []Role
}

func (f Feature) OfferedTo(role Role) bool {
	for _, r := range f.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Route binds a path segment inside a role's shell to a feature. An empty
// Segment is the shell's index (the dashboard itself).
type Route struct {
	Segment string
	Feature string
	InMenu  bool
}

// Shell is the dashboard layout mounted for one role.
type Shell struct {
	Role     Role
	BasePath string
	Routes   []Route
}

func (s Shell) route(segment string) (Route, bool) {
	for _, r := range s.Routes {
		if r.Segment == segment {
			return r, true
		}
	}
	return Route{}, false
}

func (s Shell) pathFor(r Route) string {
	if r.Segment == "" {
		return s.BasePath
	}
	return s.BasePath + "/" + r.Segment
}

// Catalog is the validated, read-only set of features and role shells.
type Catalog struct {
	features map[string]Feature
	order    []string
	shells   map[Role]Shell
}

func NewCatalog(features []Feature, shells []Shell) (*Catalog, error) {
	c := &Catalog{
		features: make(map[string]Feature, len(features)),
		order:    make([]string, 0, len(features)),
		shells:   make(map[Role]Shell, len(shells)),
	}

	var errs []error

	for _, f := range features {
		if f.Key == "" {
			errs = append(errs, errors.New("feature with empty key"))
			continue
		}
		if _, dup := c.features[f.Key]; dup {
			errs = append(errs, fmt.Errorf("duplicate feature %q", f.Key))
			continue
		}
		if !f.RequiredTier.Valid() {
			errs = append(errs, fmt.Errorf(
				"feature %q: invalid required tier %q", f.Key, f.RequiredTier))
		}
		if len(f.Roles) == 0 {
			errs = append(errs, fmt.Errorf("feature %q: no roles", f.Key))
		}
		for _, r := range f.Roles {
			if !r.Valid() {
				errs = append(errs, fmt.Errorf("feature %q: invalid role %q", f.Key, r))
			}
		}
		c.features[f.Key] = f
		c.order = append(c.order, f.Key)
	}

	basePaths := make(map[string]Role, len(shells))
	for _, s := range shells {
		if !s.Role.Valid() {
			errs = append(errs, fmt.Errorf("shell for invalid role %q", s.Role))
			continue
		}
		if _, dup := c.shells[s.Role]; dup {
			errs = append(errs, fmt.Errorf("role %q has more than one shell", s.Role))
			continue
		}
		if !strings.HasPrefix(s.BasePath, "/") || len(s.BasePath) < 2 ||
			strings.HasSuffix(s.BasePath, "/") {
			errs = append(errs, fmt.Errorf("role %q: malformed base path %q", s.Role, s.BasePath))
		}
		if other, dup := basePaths[s.BasePath]; dup {
			errs = append(errs, fmt.Errorf(
				"base path %q shared by %q and %q", s.BasePath, other, s.Role))
		}
		basePaths[s.BasePath] = s.Role

		segments := make(map[string]struct{}, len(s.Routes))
		for _, r := range s.Routes {
			if _, dup := segments[r.Segment]; dup {
				errs = append(errs, fmt.Errorf(
					"role %q: duplicate route segment %q", s.Role, r.Segment))
			}
			segments[r.Segment] = struct{}{}

			if strings.Contains(r.Segment, "/") {
				errs = append(errs, fmt.Errorf(
					"role %q: route segment %q must be a single path element", s.Role, r.Segment))
			}

			f, ok := c.features[r.Feature]
			if !ok {
				errs = append(errs, fmt.Errorf(
					"role %q: route %q references unknown feature %q", s.Role, r.Segment, r.Feature))
				continue
			}
			if !f.OfferedTo(s.Role) {
				errs = append(errs, fmt.Errorf(
					"role %q: feature %q is not offered to this role", s.Role, r.Feature))
			}
		}
		if _, ok := segments[""]; !ok {
			errs = append(errs, fmt.Errorf("role %q: shell has no index route", s.Role))
		}

		c.shells[s.Role] = s
	}

	for _, r := range orderedRoles {
		if _, ok := c.shells[r]; !ok {
			errs = append(errs, fmt.Errorf("role %q has no shell", r))
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid access catalog: %w", errors.Join(errs...))
	}

	return c, nil
}

func (c *Catalog) Feature(key string) (Feature, bool) {
	f, ok := c.features[key]
	return f, ok
}

// Features returns features in declaration order.
func (c *Catalog) Features() []Feature {
	out := make([]Feature, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.features[k])
	}
	return out
}

func (c *Catalog) Shell(role Role) (Shell, bool) {
	s, ok := c.shells[role]
	return s, ok
}

func (c *Catalog) BasePath(role Role) (string, bool) {
	s, ok := c.shells[role]
	if !ok {
		return "", false
	}
	return s.BasePath, true
}

// shellForPath finds the shell whose base path prefixes path.
func (c *Catalog) shellForPath(path string) (Shell, string, bool) {
	for _, s := range c.shells {
		if path == s.BasePath {
			return s, "", true
		}
		if rest, ok := strings.CutPrefix(path, s.BasePath+"/"); ok {
			return s, rest, true
		}
	}
	return Shell{}, "", false
}

// FeaturesUnlockedAt lists features whose requirement is exactly tier.
func (c *Catalog) FeaturesUnlockedAt(tier Tier) []Feature {
	var out []Feature
	for _, f := range c.Features() {
		if f.RequiredTier == tier {
			out = append(out, f)
		}
	}
	return out
}

type MatrixRow struct {
	Feature      string        `json:"feature"`
	Label        string        `json:"label"`
	RequiredTier Tier          `json:"required_tier"`
	Roles        []Role        `json:"roles"`
	Tiers        map[Tier]bool `json:"tiers"`
}

// Matrix is the feature x tier grid, sorted by required tier then key.
func (c *Catalog) Matrix() []MatrixRow {
	rows := make([]MatrixRow, 0, len(c.features))
	for _, f := range c.Features() {
		tiers := make(map[Tier]bool, len(orderedTiers))
		for _, t := range orderedTiers {
			tiers[t] = MeetsRequirement(t, f.RequiredTier)
		}
		rows = append(rows, MatrixRow{
			Feature:      f.Key,
			Label:        f.Label,
			RequiredTier: f.RequiredTier,
			Roles:        append([]Role(nil), f.Roles...),
			Tiers:        tiers,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		ri, rj := rows[i].RequiredTier.Rank(), rows[j].RequiredTier.Rank()
		if ri != rj {
			return ri < rj
		}
		return rows[i].Feature < rows[j].Feature
	})

	return rows
}
