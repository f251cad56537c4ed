// AngelaMos | 2026
// cli_test.go

package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/marketplace-access/internal/access"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		outcome  access.RouteOutcome
		redirect string
	}{
		{"anonymous", []string{"/engineer/jobs"}, access.RouteRedirect, "/auth?next=%2Fengineer%2Fjobs"},
		{"free engineer locked", []string{"--role", "engineer", "--tier", "free", "/engineer/matches"}, access.RouteLocked, ""},
		{"pro engineer allowed", []string{"--role", "engineer", "--tier", "pro", "/engineer/matches"}, access.RouteAllow, ""},
		{"foreign shell", []string{"--role", "client", "--tier", "pro", "/engineer/jobs"}, access.RouteRedirect, "/free"},
		{"admin flag", []string{"--role", "engineer", "--admin", "/enterprise/sso"}, access.RouteAllow, ""},
		{"unknown tier is free", []string{"--role", "engineer", "--tier", "gold", "/engineer/matches"}, access.RouteLocked, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, append([]string{"resolve", "-o", "json"}, tt.args...)...)
			require.NoError(t, err)

			var rd access.RouteDecision
			require.NoError(t, json.Unmarshal([]byte(out), &rd))
			assert.Equal(t, tt.outcome, rd.Outcome)
			assert.Equal(t, tt.redirect, rd.Redirect)
		})
	}
}

func TestResolve_Table(t *testing.T) {
	out, err := run(t, "resolve", "--role", "client", "--tier", "basic", "/free/matches")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "OUTCOME")
	assert.Contains(t, lines[2], "locked")
	assert.Contains(t, lines[2], "/pricing?plan=pro")
}

func TestResolve_Errors(t *testing.T) {
	_, err := run(t, "resolve", "--role", "recruiter", "/engineer")
	assert.ErrorContains(t, err, "unknown role")

	_, err = run(t, "resolve")
	assert.Error(t, err)

	_, err = run(t, "resolve", "-o", "xml", "/engineer")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestLanding(t *testing.T) {
	out, err := run(t, "landing", "--role", "enterprise", "-o", "json")
	require.NoError(t, err)

	var res landingResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "/enterprise", res.Landing)

	out, err = run(t, "landing", "-o", "json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, access.AuthEntryPath, res.Landing)
}

func TestNav(t *testing.T) {
	out, err := run(t, "nav", "--role", "client", "--tier", "basic", "-o", "json")
	require.NoError(t, err)

	var items []access.MenuItem
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.NotEmpty(t, items)
	for _, item := range items {
		assert.True(t, strings.HasPrefix(item.Path, "/free"), item.Path)
		if item.Locked {
			assert.False(t, item.Enabled, item.Feature)
		}
	}

	_, err = run(t, "nav")
	assert.ErrorContains(t, err, "--role is required")
}

func TestMatrix(t *testing.T) {
	out, err := run(t, "matrix")
	require.NoError(t, err)
	assert.Contains(t, out, "ENTERPRISE")
	assert.Contains(t, out, "ai-matching")

	out, err = run(t, "matrix", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "required_tier:")
}

func TestMeets(t *testing.T) {
	tests := []struct {
		actual   string
		required string
		want     bool
	}{
		{"pro", "basic", true},
		{"basic", "pro", false},
		{"enterprise", "enterprise", true},
		{"gold", "basic", false},
		{"gold", "free", true},
	}

	for _, tt := range tests {
		t.Run(tt.actual+">="+tt.required, func(t *testing.T) {
			out, err := run(t, "meets", tt.actual, tt.required, "-o", "json")
			require.NoError(t, err)

			var res meetsResult
			require.NoError(t, json.Unmarshal([]byte(out), &res))
			assert.Equal(t, tt.want, res.Meets)
		})
	}

	_, err := run(t, "meets", "pro", "platinum")
	assert.Error(t, err)
}

func TestKeygen(t *testing.T) {
	dir := t.TempDir()
	private := filepath.Join(dir, "keys", "private.pem")
	public := filepath.Join(dir, "keys", "public.pem")

	_, err := run(t, "keygen", "--private", private, "--public", public)
	require.NoError(t, err)
	assert.FileExists(t, private)
	assert.FileExists(t, public)

	before, err := os.ReadFile(private)
	require.NoError(t, err)

	_, err = run(t, "keygen", "--private", private, "--public", public)
	assert.ErrorContains(t, err, "already exists")

	_, err = run(t, "keygen", "--private", private, "--public", public, "--force")
	require.NoError(t, err)

	after, err := os.ReadFile(private)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}
