// AngelaMos | 2026
// session.go

package access

// Session is the per-request view of the caller the resolver works from.
type Session struct {
	UserID  string
	Role    Role
	Tier    Tier
	IsAdmin bool
}

// NewSession builds a session from raw claim values. An unknown role leaves
// the session unauthenticated; an unknown tier becomes free.
func NewSession(userID, role, tier string, isAdmin bool) Session {
	r, _ := ParseRole(role)
	return Session{
		UserID:  userID,
		Role:    r,
		Tier:    NormalizeTier(tier),
		IsAdmin: isAdmin || r == RoleAdmin,
	}
}

func (s Session) Authenticated() bool {
	return s.UserID != "" && s.Role != ""
}

func (s Session) Admin() bool {
	return s.Authenticated() && (s.IsAdmin || s.Role == RoleAdmin)
}
