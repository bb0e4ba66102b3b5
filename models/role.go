package models

// Role is the closed set of roles a user can hold. It is stored as a plain
// string column, but code should only ever compare against these constants so
// that a typo cannot silently grant or deny access.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleAuthor Role = "author"
	RoleReader Role = "reader"
)

// ParseRole maps a raw string onto the enumeration. Anything unrecognized is
// rejected; callers must treat the failure as a validation error, never pick a
// fallback role.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin, RoleAuthor, RoleReader:
		return Role(s), true
	}
	return "", false
}

// Valid reports whether r is one of the known roles. Tokens are signed, but a
// role claim minted by an older release may still carry a value we no longer
// recognize.
func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}
