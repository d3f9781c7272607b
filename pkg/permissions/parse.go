package permissions

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrEmptyPermission is returned when a permission string has no content.
var ErrEmptyPermission = errors.New("empty permission string")

// ParsePermission parses a case-insensitive, |-separated list of flag names
// such as "user|ADMIN". "NONE" is accepted and contributes no bits.
func ParsePermission(s string) (Permission, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return None, ErrEmptyPermission
	}

	mask := None
	for _, part := range strings.Split(s, "|") {
		switch name := strings.ToUpper(strings.TrimSpace(part)); name {
		case "USER":
			mask |= User
		case "ADMIN":
			mask |= Admin
		case "OWNER":
			mask |= Owner
		case "NONE":
		default:
			return None, fmt.Errorf("unknown permission: %q", name)
		}
	}
	return mask, nil
}

// ParseUserID parses a decimal Telegram user id.
func ParseUserID(s string) (UserID, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user id: %q", s)
	}
	return UserID(id), nil
}

// ParseUserPermission parses an entry of the form "<user id> <permission>".
// The permission may contain spaces around its separators.
func ParseUserPermission(s string) (UserID, Permission, error) {
	rawID, rawPerm, ok := strings.Cut(strings.TrimSpace(s), " ")
	if !ok || strings.TrimSpace(rawPerm) == "" {
		return 0, None, fmt.Errorf("invalid permission entry: %q", s)
	}

	id, err := ParseUserID(rawID)
	if err != nil {
		return 0, None, fmt.Errorf("parsing user id failed: %w", err)
	}
	perm, err := ParsePermission(rawPerm)
	if err != nil {
		return 0, None, fmt.Errorf("parsing permission failed: %w", err)
	}
	return id, perm, nil
}
