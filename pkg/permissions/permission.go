// Package permissions models per-user access levels and stores them durably.
package permissions

import (
	"strconv"
	"strings"
)

// Permission is a bitmask of access flags.
type Permission uint32

const (
	None  Permission = 0
	User  Permission = 1 << 0
	Admin Permission = 1 << 1
	Owner Permission = 1 << 2

	all = User | Admin | Owner
)

// UserID identifies the principal a permission belongs to.
type UserID int64

func (id UserID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Map is a full dump of stored permissions, keyed by user.
type Map map[UserID]Permission

// Level ranks a mask by its highest flag: Owner=3, Admin=2, User=1, None=0.
func (p Permission) Level() uint8 {
	switch {
	case p&Owner != 0:
		return 3
	case p&Admin != 0:
		return 2
	case p&User != 0:
		return 1
	default:
		return 0
	}
}

// Has reports whether every bit of mask is set in p.
func (p Permission) Has(mask Permission) bool {
	return p&mask == mask
}

// Can reports whether p ranks at least as high as mask.
func (p Permission) Can(mask Permission) bool {
	return p.Level() >= mask.Level()
}

// Truncate drops bits that do not name a known flag.
func (p Permission) Truncate() Permission {
	return p & all
}

func (p Permission) String() string {
	if p == None {
		return "NONE"
	}

	names := make([]string, 0, 3)
	if p&User != 0 {
		names = append(names, "USER")
	}
	if p&Admin != 0 {
		names = append(names, "ADMIN")
	}
	if p&Owner != 0 {
		names = append(names, "OWNER")
	}
	if rest := p &^ all; rest != 0 {
		names = append(names, "0x"+strconv.FormatUint(uint64(rest), 16))
	}
	return strings.Join(names, "|")
}

// MarshalText implements encoding.TextMarshaler.
func (p Permission) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Permission) UnmarshalText(text []byte) error {
	parsed, err := ParsePermission(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
