package permissions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelOrdering(t *testing.T) {
	assert.Greater(t, Owner.Level(), Admin.Level())
	assert.Greater(t, Admin.Level(), User.Level())
	assert.Greater(t, User.Level(), None.Level())

	assert.Equal(t, uint8(3), (User | Owner).Level())
	assert.Equal(t, uint8(2), (User | Admin).Level())
}

func TestHasIsBitContainment(t *testing.T) {
	p := User | Admin

	assert.True(t, p.Has(User))
	assert.True(t, p.Has(User|Admin))
	assert.True(t, p.Has(None))
	assert.False(t, p.Has(Owner))
	assert.False(t, Owner.Has(Admin))
}

func TestCanIsLevelComparison(t *testing.T) {
	p := User | Admin

	assert.True(t, p.Can(Admin))
	assert.True(t, p.Can(User))
	assert.False(t, p.Can(Owner))

	// Owner outranks Admin without holding the Admin bit.
	assert.True(t, Owner.Can(Admin))
	assert.False(t, Owner.Has(Admin))
	assert.True(t, None.Can(None))
	assert.False(t, None.Can(User))
}

func TestCanMatchesLevelsExhaustively(t *testing.T) {
	for subject := Permission(0); subject <= all; subject++ {
		for req := Permission(0); req <= all; req++ {
			assert.Equal(t, subject.Level() >= req.Level(), subject.Can(req), "subject=%s req=%s", subject, req)
		}
	}
}

func TestPermissionString(t *testing.T) {
	assert.Equal(t, "NONE", None.String())
	assert.Equal(t, "USER", User.String())
	assert.Equal(t, "USER|ADMIN", (User | Admin).String())
	assert.Equal(t, "USER|ADMIN|OWNER", (User | Admin | Owner).String())
	assert.Equal(t, "OWNER|0x8", (Owner | 8).String())
}

func TestParsePermission(t *testing.T) {
	tests := []struct {
		in      string
		want    Permission
		wantErr bool
	}{
		{in: "USER", want: User},
		{in: "user|Admin", want: User | Admin},
		{in: " owner ", want: Owner},
		{in: "ADMIN | OWNER", want: Admin | Owner},
		{in: "none", want: None},
		{in: "", wantErr: true},
		{in: "root", wantErr: true},
		{in: "USER|", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePermission(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePermission_RoundTripsString(t *testing.T) {
	for p := Permission(0); p <= all; p++ {
		got, err := ParsePermission(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}

func TestParseUserPermission(t *testing.T) {
	id, perm, err := ParseUserPermission("123456 user|admin")
	require.NoError(t, err)
	assert.Equal(t, UserID(123456), id)
	assert.Equal(t, User|Admin, perm)

	id, perm, err = ParseUserPermission("  77   user | owner ")
	require.NoError(t, err)
	assert.Equal(t, UserID(77), id)
	assert.Equal(t, User|Owner, perm)

	_, _, err = ParseUserPermission("123456")
	assert.Error(t, err)

	_, _, err = ParseUserPermission("123456   ")
	assert.Error(t, err)

	_, _, err = ParseUserPermission("abc USER")
	assert.ErrorContains(t, err, "parsing user id failed")

	_, _, err = ParseUserPermission("1 GOD")
	assert.ErrorContains(t, err, "parsing permission failed")
}
