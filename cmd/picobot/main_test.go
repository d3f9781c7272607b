package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPicobotCommand(t *testing.T) {
	cmd := NewPicobotCommand()

	require.NotNil(t, cmd)
	assert.Equal(t, "picobot", cmd.Use)
	assert.True(t, cmd.HasExample())
	assert.Nil(t, cmd.Run)

	allowed := map[string]struct{}{
		"audit":   {},
		"onboard": {},
		"perm":    {},
		"run":     {},
		"version": {},
	}

	subcommands := cmd.Commands()
	assert.Len(t, subcommands, len(allowed))

	for _, sub := range subcommands {
		_, found := allowed[sub.Name()]
		assert.True(t, found, "unexpected subcommand %q", sub.Name())
		assert.False(t, sub.Hidden)
	}
}
