package uuid

import (
	"testing"

	goUUID "github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNewIDIsUniqueV7(t *testing.T) {
	t.Parallel()

	gen := New()
	a, err := gen.NewID()
	require.NoError(t, err)
	b, err := gen.NewID()
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	parsed, err := goUUID.Parse(a)
	require.NoError(t, err)
	require.Equal(t, goUUID.Version(7), parsed.Version())
}

func TestValid(t *testing.T) {
	t.Parallel()

	id, err := New().NewID()
	require.NoError(t, err)
	require.True(t, Valid(id))
	require.False(t, Valid(""))
	require.False(t, Valid("not-a-uuid"))
	require.False(t, Valid("{"+id+"}"))
}
