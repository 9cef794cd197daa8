package lock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// These exercise construction and key/token/script shape only: hitting a
// real Redis server belongs in an integration suite, not here.

func Test_NewRedisLock_Namespaces_The_Key_And_Assigns_A_Unique_Token(t *testing.T) {
	a := NewRedisLock(nil, "region-1", 0)
	b := NewRedisLock(nil, "region-1", 0)

	require.Equal(t, "memkv:lock:region-1", a.key)
	require.Equal(t, "memkv:lock:region-1", b.key)
	require.NotEmpty(t, a.token)
	require.NotEqual(t, a.token, b.token, "each holder gets its own fencing token")
}

func Test_UnlockScript_Only_Deletes_When_The_Token_Still_Matches(t *testing.T) {
	require.Contains(t, unlockScript, "GET")
	require.Contains(t, unlockScript, "DEL")
}

func Test_ExtendScript_Only_Refreshes_TTL_When_The_Token_Still_Matches(t *testing.T) {
	require.Contains(t, extendScript, "GET")
	require.Contains(t, extendScript, "PEXPIRE")
}
