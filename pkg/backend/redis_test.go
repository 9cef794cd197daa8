package backend

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// These exercise construction and key/script shape only: hitting a real
// Redis server belongs in an integration suite, not here.

func Test_NewRedisFlusher_Builds_A_Namespaced_Hash_Key(t *testing.T) {
	f := NewRedisFlusher("127.0.0.1:6379", "myregion")
	require.Equal(t, "myregion:mykey", f.hashKey([]byte("mykey")))
}

func Test_NewRedisFlusher_Wires_A_Fresh_Singleflight_Controller(t *testing.T) {
	f := NewRedisFlusher("127.0.0.1:6379", "p")
	require.NotNil(t, f.sf)
}

func Test_SetIfNewerScript_Guards_The_Timestamp_Before_Writing(t *testing.T) {
	require.Contains(t, setIfNewerScript, "HGET")
	require.Contains(t, setIfNewerScript, "HSET")
	require.True(t, strings.Contains(setIfNewerScript, "tonumber"))
}
