package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestMap(t *testing.T, regionSize uint64) *MapCore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "region.mkv")
	mc, err := Create(Config{
		Path:         path,
		RegionSize:   regionSize,
		MinChunkSize: 64,
		MaxChunkSize: 1024,
		Factor:       1.5,
		BucketRatio:  2,
		AutoEvict:    true,
		EraseBatch:   4,
		WritebackAge: 30 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mc.Close() })
	return mc
}

func newTestMapWithAge(t *testing.T, regionSize uint64, age time.Duration) *MapCore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "region.mkv")
	mc, err := Create(Config{
		Path:         path,
		RegionSize:   regionSize,
		MinChunkSize: 64,
		MaxChunkSize: 1024,
		Factor:       1.5,
		BucketRatio:  2,
		AutoEvict:    true,
		EraseBatch:   4,
		WritebackAge: age,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mc.Close() })
	return mc
}

func Test_Set_Then_Get_Returns_The_Same_Value(t *testing.T) {
	mc := newTestMap(t, 1<<20)

	code, _, err := mc.Set([]byte("hello"), []byte("world"), true)
	require.NoError(t, err)
	require.Equal(t, RTOk, code)

	bd, code, err := mc.Get([]byte("hello"), false)
	require.NoError(t, err)
	require.Equal(t, RTDirtyData, code) // just written, still dirty
	require.Equal(t, []byte("world"), bd.Value)
}

func Test_Get_Returns_RTNoData_For_Missing_Key(t *testing.T) {
	mc := newTestMap(t, 1<<20)

	bd, code, err := mc.Get([]byte("missing"), false)
	require.NoError(t, err)
	require.Equal(t, RTNoData, code)
	require.Nil(t, bd)
}

func Test_SetOnlyKey_Reports_RTOnlyKey_On_Get(t *testing.T) {
	mc := newTestMap(t, 1<<20)

	_, _, err := mc.SetOnlyKey([]byte("k"))
	require.NoError(t, err)

	bd, code, err := mc.Get([]byte("k"), false)
	require.NoError(t, err)
	require.Equal(t, RTOnlyKey, code)
	require.Empty(t, bd.Value)
	require.False(t, bd.Dirty, "only-key entries can never be dirty")
	require.Equal(t, uint64(0), mc.Describe().DirtyCount)
}

func Test_Set_Overwrites_An_Existing_Key(t *testing.T) {
	mc := newTestMap(t, 1<<20)

	_, _, err := mc.Set([]byte("k"), []byte("v1"), true)
	require.NoError(t, err)
	_, _, err = mc.Set([]byte("k"), []byte("v2"), true)
	require.NoError(t, err)

	bd, _, err := mc.Get([]byte("k"), true)
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), bd.Value)
	require.Equal(t, uint64(1), mc.Describe().ElementCount)
}

func Test_Del_Removes_A_Key_And_Get_No_Longer_Finds_It(t *testing.T) {
	mc := newTestMap(t, 1<<20)

	_, _, err := mc.Set([]byte("k"), []byte("v"), true)
	require.NoError(t, err)

	code, err := mc.Del([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, RTOk, code)

	_, code, err = mc.Get([]byte("k"), false)
	require.NoError(t, err)
	require.Equal(t, RTNoData, code)
}

func Test_Del_Of_Missing_Key_Returns_RTNoData(t *testing.T) {
	mc := newTestMap(t, 1<<20)

	code, err := mc.Del([]byte("nope"))
	require.NoError(t, err)
	require.Equal(t, RTNoData, code)
}

func Test_Sync_Flushes_Dirty_Entries_And_Clears_The_Dirty_Flag(t *testing.T) {
	mc := newTestMap(t, 1<<20)

	_, _, err := mc.Set([]byte("a"), []byte("1"), true)
	require.NoError(t, err)
	_, _, err = mc.Set([]byte("b"), []byte("2"), true)
	require.NoError(t, err)

	var flushed [][2]string
	n, code, err := mc.Sync(func(k, v []byte) error {
		flushed = append(flushed, [2]string{string(k), string(v)})
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, RTOk, code)
	require.Equal(t, uint64(2), n)
	require.Len(t, flushed, 2)

	bd, code, err := mc.Get([]byte("a"), true)
	require.NoError(t, err)
	require.Equal(t, RTOk, code) // clean now
	require.False(t, bd.Dirty)
	require.Equal(t, uint64(0), mc.Describe().DirtyCount)
}

func Test_Sync_With_No_Dirty_Entries_Returns_RTDone(t *testing.T) {
	mc := newTestMap(t, 1<<20)

	n, code, err := mc.Sync(func(k, v []byte) error { return nil })
	require.NoError(t, err)
	require.Equal(t, RTDone, code)
	require.Equal(t, uint64(0), n)
}

func Test_Sync_Stops_At_First_Flush_Error_And_Leaves_The_Rest_Dirty(t *testing.T) {
	mc := newTestMap(t, 1<<20)
	_, _, err := mc.Set([]byte("a"), []byte("1"), true)
	require.NoError(t, err)
	_, _, err = mc.Set([]byte("b"), []byte("2"), true)
	require.NoError(t, err)

	n, _, err := mc.Sync(func(k, v []byte) error {
		return errFlush
	})
	require.Error(t, err)
	require.Equal(t, uint64(0), n)
	require.Equal(t, uint64(2), mc.Describe().DirtyCount)
}

func Test_Sync_Skips_Entries_Not_Yet_Due_For_Writeback(t *testing.T) {
	mc := newTestMapWithAge(t, 1<<20, time.Hour)
	_, _, err := mc.Set([]byte("k"), []byte("v"), true)
	require.NoError(t, err)

	// first sync flushes (LastSyncTime was still zero) and stamps it
	n, code, err := mc.Sync(func(k, v []byte) error { return nil })
	require.NoError(t, err)
	require.Equal(t, RTOk, code)
	require.Equal(t, uint64(1), n)

	// dirtied again immediately, well inside the one-hour WritebackAge
	code, err = mc.SetDirty([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, RTOk, code)

	n, code, err = mc.Sync(func(k, v []byte) error {
		t.Fatal("flush must not run before WritebackAge elapses")
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, RTDone, code)
	require.Equal(t, uint64(0), n)
	require.Equal(t, uint64(1), mc.Describe().DirtyCount)
}

func Test_CheckDirty_And_SetClean_Round_Trip(t *testing.T) {
	mc := newTestMap(t, 1<<20)
	_, _, err := mc.Set([]byte("k"), []byte("v"), true)
	require.NoError(t, err)

	code, err := mc.CheckDirty([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, RTNeedSync, code)

	code, err = mc.SetClean([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, RTOk, code)

	code, err = mc.CheckDirty([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, RTNoNeedSync, code)
}

func Test_Erase_Evicts_Entries_Until_Below_Target_Load(t *testing.T) {
	mc := newTestMap(t, 1<<16)

	for i := 0; i < 200; i++ {
		k := []byte{byte(i), byte(i >> 8)}
		_, _, _ = mc.Set(k, []byte("payload-value"), true)
	}
	before := mc.Describe()
	require.Greater(t, before.ElementCount, uint64(0))

	// Every entry lands in the 144-byte class, 20 of the region's 160
	// chunks, so load peaks at 12.5%; a 10% target forces evictions.
	victims, code, err := mc.Erase(10, false, 1000)
	require.NoError(t, err)
	require.Equal(t, RTEraseOk, code)
	require.Greater(t, len(victims), 0)

	after := mc.Describe()
	require.Less(t, after.ElementCount, before.ElementCount)
}

func Test_Erase_At_100_Percent_Strictly_Decreases_Used_Chunks_Until_Empty(t *testing.T) {
	mc := newTestMap(t, 1<<16)
	for i := 0; i < 50; i++ {
		k := []byte{byte(i), byte(i >> 8)}
		_, _, err := mc.Set(k, []byte("payload-value"), true)
		require.NoError(t, err)
	}

	for {
		before := mc.Describe().UsedChunk
		victims, code, err := mc.Erase(100, false, 1)
		require.NoError(t, err)
		if code == RTDone {
			require.Equal(t, uint64(0), mc.Describe().ElementCount)
			break
		}
		require.Equal(t, RTEraseOk, code)
		require.Len(t, victims, 1)
		require.Less(t, mc.Describe().UsedChunk, before)
	}
}

func Test_AutoEvict_Reclaims_Space_When_The_Region_Is_Full(t *testing.T) {
	mc := newTestMap(t, 1<<15)

	var lastErr error
	sawEviction := false
	for i := 0; i < 500; i++ {
		k := []byte{byte(i), byte(i >> 8), byte(i >> 16)}
		_, evicted, err := mc.Set(k, []byte("some-fixed-size-value"), true)
		if len(evicted) > 0 {
			sawEviction = true
		}
		if err != nil {
			lastErr = err
			break
		}
	}
	require.NoError(t, lastErr, "auto-evict should keep allocation succeeding by evicting LRU victims")
	require.True(t, sawEviction, "Set must surface the entries auto-evict removed, per its evicted_entries return")
}

func Test_Set_Evicted_Entries_Are_Still_Dirty_And_Unflushed(t *testing.T) {
	mc := newTestMap(t, 1<<15)

	var evicted []*BlockData
	for i := 0; i < 500 && len(evicted) == 0; i++ {
		k := []byte{byte(i), byte(i >> 8), byte(i >> 16)}
		_, ev, err := mc.Set(k, []byte("some-fixed-size-value"), true)
		require.NoError(t, err)
		evicted = ev
	}
	require.NotEmpty(t, evicted, "region should fill up and start evicting within 500 keys")
	for _, bd := range evicted {
		require.True(t, bd.Dirty, "a Set-evicted entry was never flushed and is still dirty")
	}
}

func Test_Set_With_Dirty_False_Never_Joins_The_Dirty_Chain(t *testing.T) {
	mc := newTestMap(t, 1<<20)

	code, _, err := mc.Set([]byte("k"), []byte("v"), false)
	require.NoError(t, err)
	require.Equal(t, RTOk, code)

	bd, code, err := mc.Get([]byte("k"), true)
	require.NoError(t, err)
	require.Equal(t, RTOk, code)
	require.False(t, bd.Dirty)
	require.Equal(t, uint64(0), mc.Describe().DirtyCount)
}

func Test_SetDirtyAfterSync_Requeues_The_Entry_As_Dirty_At_The_Tail(t *testing.T) {
	mc := newTestMap(t, 1<<20)

	_, _, err := mc.Set([]byte("a"), []byte("1"), true)
	require.NoError(t, err)
	_, _, err = mc.Set([]byte("b"), []byte("2"), true)
	require.NoError(t, err)
	require.Equal(t, uint64(2), mc.Describe().DirtyCount)

	// a failed writeback of "a" must leave it dirty, not clean
	code, err := mc.SetDirtyAfterSync([]byte("a"), time.Now())
	require.NoError(t, err)
	require.Equal(t, RTOk, code)
	require.Equal(t, uint64(2), mc.Describe().DirtyCount)

	bd, code, err := mc.Get([]byte("a"), true)
	require.NoError(t, err)
	require.Equal(t, RTDirtyData, code)
	require.True(t, bd.Dirty)

	// requeued to the tail, so the DIRTY chain's oldest entry is now "a"
	require.Equal(t, bd.Offset, mc.h.DirtyTail())
}

func Test_SetDirty_And_SetDirtyAfterSync_Reject_OnlyKey_Entries(t *testing.T) {
	mc := newTestMap(t, 1<<20)
	_, _, err := mc.SetOnlyKey([]byte("k"))
	require.NoError(t, err)

	code, err := mc.SetDirty([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, RTOnlyKey, code)

	code, err = mc.SetDirtyAfterSync([]byte("k"), time.Now())
	require.NoError(t, err)
	require.Equal(t, RTOnlyKey, code)

	require.Equal(t, uint64(0), mc.Describe().DirtyCount)
}

func Test_Erase_Returns_Victims_So_A_Caller_Can_Rescue_Dirty_Ones(t *testing.T) {
	mc := newTestMap(t, 1<<16)
	for i := 0; i < 50; i++ {
		k := []byte{byte(i), byte(i >> 8)}
		_, _, err := mc.Set(k, []byte("payload-value"), true)
		require.NoError(t, err)
	}

	// 20 of 160 chunks used (12.5% load), so a 10% target forces evictions.
	victims, code, err := mc.Erase(10, false, 1000)
	require.NoError(t, err)
	require.Equal(t, RTEraseOk, code)
	require.NotEmpty(t, victims)
	for _, bd := range victims {
		require.NotEmpty(t, bd.Key)
	}
}

func Test_Describe_Reports_UsedChunk_Growing_And_Shrinking_With_Set_And_Del(t *testing.T) {
	mc := newTestMap(t, 1<<20)

	base := mc.Describe().UsedChunk
	_, _, err := mc.Set([]byte("k"), []byte("v"), true)
	require.NoError(t, err)
	afterSet := mc.Describe().UsedChunk
	require.Greater(t, afterSet, base)

	_, err = mc.Del([]byte("k"))
	require.NoError(t, err)
	afterDel := mc.Describe().UsedChunk
	require.Equal(t, base, afterDel)
}

func Test_Recover_Replays_A_Prepared_Journal_Left_By_A_Simulated_Crash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region.mkv")
	mc, err := Create(Config{
		Path: path, RegionSize: 1 << 20, MinChunkSize: 64, MaxChunkSize: 1024,
		Factor: 1.5, BucketRatio: 2, AutoEvict: true,
	})
	require.NoError(t, err)

	_, _, err = mc.Set([]byte("k"), []byte("v"), true)
	require.NoError(t, err)

	// Simulate a crash mid-commit: stage a write and stop before it's
	// marked idle again.
	mc.j.writeSlot(0, slot{offset: hElementCount, width: Width8, value: 99})
	putWord(mc.region.buf, journalCursorOff, Width8, 1)
	mc.j.setStatus(journalPrepared)
	require.NoError(t, mc.Close())

	mc2, err := Connect(path, nil)
	require.NoError(t, err)
	defer mc2.Close()

	require.True(t, mc2.j.IsIdle())
	require.Equal(t, uint64(99), mc2.h.ElementCount())
}

func Test_Connect_Rejects_A_Region_With_A_Mismatched_Version(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region.mkv")
	mc, err := Create(Config{
		Path: path, RegionSize: 1 << 20, MinChunkSize: 64, MaxChunkSize: 1024,
		Factor: 1.5, BucketRatio: 2,
	})
	require.NoError(t, err)
	putWord(mc.region.buf, hVerMajor, Width8, MaxVersion+1)
	require.NoError(t, mc.Close())

	_, err = Connect(path, nil)
	require.ErrorIs(t, err, ErrVersionMismatch)
}

func Test_Backup_Skips_OnlyKey_Entries(t *testing.T) {
	mc := newTestMap(t, 1<<20)

	_, _, err := mc.Set([]byte("a"), []byte("1"), true)
	require.NoError(t, err)
	_, _, err = mc.SetOnlyKey([]byte("b"))
	require.NoError(t, err)
	_, _, err = mc.Set([]byte("c"), []byte("3"), true)
	require.NoError(t, err)

	var seen []string
	code, err := mc.Backup(func(bd *BlockData) error {
		seen = append(seen, string(bd.Key))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, RTOk, code)
	require.ElementsMatch(t, []string{"a", "c"}, seen)
}

func Test_Backup_On_An_Empty_Map_Returns_RTDone(t *testing.T) {
	mc := newTestMap(t, 1<<20)

	code, err := mc.Backup(func(bd *BlockData) error {
		t.Fatal("visit must not run on an empty map")
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, RTDone, code)
}

var errFlush = errFlushSentinel{}

type errFlushSentinel struct{}

func (errFlushSentinel) Error() string { return "flush failed" }
