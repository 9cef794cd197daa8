// pkg/store/codes.go

package store

import "github.com/pkg/errors"

// Code is the return code of a MapCore operation: most outcomes are
// expected results rather than exceptions and are reported this way
// instead of as an error.
type Code int

const (
	// RTOk indicates the operation completed normally.
	RTOk Code = iota
	// RTDirtyData indicates a dirty entry blocked the operation (erase
	// with checkDirty, for instance).
	RTDirtyData
	// RTNoData indicates the key was not present.
	RTNoData
	// RTNeedSync indicates the returned entry needs writeback.
	RTNeedSync
	// RTNoNeedSync indicates the returned entry does not need writeback yet.
	RTNoNeedSync
	// RTEraseOk indicates a victim was evicted and elimination should continue.
	RTEraseOk
	// RTReadOnly indicates the map is read-only.
	RTReadOnly
	// RTNoMemory indicates the allocator has no space and auto-evict is off.
	RTNoMemory
	// RTOnlyKey indicates the entry carries a key but no value.
	RTOnlyKey
	// RTNeedBackup indicates the returned entry needs backing up.
	RTNeedBackup
	// RTNoGet indicates the entry has never been read.
	RTNoGet
	// RTDone indicates a sweep (erase/sync/backup) has nothing left to do.
	RTDone
)

func (c Code) String() string {
	switch c {
	case RTOk:
		return "OK"
	case RTDirtyData:
		return "DirtyData"
	case RTNoData:
		return "NoData"
	case RTNeedSync:
		return "NeedSync"
	case RTNoNeedSync:
		return "NoNeedSync"
	case RTEraseOk:
		return "EraseOk"
	case RTReadOnly:
		return "ReadOnly"
	case RTNoMemory:
		return "NoMemory"
	case RTOnlyKey:
		return "OnlyKey"
	case RTNeedBackup:
		return "NeedBackup"
	case RTNoGet:
		return "NoGet"
	case RTDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// Sentinel errors for the corruption/version class of failures: these
// are surfaced on attach/load, not on ordinary operations.
var (
	ErrDecode          = errors.New("decode error")
	ErrException       = errors.New("internal invariant violation")
	ErrLoadData        = errors.New("load data error")
	ErrVersionMismatch = errors.New("version mismatch")
	ErrDumpFile        = errors.New("dump file error")
	ErrLoadFile        = errors.New("load file error")
	ErrNotAll          = errors.New("not fully replicated")
	ErrOutOfChunks     = errors.New("out of chunks")
	ErrNoMemory        = errors.New("no memory")
)
