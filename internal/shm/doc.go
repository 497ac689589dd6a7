// Package shm manages named, file-backed shared-memory regions.
//
// A region is a regular file under the shared-memory mount (/dev/shm on
// Linux, the temp directory elsewhere). Processes that open the same name see
// the same bytes through ordinary file I/O; the page cache is shared, so there
// is no per-handle caching to diverge.
//
// Features:
//   - Create-or-attach with a guard against concurrent creators
//   - Optional resize on open (omit it to attach without truncating)
//   - Mutex-guarded ReadAt / WriteAt within the process
//   - Length-prefixed frames for layering codec records at fixed offsets
//
// There is no change notification. Callers that need to know when new data
// is present pair a region with a message queue.
//
// Example Usage:
//
//	region, path, err := shm.OpenOrCreate("tables", shm.WithSize(1<<20))
//	if err != nil {
//		return err
//	}
//	defer region.Close()
//	next, err := region.WriteFrame(0, buf)
package shm
