// Package fs provides filesystem abstractions for testability and
// fault injection.
//
//   - [LocalFS]: production implementation over the os package
//   - [FaultyFS]: test wrapper that injects write/sync/close failures
//
// [WriteAtomic] implements the store's durable-publish idiom: temp
// file, fsync, rename, directory fsync.
//
// The package intentionally has no context.Context parameters: local
// filesystem calls are fast and not interruptible at the syscall
// level.
package fs
