//go:build !linux

package pin

// Default returns NoopPinner on platforms without sched_setaffinity; the
// worker still runs, just not pinned, and §7's PinningError policy (log and
// continue unpinned) applies uniformly whether the failure is "no such
// syscall" or "syscall returned EINVAL".
func Default() Pinner { return NoopPinner{} }
