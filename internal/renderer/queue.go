package renderer

import "context"

// SyncQueue reconciles a renderer's native queue with desired, the ordered
// list of URIs the channel/playlist layer wants playing next, using the
// smallest set of operations the backend's capabilities allow.
//
// It never reorders items in place — only the common leading run is kept,
// everything after the first divergence is dropped and desired's tail is
// appended. A renderer with queue-position removal (QueueRemover) trims the
// diverging tail entry-by-entry from the end so a queue that simply grew
// doesn't need a full reload; one without it falls back to Clear+Append.
func SyncQueue(ctx context.Context, backend QueueBackend, desired []string) error {
	current, err := backend.QueueList(ctx)
	if err != nil {
		return err
	}

	common := commonPrefixLen(current, desired)

	if common == len(current) {
		// current is an unbroken prefix of desired: nothing to remove, only
		// append the new tail.
		if common < len(desired) {
			return backend.QueueAppend(ctx, desired[common:])
		}
		return nil
	}

	if remover, ok := backend.(QueueRemover); ok {
		for i := len(current) - 1; i >= common; i-- {
			if err := remover.QueueRemoveAt(ctx, i); err != nil {
				return err
			}
		}
		if common < len(desired) {
			return backend.QueueAppend(ctx, desired[common:])
		}
		return nil
	}

	if err := backend.QueueClear(ctx); err != nil {
		return err
	}
	if len(desired) == 0 {
		return nil
	}
	return backend.QueueAppend(ctx, desired)
}

func commonPrefixLen(a, b []string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}
