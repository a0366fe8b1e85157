package ports

import "context"

// HotCache is the process-external shared key-value cache. Every
// write that must survive concurrent writers goes through
// CompareAndSwap; plain Set/Get serve whole-value-replacement keys
// (knowledge buffer, nickname) that need no compare-and-set.
type HotCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error

	// CompareAndSwap implements the watch/read/modify/compare-and-set
	// protocol: it reads the current value (possibly absent), calls
	// modify to compute the desired new value, and commits only if the
	// key was not concurrently changed since the read. ok is false if
	// the swap lost the race; callers retry.
	CompareAndSwap(ctx context.Context, key string, ttlSeconds int, modify func(current []byte, exists bool) ([]byte, error)) (ok bool, err error)
}
