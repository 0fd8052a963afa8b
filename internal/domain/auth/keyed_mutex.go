package auth

import "sync"

// keyedMutex lazily allocates one mutex per key, so refresh-token
// rotation for different users never contends.
type keyedMutex struct {
	locks sync.Map // string -> *sync.Mutex
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	value, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
