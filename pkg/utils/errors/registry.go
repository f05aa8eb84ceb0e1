package errors

import (
	"fmt"
	"sort"
	"sync"
)

// registry 保存所有已注册的错误码，保证全局唯一。
type registry struct {
	mu     sync.RWMutex
	byCode map[int]*Errno
}

var errnos = &registry{byCode: make(map[int]*Errno)}

func (r *registry) add(e *Errno) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.byCode[e.Code]; ok {
		return fmt.Errorf("errno %d registered twice (%q, %q)", e.Code, prev.MessageEN, e.MessageEN)
	}
	r.byCode[e.Code] = e
	return nil
}

// Register records e in the global registry and returns it, so it can be
// used directly in a var block. A duplicate code is a programming error and
// panics at init time.
func Register(e *Errno) *Errno {
	if err := errnos.add(e); err != nil {
		panic(err)
	}
	return e
}

// Lookup returns the registered Errno for code.
func Lookup(code int) (*Errno, bool) {
	errnos.mu.RLock()
	defer errnos.mu.RUnlock()
	e, ok := errnos.byCode[code]
	return e, ok
}

// All returns every registered Errno ordered by code.
func All() []*Errno {
	errnos.mu.RLock()
	out := make([]*Errno, 0, len(errnos.byCode))
	for _, e := range errnos.byCode {
		out = append(out, e)
	}
	errnos.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
