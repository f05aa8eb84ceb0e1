package pool

import "sync"

var (
	globalMu    sync.Mutex
	globalPools map[Type]*Pool
)

// InitGlobal 创建进程级共享池（目前只有健康检查池）。重复调用是空操作。
func InitGlobal() error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalPools != nil {
		return nil
	}

	hc, err := NewPool(string(HealthCheckPool), HealthCheckPool, HealthCheckPoolConfig())
	if err != nil {
		return err
	}
	globalPools = map[Type]*Pool{HealthCheckPool: hc}
	return nil
}

// GetByType 返回共享池。
func GetByType(typ Type) (*Pool, error) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalPools == nil {
		return nil, ErrManagerNotInitialized
	}
	p, ok := globalPools[typ]
	if !ok {
		return nil, ErrPoolNotFound
	}
	return p, nil
}

// CloseGlobal 释放所有共享池，之后可以再次 InitGlobal。
func CloseGlobal() {
	globalMu.Lock()
	defer globalMu.Unlock()
	for _, p := range globalPools {
		p.Release()
	}
	globalPools = nil
}
