// Package staging: прогоны сверки между анализом и коммитом
// плюс локи, чтобы коммиты одного режима не пересекались.
package staging

import (
	"sync"
	"time"
)

type item[T any] struct {
	value     T
	expiresAt time.Time
}

// MemoryStore: потокобезопасная map с TTL. Чтение срок не продлевает:
// прогон, пролежавший дольше ttl, пропадает.
type MemoryStore[T any] struct {
	mu   sync.RWMutex
	data map[string]item[T]
	ttl  time.Duration
	now  func() time.Time
	done chan struct{}
	once sync.Once
}

// NewMemoryStore: при interval > 0 запускает уборщика просроченных записей.
func NewMemoryStore[T any](ttl, interval time.Duration) *MemoryStore[T] {
	s := &MemoryStore[T]{
		data: make(map[string]item[T]),
		ttl:  ttl,
		now:  time.Now,
		done: make(chan struct{}),
	}
	if interval > 0 {
		go s.cleanup(interval)
	}
	return s
}

func (s *MemoryStore[T]) Put(key string, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = item[T]{value: v, expiresAt: s.now().Add(s.ttl)}
}

func (s *MemoryStore[T]) Get(key string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.data[key]
	if !ok || s.now().After(it.expiresAt) {
		var zero T
		return zero, false
	}
	return it.value, true
}

func (s *MemoryStore[T]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

func (s *MemoryStore[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Close останавливает уборщика; повторный вызов безопасен.
func (s *MemoryStore[T]) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *MemoryStore[T]) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, it := range s.data {
		if now.After(it.expiresAt) {
			delete(s.data, k)
		}
	}
}

func (s *MemoryStore[T]) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.done:
			return
		}
	}
}
