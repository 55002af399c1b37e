// Package redistest provides an in-memory RedisClient for tests.
package redistest

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/honeynil/UPIPaymentService/internal/infrastructure/redis"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// Fake is a goroutine-safe RedisClient backed by a map. Expirations are
// honoured on read. Err, when set, is returned by every call.
type Fake struct {
	mu   sync.Mutex
	data map[string]entry
	now  func() time.Time

	Err error
}

var _ redis.RedisClient = (*Fake)(nil)

func New() *Fake {
	return &Fake{data: make(map[string]entry), now: time.Now}
}

// Advance moves the fake clock forward.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	base := f.now()
	f.now = func() time.Time { return base.Add(d) }
}

func (f *Fake) live(key string) (entry, bool) {
	e, ok := f.data[key]
	if !ok {
		return entry{}, false
	}
	if !e.expiresAt.IsZero() && !f.now().Before(e.expiresAt) {
		delete(f.data, key)
		return entry{}, false
	}
	return e, true
}

func (f *Fake) deadline(expiration time.Duration) time.Time {
	if expiration <= 0 {
		return time.Time{}
	}
	return f.now().Add(expiration)
}

func (f *Fake) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	e, ok := f.live(key)
	if !ok {
		return "", redis.ErrKeyNotFound
	}
	return e.value, nil
}

func (f *Fake) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.data[key] = entry{value: fmt.Sprint(value), expiresAt: f.deadline(expiration)}
	return nil
}

func (f *Fake) SetNX(_ context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return false, f.Err
	}
	if _, ok := f.live(key); ok {
		return false, nil
	}
	f.data[key] = entry{value: fmt.Sprint(value), expiresAt: f.deadline(expiration)}
	return true, nil
}

func (f *Fake) Incr(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return 0, f.Err
	}
	e, _ := f.live(key)
	n := int64(0)
	if e.value != "" {
		v, err := strconv.ParseInt(e.value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("value is not an integer")
		}
		n = v
	}
	n++
	e.value = strconv.FormatInt(n, 10)
	f.data[key] = e
	return n, nil
}

func (f *Fake) Expire(_ context.Context, key string, expiration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	if e, ok := f.live(key); ok {
		e.expiresAt = f.deadline(expiration)
		f.data[key] = e
	}
	return nil
}

func (f *Fake) Del(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	delete(f.data, key)
	return nil
}

func (f *Fake) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Err
}

func (f *Fake) Close() error { return nil }
