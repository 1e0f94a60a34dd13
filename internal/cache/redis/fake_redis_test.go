package rediscache

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// fakeRedis scripts the narrow command surface the cache uses, with a
// manually advanced clock so tests can expire entries deterministically.
type fakeRedis struct {
	mu     sync.Mutex
	now    time.Time
	values map[string]fakeValue
	zsets  map[string]map[string]float64
}

type fakeValue struct {
	data     string
	expireAt time.Time
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		now:    time.Unix(1700000000, 0).UTC(),
		values: make(map[string]fakeValue),
		zsets:  make(map[string]map[string]float64),
	}
}

func (f *fakeRedis) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fakeRedis) live(key string) (fakeValue, bool) {
	v, ok := f.values[key]
	if !ok {
		return fakeValue{}, false
	}
	if !v.expireAt.IsZero() && !f.now.Before(v.expireAt) {
		delete(f.values, key)
		return fakeValue{}, false
	}
	return v, true
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var data string
	switch v := value.(type) {
	case []byte:
		data = string(v)
	case string:
		data = v
	default:
		data = ""
	}
	entry := fakeValue{data: data}
	if expiration > 0 {
		entry.expireAt = f.now.Add(expiration)
	}
	f.values[key] = entry
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.live(key)
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v.data, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, key := range keys {
		if _, ok := f.live(key); ok {
			delete(f.values, key)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Exists(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, key := range keys {
		if _, ok := f.live(key); ok {
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) ZAdd(_ context.Context, key string, members ...redis.Z) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	zset, ok := f.zsets[key]
	if !ok {
		zset = make(map[string]float64)
		f.zsets[key] = zset
	}
	var added int64
	for _, m := range members {
		member, _ := m.Member.(string)
		if _, exists := zset[member]; !exists {
			added++
		}
		zset[member] = m.Score
	}
	return redis.NewIntResult(added, nil)
}

func (f *fakeRedis) sortedMembersDesc(key string) []string {
	zset := f.zsets[key]
	members := make([]string, 0, len(zset))
	for m := range zset {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool {
		si, sj := zset[members[i]], zset[members[j]]
		if si != sj {
			return si > sj
		}
		return members[i] > members[j]
	})
	return members
}

func (f *fakeRedis) ZRevRange(_ context.Context, key string, start, stop int64) *redis.StringSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	members := f.sortedMembersDesc(key)
	if start >= int64(len(members)) {
		return redis.NewStringSliceResult(nil, nil)
	}
	if stop >= int64(len(members)) {
		stop = int64(len(members)) - 1
	}
	return redis.NewStringSliceResult(members[start:stop+1], nil)
}

func (f *fakeRedis) ZRem(_ context.Context, key string, members ...any) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	zset := f.zsets[key]
	var n int64
	for _, m := range members {
		member, _ := m.(string)
		if _, ok := zset[member]; ok {
			delete(zset, member)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) ZCard(_ context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	return redis.NewIntResult(int64(len(f.zsets[key])), nil)
}

func (f *fakeRedis) ZScan(_ context.Context, key string, _ uint64, _ string, _ int64) *redis.ScanCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	zset := f.zsets[key]
	pairs := make([]string, 0, len(zset)*2)
	for _, m := range f.sortedMembersDesc(key) {
		pairs = append(pairs, m, strconv.FormatFloat(zset[m], 'f', -1, 64))
	}
	return redis.NewScanCmdResult(pairs, 0, nil)
}

func (f *fakeRedis) indexMembers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sortedMembersDesc(indexKey)
}
