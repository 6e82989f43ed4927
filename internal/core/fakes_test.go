package core

import (
	"context"
	"errors"
	"sync"
	"time"
)

// fakeEmailRepo is an in-memory EmailRepository for tests.
type fakeEmailRepo struct {
	frequency     int
	frequencyErr  error
	rows          []EmailRecord
	rowsErr       error
	newEmails     int
	countErr      error
	countSinceArg time.Time
	users         []int64
}

func (f *fakeEmailRepo) SenderFrequency(ctx context.Context, sender string, window time.Duration) (int, error) {
	return f.frequency, f.frequencyErr
}

func (f *fakeEmailRepo) TrainingRows(ctx context.Context, userID int64, window time.Duration, limit int) ([]EmailRecord, error) {
	if f.rowsErr != nil {
		return nil, f.rowsErr
	}
	if len(f.rows) > limit {
		return f.rows[:limit], nil
	}
	return f.rows, nil
}

func (f *fakeEmailRepo) CountSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	f.countSinceArg = since
	return f.newEmails, f.countErr
}

func (f *fakeEmailRepo) EmailByID(ctx context.Context, id int64) (*EmailRecord, error) {
	for i := range f.rows {
		if f.rows[i].ID == id {
			return &f.rows[i], nil
		}
	}
	return nil, errors.New("email not found")
}

func (f *fakeEmailRepo) ActiveUsers(ctx context.Context, window time.Duration) ([]int64, error) {
	return f.users, nil
}

// fakeSignalCache is a map-backed SignalCache for tests.
type fakeSignalCache struct {
	mu      sync.Mutex
	values  map[string]string
	setErr  error
	gets    int
	sets    int
	lastTTL time.Duration
}

func newFakeSignalCache() *fakeSignalCache {
	return &fakeSignalCache{values: make(map[string]string)}
}

func (f *fakeSignalCache) Get(ctx context.Context, key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	value, ok := f.values[key]
	return value, ok
}

func (f *fakeSignalCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	f.lastTTL = ttl
	if f.setErr != nil {
		return f.setErr
	}
	f.values[key] = value
	return nil
}

// fakeBundleStore keeps bundles in memory, keyed by scope.
type fakeBundleStore struct {
	bundles map[string]*ModelBundle
	saves   int
	loads   int
}

func newFakeBundleStore() *fakeBundleStore {
	return &fakeBundleStore{bundles: make(map[string]*ModelBundle)}
}

func (f *fakeBundleStore) Save(scope string, b *ModelBundle) error {
	f.saves++
	f.bundles[scope] = b
	return nil
}

func (f *fakeBundleStore) Load(scope string) (*ModelBundle, error) {
	f.loads++
	b, ok := f.bundles[scope]
	if !ok {
		return nil, ErrNoModel
	}
	return b, nil
}

// fakeMetadataRepo keeps metadata in memory, keyed by scope.
type fakeMetadataRepo struct {
	latest    map[string]*ModelMetadata
	upserts   int
	latestErr error
}

func newFakeMetadataRepo() *fakeMetadataRepo {
	return &fakeMetadataRepo{latest: make(map[string]*ModelMetadata)}
}

func (f *fakeMetadataRepo) Upsert(ctx context.Context, meta *ModelMetadata) error {
	f.upserts++
	f.latest[meta.Scope] = meta
	return nil
}

func (f *fakeMetadataRepo) Latest(ctx context.Context, scope string) (*ModelMetadata, error) {
	if f.latestErr != nil {
		return nil, f.latestErr
	}
	meta, ok := f.latest[scope]
	if !ok {
		return nil, ErrNoModel
	}
	return meta, nil
}
