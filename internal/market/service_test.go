package market

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/capmatch/marketdata/internal/datastore"
	"github.com/capmatch/marketdata/internal/errors"
	"github.com/capmatch/marketdata/internal/geocoder"
	"github.com/capmatch/marketdata/internal/logging"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// memoryStore is an in-memory stand-in for the persistent cache.
type memoryStore struct {
	mu      sync.Mutex
	entries map[string]*datastore.CacheEntry
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: map[string]*datastore.CacheEntry{}}
}

func (m *memoryStore) Open() error { return nil }

func (m *memoryStore) Get(key string) (*datastore.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		return nil, errors.Newf("no cache entry for %q", key).
			Category(errors.CategoryNotFound).Build()
	}
	return entry, nil
}

func (m *memoryStore) Put(key string, response []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = &datastore.CacheEntry{
		AddressKey: key,
		Response:   response,
		StoredAt:   time.Now().UTC(),
	}
	return nil
}

func (m *memoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; !ok {
		return errors.Newf("no cache entry for %q", key).
			Category(errors.CategoryNotFound).Build()
	}
	delete(m.entries, key)
	return nil
}

func (m *memoryStore) List() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *memoryStore) Close() error { return nil }

type countingResolver struct {
	calls atomic.Int32
	geo   *geocoder.GeographyReference
	err   error
}

func (r *countingResolver) Resolve(_ context.Context, _ string) (*geocoder.GeographyReference, error) {
	r.calls.Add(1)
	return r.geo, r.err
}

type countingAssembler struct {
	calls  atomic.Int32
	record *MarketRecord
	err    error
	delay  time.Duration
}

func (a *countingAssembler) Assemble(ctx context.Context, _, normalized string, _ *geocoder.GeographyReference) (*MarketRecord, error) {
	a.calls.Add(1)
	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if a.err != nil {
		return nil, a.err
	}
	record := *a.record
	record.Identity.NormalizedAddress = normalized
	return &record, nil
}

func testRecord() *MarketRecord {
	return &MarketRecord{
		Identity: Identity{
			GeographyName:  "Census Tract 11, Travis County, Texas",
			GeographyLevel: geocoder.LevelTract,
			DataYear:       2023,
		},
		Population: &PopulationSection{Total: 5000},
	}
}

func newTestService(r Resolver, a Assembler, store datastore.Interface) *Service {
	return NewService(r, a, store, testPipelineSettings(), true, nil,
		logging.NewDiscardLogger("market-test", nil))
}

func TestLookupColdThenCached(t *testing.T) {
	t.Parallel()

	resolver := &countingResolver{geo: testGeo()}
	assembler := &countingAssembler{record: testRecord()}
	svc := newTestService(resolver, assembler, newMemoryStore())

	record, cached, err := svc.Lookup(context.Background(), "123 Main St, Springfield")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 5000, record.Population.Total)

	record2, cached, err := svc.Lookup(context.Background(), "123 Main St, Springfield")
	require.NoError(t, err)
	assert.True(t, cached, "second lookup must be served from cache")
	assert.Equal(t, record.Population.Total, record2.Population.Total)
	assert.Equal(t, record.Identity.NormalizedAddress, record2.Identity.NormalizedAddress)

	assert.Equal(t, int32(1), resolver.calls.Load(), "cache hit must not geocode again")
	assert.Equal(t, int32(1), assembler.calls.Load())
}

func TestLookupNormalizationSharesCacheEntry(t *testing.T) {
	t.Parallel()

	resolver := &countingResolver{geo: testGeo()}
	assembler := &countingAssembler{record: testRecord()}
	store := newMemoryStore()
	svc := newTestService(resolver, assembler, store)

	_, _, err := svc.Lookup(context.Background(), "123 Main St, Springfield")
	require.NoError(t, err)

	_, cached, err := svc.Lookup(context.Background(), " 123 main st, springfield ")
	require.NoError(t, err)
	assert.True(t, cached, "normalized-equal addresses share one cache entry")

	keys, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"123 main st springfield"}, keys)
}

func TestLookupValidationError(t *testing.T) {
	t.Parallel()

	resolver := &countingResolver{geo: testGeo()}
	svc := newTestService(resolver, &countingAssembler{record: testRecord()}, newMemoryStore())

	_, _, err := svc.Lookup(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.Zero(t, resolver.calls.Load(), "invalid input must not reach the geocoder")
}

func TestLookupResolverErrorPropagates(t *testing.T) {
	t.Parallel()

	resolver := &countingResolver{err: errors.Newf("no match found").
		Category(errors.CategoryNotFound).Build()}
	svc := newTestService(resolver, &countingAssembler{record: testRecord()}, newMemoryStore())

	_, _, err := svc.Lookup(context.Background(), "nowhere at all")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestLookupAssemblerErrorNotCached(t *testing.T) {
	t.Parallel()

	assembler := &countingAssembler{err: errors.Newf("mandatory data missing").
		Category(errors.CategoryDataUnavailable).Build()}
	store := newMemoryStore()
	svc := newTestService(&countingResolver{geo: testGeo()}, assembler, store)

	_, _, err := svc.Lookup(context.Background(), "123 Main St, Springfield")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryDataUnavailable))

	keys, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, keys, "failed pipeline runs must not be cached")
}

func TestLookupCorruptCacheEntryRebuilds(t *testing.T) {
	t.Parallel()

	resolver := &countingResolver{geo: testGeo()}
	assembler := &countingAssembler{record: testRecord()}
	store := newMemoryStore()
	require.NoError(t, store.Put("123 main st springfield", []byte("{not json")))

	svc := newTestService(resolver, assembler, store)
	record, cached, err := svc.Lookup(context.Background(), "123 Main St, Springfield")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 5000, record.Population.Total)
	assert.Equal(t, int32(1), assembler.calls.Load())
}

func TestLookupConcurrentRequestsCollapse(t *testing.T) {
	t.Parallel()

	resolver := &countingResolver{geo: testGeo()}
	assembler := &countingAssembler{record: testRecord(), delay: 100 * time.Millisecond}
	svc := newTestService(resolver, assembler, newMemoryStore())

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.Lookup(context.Background(), "123 Main St, Springfield")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), assembler.calls.Load(),
		"concurrent lookups for one address must share a single pipeline run")
}

func TestDeleteCachedThenMiss(t *testing.T) {
	t.Parallel()

	resolver := &countingResolver{geo: testGeo()}
	assembler := &countingAssembler{record: testRecord()}
	store := newMemoryStore()
	svc := newTestService(resolver, assembler, store)

	_, _, err := svc.Lookup(context.Background(), "123 Main St, Springfield")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteCached("123 Main St, Springfield"))

	keys, err := svc.ListCached()
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, cached, err := svc.Lookup(context.Background(), "123 Main St, Springfield")
	require.NoError(t, err)
	assert.False(t, cached, "deleted entry must force a fresh pipeline run")
	assert.Equal(t, int32(2), assembler.calls.Load())
}

func TestDeleteCachedAbsentIsNotFound(t *testing.T) {
	t.Parallel()

	svc := newTestService(&countingResolver{geo: testGeo()},
		&countingAssembler{record: testRecord()}, newMemoryStore())

	err := svc.DeleteCached("123 Main St, Springfield")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestPartialDetectionHonorsWalkabilityConfig(t *testing.T) {
	t.Parallel()

	record := testRecord()
	record.Growth = &GrowthSection{PeriodYears: 5}
	record.Density = &DensitySection{}
	record.Trend = &TrendSection{}
	record.Migration = &MigrationSection{}

	enabled := newTestService(&countingResolver{geo: testGeo()},
		&countingAssembler{record: record}, newMemoryStore())
	assert.True(t, enabled.isPartial(record),
		"missing walkability counts as degraded when a scores client is configured")

	disabled := NewService(&countingResolver{geo: testGeo()},
		&countingAssembler{record: record}, newMemoryStore(),
		testPipelineSettings(), false, nil,
		logging.NewDiscardLogger("market-test", nil))
	assert.False(t, disabled.isPartial(record),
		"a deployment without walkability must not report every result as partial")

	record.Walkability = &WalkabilitySection{}
	assert.False(t, enabled.isPartial(record))

	record.Trend = nil
	assert.True(t, disabled.isPartial(record))
}
