package ipfscache_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/atlasxyz/atlas/events"
	"github.com/atlasxyz/atlas/ipfscache"
	"github.com/atlasxyz/atlas/pending"
	"github.com/atlasxyz/atlas/postgres"
)

type fakeGateway struct {
	fail map[string]bool
}

func (f *fakeGateway) Fetch(ctx context.Context, uri string) ([]byte, error) {
	if f.fail[uri] {
		return nil, errors.New("fake: fetch failed")
	}
	return []byte("content:" + uri), nil
}

// fakeStore is a CacheStore that records inserted items in memory, or
// returns a configured error for a given URI, so Sink.PrefetchBlock can be
// exercised end-to-end without a live Postgres connection.
type fakeStore struct {
	mu       sync.Mutex
	items    []postgres.CacheItem
	failURIs map[string]bool
}

func (f *fakeStore) InsertIpfsCacheItem(ctx context.Context, item postgres.CacheItem) error {
	if f.failURIs[item.URI] {
		return errors.New("fake: insert failed")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, item)
	return nil
}

func space(n byte) events.SpaceId {
	var id events.SpaceId
	id[15] = n
	return id
}

func TestSinkPrefetchBlockCachesEveryRequestAndAdvancesCursor(t *testing.T) {
	gw := &fakeGateway{fail: map[string]bool{"ipfs://broken": true}}
	store := &fakeStore{}
	mgr := pending.New()

	var advancedBlock uint64
	var advancedCursor string
	sink := ipfscache.New(gw, store, mgr, nil, func(block uint64, cursor string) {
		advancedBlock, advancedCursor = block, cursor
	})

	requests := []ipfscache.FetchRequest{
		{URI: "ipfs://good", SpaceID: space(1)},
		{URI: "ipfs://broken", SpaceID: space(2)},
	}
	err := sink.PrefetchBlock(context.Background(), 42, "cursor_42", requests)
	assert.NoError(t, err)

	assert.Equal(t, uint64(42), advancedBlock)
	assert.Equal(t, "cursor_42", advancedCursor)
	assert.Equal(t, 0, mgr.Len())

	assert.Equal(t, 2, len(store.items))
	var sawGood, sawBroken bool
	for _, item := range store.items {
		switch item.URI {
		case "ipfs://good":
			sawGood = true
			assert.Equal(t, false, item.IsErrored)
		case "ipfs://broken":
			sawBroken = true
			assert.Equal(t, true, item.IsErrored)
		}
	}
	assert.True(t, sawGood)
	assert.True(t, sawBroken)
}

func TestSinkPrefetchBlockFailsOnCacheWriteErrorAndDoesNotAdvance(t *testing.T) {
	gw := &fakeGateway{}
	store := &fakeStore{failURIs: map[string]bool{"ipfs://unwritable": true}}
	mgr := pending.New()

	advanced := false
	sink := ipfscache.New(gw, store, mgr, nil, func(block uint64, cursor string) {
		advanced = true
	})

	requests := []ipfscache.FetchRequest{{URI: "ipfs://unwritable", SpaceID: space(1)}}
	err := sink.PrefetchBlock(context.Background(), 7, "cursor_7", requests)

	assert.Error(t, err)
	assert.False(t, advanced)
	// The block's pending entry never drained, so it's still tracked.
	assert.Equal(t, 1, mgr.Len())
}

func TestSinkPrefetchBlockWithNoRequestsIsANoop(t *testing.T) {
	gw := &fakeGateway{}
	store := &fakeStore{}
	mgr := pending.New()

	sink := ipfscache.New(gw, store, mgr, nil, nil)
	err := sink.PrefetchBlock(context.Background(), 1, "cursor_1", nil)
	assert.NoError(t, err)
	assert.Equal(t, 0, mgr.Len())
}

func TestFakeGatewayOnlyFailsConfiguredURIs(t *testing.T) {
	gw := &fakeGateway{fail: map[string]bool{"bad": true}}

	_, err := gw.Fetch(context.Background(), "good")
	assert.NoError(t, err)

	_, err = gw.Fetch(context.Background(), "bad")
	assert.Error(t, err)
}

// TestPendingIntegrationAdvancesOnlyOnceAllComplete exercises the same
// minimum-pending-block contract ipfscache.Sink relies on, without needing
// a real Postgres store: it drives pending.Manager directly the way Sink's
// fetch completions do.
func TestPendingIntegrationAdvancesOnlyOnceAllComplete(t *testing.T) {
	mgr := pending.New()
	mgr.AddBlock(1, "cursor_1", 3)

	var mu sync.Mutex
	var advances []uint64

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if block, _, advanced := mgr.CompleteOne(1); advanced {
				mu.Lock()
				advances = append(advances, block)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, len(advances))
	assert.Equal(t, uint64(1), advances[0])
}
