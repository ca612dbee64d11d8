package postgres

import (
	"context"
	"fmt"
)

// CacheItem is one resolved (or failed) IPFS fetch, matching the original
// cache's ipfs_cache row shape.
type CacheItem struct {
	URI       string
	Content   []byte
	Block     string
	SpaceID   string
	IsErrored bool
}

// InsertIpfsCacheItem stores item, skipping silently if its URI is already
// cached. A non-fatal IpfsFetchError is recorded as IsErrored=true rather
// than omitted, so the pipeline never re-fetches a permanently-broken URI.
func (s *Store) InsertIpfsCacheItem(ctx context.Context, item CacheItem) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ipfs_cache (uri, content, block, space_id, is_errored)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (uri) DO NOTHING`,
		item.URI, item.Content, item.Block, item.SpaceID, item.IsErrored)
	if err != nil {
		return fmt.Errorf("postgres: insert ipfs cache item %q: %w", item.URI, err)
	}
	return nil
}

// LoadIpfsCacheItem returns the cached item for uri, if any.
func (s *Store) LoadIpfsCacheItem(ctx context.Context, uri string) (*CacheItem, error) {
	item := &CacheItem{URI: uri}
	err := s.pool.QueryRow(ctx, `SELECT content, block, space_id, is_errored FROM ipfs_cache WHERE uri = $1`, uri).
		Scan(&item.Content, &item.Block, &item.SpaceID, &item.IsErrored)
	if err != nil {
		return nil, fmt.Errorf("postgres: load ipfs cache item %q: %w", uri, err)
	}
	return item, nil
}
