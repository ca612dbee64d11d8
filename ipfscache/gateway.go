// Package ipfscache runs the bounded-parallelism IPFS pre-fetch sink: for
// every URI a block's events reference, it fetches the content through a
// configured gateway, caches the result in Postgres, and reports completion
// back to a pending.Manager so the pipeline can advance its cursor once an
// entire block's fetches land, in block order.
package ipfscache

import "context"

// Gateway resolves a single content-addressed IPFS URI. The production
// implementation issues an HTTP GET against a configured gateway URL; tests
// swap in a fake. Keeping this an interface means a future pinning-capable
// implementation can replace it without touching the rest of the pipeline.
type Gateway interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}
