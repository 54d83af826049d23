package proxy

import (
	"context"
	"github.com/ValentinKolb/rKV/lib/store"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchConcurrency bounds the number of parallel sets in NewBatch
const DefaultBatchConcurrency = 16

// NewBatch stores all objs in s concurrently and returns one proxy per object
// (same order). Keys are always generated, WithKey is ignored.
// On error, objects already stored are not removed.
func NewBatch[T any](ctx context.Context, s *store.Store, objs []T, opts ...Option) ([]*Proxy[T], error) {
	o := newOptions(opts)
	o.key = ""

	proxies := make([]*Proxy[T], len(objs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(DefaultBatchConcurrency)
	for i := range objs {
		g.Go(func() error {
			key, err := store.Set(ctx, s, "", objs[i], o.serialize)
			if err != nil {
				return err
			}
			proxies[i] = FromFactory[T](o.factory(s, key))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	Logger.Debugf("created %d proxies in store(name='%s')", len(proxies), s.Name())
	return proxies, nil
}
