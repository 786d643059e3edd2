package ingest

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/errtop/internal/logsource"
	"github.com/tinytelemetry/errtop/internal/ranker"
)

// RunSharded ingests sources in parallel. Each shard counts into a local
// tally and hands it off every batch to a single merging goroutine, the
// only writer of the shared table. The first shard failure cancels the
// others; every source is closed and every tally merged before return.
// Ties between shards rank by source order, so identical input yields an
// identical ranking.
func (in *Ingestor) RunSharded(ctx context.Context, sources []logsource.LineSource) (Result, error) {
	merges := make(chan *ranker.Tally, len(sources)+1)
	merged := make(chan struct{})
	go func() {
		defer close(merged)
		for tally := range merges {
			in.table.Merge(tally)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	if in.opts.Parallelism > 0 {
		g.SetLimit(in.opts.Parallelism)
	}

	run := in.table.ReserveRun()
	results := make([]Result, len(sources))
	for i, src := range sources {
		g.Go(func() error {
			tally := ranker.NewShardTally(run, i)
			flush := func() {
				if tally.Len() == 0 {
					return
				}
				next := tally.Successor()
				merges <- tally
				tally = next
			}
			record := func(message string) { tally.Add(message) }

			res, err := in.consume(gctx, src, record, flush)
			results[i] = res
			return err
		})
	}

	err := g.Wait()
	close(merges)
	<-merged

	var total Result
	for _, r := range results {
		total.add(r)
	}
	in.finish(err)
	return total, err
}
