package logsource

import (
	"context"
	"sync"

	"github.com/tinytelemetry/errtop/internal/model"
)

// ChannelSource pulls lines from a push LogSource. HasNext blocks until a
// line arrives, the source drains, or ctx is done. Close stops the
// underlying source.
type ChannelSource struct {
	ctx     context.Context
	src     LogSource
	pending model.IngestEnvelope
	hasLine bool
	format  string
	err     error

	closeOnce sync.Once
}

// NewChannelSource adapts src to LineSource.
func NewChannelSource(ctx context.Context, src LogSource) *ChannelSource {
	return &ChannelSource{ctx: ctx, src: src}
}

func (c *ChannelSource) Name() string { return c.src.Name() }

func (c *ChannelSource) HasNext() bool {
	if c.hasLine {
		return true
	}
	if c.err != nil {
		return false
	}
	select {
	case <-c.ctx.Done():
		c.err = c.ctx.Err()
		return false
	case env, ok := <-c.src.Lines():
		if !ok {
			return false
		}
		c.pending, c.hasLine = env, true
		return true
	}
}

func (c *ChannelSource) Next() string {
	line := c.pending.Line
	c.format = c.pending.Format
	c.pending, c.hasLine = model.IngestEnvelope{}, false
	return line
}

// LineFormat reports the format tag of the envelope last returned by Next.
func (c *ChannelSource) LineFormat() string { return c.format }

func (c *ChannelSource) Err() error { return c.err }

func (c *ChannelSource) Close() error {
	c.closeOnce.Do(c.src.Stop)
	return nil
}
