package relay

import (
	"context"
	"sync"

	"github.com/quietloop/remora/pkg/message"
)

// envelope wraps an inbound message with its precomputed lane key.
type envelope struct {
	Message message.InboundMessage
	Key     laneKey
}

// workerPool runs a fixed set of goroutines draining the relay inbox.
type workerPool struct {
	size int
	wg   sync.WaitGroup
}

func newWorkerPool(size int) *workerPool {
	if size <= 0 {
		size = 8
	}
	return &workerPool{size: size}
}

// Start launches the workers. They exit when inbox is closed.
func (p *workerPool) Start(ctx context.Context, inbox <-chan envelope, handler func(context.Context, envelope)) {
	for range p.size {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for env := range inbox {
				handler(ctx, env)
			}
		}()
	}
}

// Wait blocks until every worker has exited.
func (p *workerPool) Wait() {
	p.wg.Wait()
}
