package microgrid

import (
	"context"
	"sync"

	"google.golang.org/grpc"

	"github.com/holmgren-io/microgrid-core/pkg/logx"
	"github.com/holmgren-io/microgrid-core/pkg/retry"
)

// broadcast fans a single shared gRPC server-stream out to any number of
// subscriber channels, keyed by component ID so that a second caller
// subscribing to the same component reuses the in-flight stream instead of
// opening a second one against the microgrid API. When the underlying
// stream errors out, it is reopened with exponential backoff rather than
// torn down, so existing subscribers keep their channel across a transient
// disconnect.
type broadcast struct {
	mu          sync.Mutex
	subscribers []chan map[string]interface{}
	cancel      context.CancelFunc
	logger      *logx.Logger
	name        string

	conn       *grpc.ClientConn
	fullMethod string
	req        map[string]interface{}
	strategy   retry.Strategy
}

func newBroadcast(ctx context.Context, conn *grpc.ClientConn, name, fullMethod string, req map[string]interface{}, logger *logx.Logger) (*broadcast, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := openServerStream(streamCtx, conn, fullMethod, req)
	if err != nil {
		cancel()
		return nil, err
	}

	b := &broadcast{
		cancel:     cancel,
		logger:     logger,
		name:       name,
		conn:       conn,
		fullMethod: fullMethod,
		req:        req,
		strategy:   retry.DefaultStrategy(),
	}
	go b.run(streamCtx, stream)
	return b, nil
}

// run pumps the current stream until it errors, then reopens it with
// backoff. It exits only once reconnection is exhausted or ctx is done, at
// which point subscribers are closed.
func (b *broadcast) run(ctx context.Context, stream grpc.ClientStream) {
	for {
		b.pump(ctx, stream)
		if ctx.Err() != nil {
			b.closeAll() // ctx canceled via stop()
			return
		}

		reconnectErr := retry.Do(ctx, b.strategy, func() error {
			var err error
			stream, err = openServerStream(ctx, b.conn, b.fullMethod, b.req)
			return err
		})
		if reconnectErr != nil {
			b.logger.Warn("giving up reconnecting component stream", "stream", b.name, "error", reconnectErr.Error())
			b.closeAll()
			return
		}
		b.logger.Warn("reconnected component stream", "stream", b.name)
	}
}

// pump reads from stream until it errors, logging the termination. ctx
// bounds fanOut's blocking sends so a shutdown can still interrupt a pump
// stuck behind a slow subscriber.
func (b *broadcast) pump(ctx context.Context, stream grpc.ClientStream) {
	for {
		msg, err := recvStruct(stream)
		if err != nil {
			b.logger.Warn("component stream ended", "stream", b.name, "error", err.Error())
			return
		}
		if !b.fanOut(ctx, msg) {
			return
		}
	}
}

// fanOut delivers msg to every subscriber, blocking on a full channel
// rather than dropping the sample: spec.md §5 mandates block-on-full so a
// slow consumer slows this component's stream without affecting any other
// component's. Returns false if ctx was canceled before delivery finished.
func (b *broadcast) fanOut(ctx context.Context, msg map[string]interface{}) bool {
	b.mu.Lock()
	subscribers := append([]chan map[string]interface{}(nil), b.subscribers...)
	b.mu.Unlock()

	for _, ch := range subscribers {
		select {
		case ch <- msg:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func (b *broadcast) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil
}

// subscribe registers a new bounded-buffer receiver.
func (b *broadcast) subscribe(maxsize int) <-chan map[string]interface{} {
	ch := make(chan map[string]interface{}, maxsize)
	b.mu.Lock()
	b.subscribers = append(b.subscribers, ch)
	b.mu.Unlock()
	return ch
}

func (b *broadcast) stop() {
	b.cancel()
}
