package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client wraps a gRPC connection to an OrderbookAggregator server.
type Client struct {
	conn *grpc.ClientConn
	rpc  OrderbookAggregatorClient
}

// Dial connects to addr (e.g. "[::1]:10000") over plaintext gRPC.
func Dial(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial %s: %w", addr, err)
	}
	return &Client{conn: conn, rpc: NewOrderbookAggregatorClient(conn)}, nil
}

// Close tears down the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// StreamBookSummary opens the BookSummary server stream and returns a
// channel of decoded summaries. The channel is closed when ctx is
// canceled or the stream ends.
func (c *Client) StreamBookSummary(ctx context.Context) (<-chan *Summary, <-chan error) {
	out := make(chan *Summary)
	errc := make(chan error, 1)

	go func() {
		defer close(out)

		stream, err := c.rpc.BookSummary(ctx, &Empty{})
		if err != nil {
			errc <- fmt.Errorf("rpc: open book summary stream: %w", err)
			return
		}

		for {
			summary, err := stream.Recv()
			if err != nil {
				errc <- err
				return
			}
			select {
			case out <- summary:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, errc
}
