package rpc

import (
	"context"
	"fmt"
	"net"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/torcoste/orderbook-aggregator/internal/fanout"
	"github.com/torcoste/orderbook-aggregator/internal/logger"
)

const (
	tracerName = "github.com/torcoste/orderbook-aggregator/internal/rpc"
	meterName  = "github.com/torcoste/orderbook-aggregator/internal/rpc"
)

// Server implements OrderbookAggregatorServer on top of a fanout.Registry:
// every BookSummary call attaches a subscription and streams it until the
// client disconnects or the server shuts down.
type Server struct {
	UnimplementedOrderbookAggregatorServer

	registry *fanout.Registry
	log      logger.LoggerInterface
	tracer   trace.Tracer

	streamsOpened metric.Int64Counter
	streamsActive metric.Int64UpDownCounter
}

// NewServer builds a Server dispatching from registry.
func NewServer(registry *fanout.Registry, log logger.LoggerInterface) *Server {
	s := &Server{registry: registry, log: log, tracer: otel.Tracer(tracerName)}
	meter := otel.Meter(meterName)
	s.streamsOpened, _ = meter.Int64Counter("rpc.streams_opened")
	s.streamsActive, _ = meter.Int64UpDownCounter("rpc.streams_active")
	return s
}

// BookSummary streams summaries to a single client until its context is
// canceled (client disconnect) or the server is shutting down.
func (s *Server) BookSummary(_ *Empty, stream grpc.ServerStreamingServer[Summary]) error {
	ctx := stream.Context()
	ctx, span := s.tracer.Start(ctx, "rpc.BookSummary")
	defer span.End()

	sub := s.registry.Attach()
	defer sub.Close()

	s.streamsOpened.Add(ctx, 1)
	s.streamsActive.Add(ctx, 1)
	defer s.streamsActive.Add(ctx, -1)

	s.log.Info(ctx, "client subscribed to book summary")

	for {
		select {
		case <-ctx.Done():
			s.log.Info(ctx, "client disconnected from book summary")
			return nil
		case summary, ok := <-sub.Recv():
			if !ok {
				return nil
			}
			if err := stream.Send(fromModel(summary)); err != nil {
				span.RecordError(err)
				return err
			}
		}
	}
}

// ListenAndServe starts a gRPC server bound to addr (host:port, e.g.
// "[::1]:10000" to mirror the reference client's loopback address) and
// blocks until ctx is canceled.
func ListenAndServe(ctx context.Context, addr string, registry *fanout.Registry, log logger.LoggerInterface) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rpc: listen on %s: %w", addr, err)
	}

	grpcServer := grpc.NewServer()
	RegisterOrderbookAggregatorServer(grpcServer, NewServer(registry, log))

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "rpc server listening", "addr", addr, "codec", encoding.GetCodec(codecName).Name())
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		grpcServer.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}
