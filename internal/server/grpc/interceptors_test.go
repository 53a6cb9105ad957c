package grpcserver

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

const checkMethod = "/grpc.health.v1.Health/Check"

type fakeAddr struct{}

func (fakeAddr) Network() string { return "tcp" }
func (fakeAddr) String() string  { return "10.0.0.7:5050" }

func observed() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.InfoLevel)
	return zap.New(core), logs
}

func TestLoggingUnary_LogsMetadata(t *testing.T) {
	t.Parallel()

	log, logs := observed()
	ic := LoggingUnary(log)
	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: fakeAddr{}})
	info := &grpc.UnaryServerInfo{FullMethod: checkMethod}

	resp, err := ic(ctx, "secret-payload", info, func(context.Context, any) (any, error) { return "SERVING", nil })
	if err != nil || resp != "SERVING" {
		t.Fatalf("passthrough: %v %v", resp, err)
	}

	wantErr := status.Error(codes.Unavailable, "db down")
	if _, err := ic(ctx, "req", info, func(context.Context, any) (any, error) { return nil, wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("want original error, got %v", err)
	}

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("want 2 log entries, got %d", len(entries))
	}
	first, second := entries[0].ContextMap(), entries[1].ContextMap()
	if first["method"] != checkMethod || first["code"] != "OK" || first["peer"] != "10.0.0.7:5050" {
		t.Fatalf("unexpected fields: %v", first)
	}
	if second["code"] != "Unavailable" {
		t.Fatalf("unexpected code: %v", second)
	}
	for _, e := range entries {
		for _, f := range e.Context {
			if f.String == "secret-payload" {
				t.Fatalf("payload leaked into logs: %v", e.ContextMap())
			}
		}
	}
}

func TestRecoverUnary(t *testing.T) {
	t.Parallel()

	log, logs := observed()
	ic := RecoverUnary(log)
	info := &grpc.UnaryServerInfo{FullMethod: checkMethod}

	_, err := ic(context.Background(), "req", info, func(context.Context, any) (any, error) { panic("nil pool") })
	if st, ok := status.FromError(err); !ok || st.Code() != codes.Internal {
		t.Fatalf("want codes.Internal, got %v", err)
	}
	if logs.FilterMessage("panic").Len() != 1 {
		t.Fatalf("panic not logged")
	}

	resp, err := ic(context.Background(), "req", info, func(context.Context, any) (any, error) { return 42, nil })
	if err != nil || resp != 42 {
		t.Fatalf("no-panic passthrough: %v %v", resp, err)
	}
}

type fakeStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s fakeStream) Context() context.Context { return s.ctx }

func TestStreamInterceptors(t *testing.T) {
	t.Parallel()

	log, logs := observed()
	info := &grpc.StreamServerInfo{FullMethod: "/grpc.health.v1.Health/Watch", IsServerStream: true}
	ss := fakeStream{ctx: peer.NewContext(context.Background(), &peer.Peer{Addr: fakeAddr{}})}

	wantErr := status.Error(codes.Canceled, "client gone")
	err := LoggingStream(log)(nil, ss, info, func(any, grpc.ServerStream) error { return wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("want original error, got %v", err)
	}
	if e := logs.FilterMessage("grpc stream").All(); len(e) != 1 || e[0].ContextMap()["code"] != "Canceled" {
		t.Fatalf("stream not logged: %v", e)
	}

	err = RecoverStream(log)(nil, ss, info, func(any, grpc.ServerStream) error { panic("stream boom") })
	if st, ok := status.FromError(err); !ok || st.Code() != codes.Internal {
		t.Fatalf("want codes.Internal, got %v", err)
	}
}
