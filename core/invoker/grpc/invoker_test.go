package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/strataline/dispatch/core/contract"
	"github.com/strataline/dispatch/core/future"
	"github.com/strataline/dispatch/core/syncasync"
	"github.com/strataline/dispatch/core/telemetry"
	"github.com/strataline/dispatch/core/types"
)

type TestCluster struct {
	Name     string `json:"name"`
	Replicas int    `json:"replicas"`
}

type TestClusterAPI struct {
	Get   func(ctx context.Context, name string) (*TestCluster, error)
	Scale func(ctx context.Context, name string, replicas int) (*TestCluster, error)
	Drop  func(ctx context.Context, name string) error
}

type TestClusterAsyncAPI struct {
	Get   func(ctx context.Context, name string) *future.Outcome
	Scale func(ctx context.Context, name string, replicas int) *future.Outcome
	Drop  func(ctx context.Context, name string) *future.Outcome
}

type wireHandler func(ctx context.Context, method string, args []*structpb.Value) (*structpb.Value, error)

// wireServer runs an in-memory gRPC server answering the generic dispatch
// wire through handle.
func wireServer(t *testing.T, handle wireHandler) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)

	srv := grpc.NewServer(grpc.UnknownServiceHandler(func(_ any, stream grpc.ServerStream) error {
		method, _ := grpc.MethodFromServerStream(stream)

		req := &structpb.Struct{}
		if err := stream.RecvMsg(req); err != nil {
			return err
		}
		args := req.GetFields()["args"].GetListValue().GetValues()

		reply, err := handle(stream.Context(), method, args)
		if err != nil {
			return err
		}

		return stream.SendMsg(reply)
	}))

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func clusterFixtures(t *testing.T) (syncContract, asyncContract *contract.Contract, table *syncasync.Table) {
	t.Helper()

	reg := contract.NewRegistry()
	syncContract, err := contract.Describe(&TestClusterAPI{}, contract.WithRegistry(reg))
	require.NoError(t, err)
	asyncContract, err = contract.Describe(&TestClusterAsyncAPI{}, contract.WithRegistry(reg))
	require.NoError(t, err)

	table = syncasync.NewTable()
	require.NoError(t, table.Register(syncContract, asyncContract))

	return syncContract, asyncContract, table
}

func invocation(t *testing.T, c *contract.Contract, name string, args ...any) *contract.Invocation {
	t.Helper()

	op, ok := c.Operation(name)
	require.True(t, ok)

	inv, err := contract.NewInvocation(op, args...)
	require.NoError(t, err)

	return inv
}

func clusterValue(t *testing.T, name string, replicas int) *structpb.Value {
	t.Helper()

	v, err := structpb.NewValue(map[string]any{"name": name, "replicas": replicas})
	require.NoError(t, err)

	return v
}

func TestInvokerCall(t *testing.T) {
	conn := wireServer(t, func(_ context.Context, method string, args []*structpb.Value) (*structpb.Value, error) {
		require.Equal(t, "/dispatch.TestClusterAPI/Scale", method)
		require.Len(t, args, 2)
		require.Equal(t, "alpha", args[0].GetStringValue())
		require.Equal(t, float64(3), args[1].GetNumberValue())

		return clusterValue(t, "alpha", 3), nil
	})

	sc, _, _ := clusterFixtures(t)
	inv, err := NewInvoker(conn)
	require.NoError(t, err)

	v, err := inv.Invoke(context.Background(), invocation(t, sc, "Scale", "alpha", 3))
	require.NoError(t, err)
	require.Equal(t, &TestCluster{Name: "alpha", Replicas: 3}, v)
}

func TestInvokerNullReply(t *testing.T) {
	conn := wireServer(t, func(context.Context, string, []*structpb.Value) (*structpb.Value, error) {
		return structpb.NewNullValue(), nil
	})

	sc, _, _ := clusterFixtures(t)
	inv, err := NewInvoker(conn)
	require.NoError(t, err)

	v, err := inv.Invoke(context.Background(), invocation(t, sc, "Drop", "alpha"))
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestInvokerAuthorizationCodes(t *testing.T) {
	for _, code := range []codes.Code{codes.Unauthenticated, codes.PermissionDenied} {
		conn := wireServer(t, func(context.Context, string, []*structpb.Value) (*structpb.Value, error) {
			return nil, status.Error(code, "keys rejected")
		})

		sc, _, _ := clusterFixtures(t)
		inv, err := NewInvoker(conn)
		require.NoError(t, err)

		_, err = inv.Invoke(context.Background(), invocation(t, sc, "Drop", "alpha"))
		require.True(t, types.IsAuthorization(err), "code %s", code)

		var authErr *types.AuthorizationError
		require.ErrorAs(t, err, &authErr)
		require.Equal(t, "TestClusterAPI.Drop", authErr.Op)
		require.Equal(t, "keys rejected", authErr.Reason)
	}
}

func TestInvokerStatusPassthrough(t *testing.T) {
	conn := wireServer(t, func(context.Context, string, []*structpb.Value) (*structpb.Value, error) {
		return nil, status.Error(codes.NotFound, "no such cluster")
	})

	sc, _, _ := clusterFixtures(t)
	inv, err := NewInvoker(conn)
	require.NoError(t, err)

	_, err = inv.Invoke(context.Background(), invocation(t, sc, "Get", "ghost"))
	require.Error(t, err)
	require.Equal(t, codes.NotFound, status.Code(err))
	require.Contains(t, err.Error(), "/dispatch.TestClusterAPI/Get")
}

func TestInvokerAsyncTyped(t *testing.T) {
	conn := wireServer(t, func(_ context.Context, method string, _ []*structpb.Value) (*structpb.Value, error) {
		require.Equal(t, "/dispatch.TestClusterAsyncAPI/Get", method)
		return clusterValue(t, "beta", 5), nil
	})

	_, ac, table := clusterFixtures(t)
	inv, err := NewInvoker(conn, WithTable(table))
	require.NoError(t, err)

	v, err := inv.Invoke(context.Background(), invocation(t, ac, "Get", "beta"))
	require.NoError(t, err)

	out, ok := v.(*future.Outcome)
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	settled, err := out.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, &TestCluster{Name: "beta", Replicas: 5}, settled)
}

func TestInvokerPrefix(t *testing.T) {
	conn := wireServer(t, func(_ context.Context, method string, _ []*structpb.Value) (*structpb.Value, error) {
		require.Equal(t, "/fleet.TestClusterAPI/Get", method)
		return clusterValue(t, "alpha", 1), nil
	})

	sc, _, _ := clusterFixtures(t)
	inv, err := NewInvoker(conn, WithPrefix("fleet."))
	require.NoError(t, err)

	_, err = inv.Invoke(context.Background(), invocation(t, sc, "Get", "alpha"))
	require.NoError(t, err)
}

func TestInvokerMetadataCarriesTrace(t *testing.T) {
	var traceparent []string
	conn := wireServer(t, func(ctx context.Context, _ string, _ []*structpb.Value) (*structpb.Value, error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			traceparent = md.Get("traceparent")
		}
		return structpb.NewNullValue(), nil
	})

	sc, _, _ := clusterFixtures(t)

	th := &telemetry.TracingHandler{Propagators: propagation.TraceContext{}}
	inv, err := NewInvoker(conn, WithTracing(th))
	require.NoError(t, err)

	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x4b, 0xf9, 0x2f, 0x35, 0x77, 0xb3, 0x4d, 0xa6, 0xa3, 0xce, 0x92, 0x9d, 0x0e, 0x0e, 0x47, 0x36},
		SpanID:     trace.SpanID{0x00, 0xf0, 0x67, 0xaa, 0x0b, 0xa9, 0x02, 0xb7},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	_, err = inv.Invoke(ctx, invocation(t, sc, "Drop", "alpha"))
	require.NoError(t, err)
	require.Len(t, traceparent, 1)
	require.Contains(t, traceparent[0], "4bf92f3577b34da6a3ce929d0e0e4736")
}

func TestNewInvokerNilConn(t *testing.T) {
	_, err := NewInvoker(nil)
	require.ErrorIs(t, err, ErrNilConn)
}
