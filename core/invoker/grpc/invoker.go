// Package grpc carries invocations over a gRPC connection. The wire is
// generic: arguments travel as a structpb list under "args", the result
// comes back as a single structpb value, and the full method is
// "/<prefix><Contract>/<Operation>".
package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/propagation"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/strataline/dispatch/core/config"
	"github.com/strataline/dispatch/core/contract"
	"github.com/strataline/dispatch/core/future"
	"github.com/strataline/dispatch/core/logger"
	"github.com/strataline/dispatch/core/syncasync"
	"github.com/strataline/dispatch/core/telemetry"
	"github.com/strataline/dispatch/core/types"
)

// DefaultPrefix namespaces the generic dispatch services.
const DefaultPrefix = "dispatch."

var ErrNilConn = errors.New("grpc connection is nil")

var anyType = reflect.TypeOf((*any)(nil)).Elem()

// Invoker performs invocations against a gRPC endpoint speaking the
// generic dispatch wire.
type Invoker struct {
	conn    grpc.ClientConnInterface
	owned   *grpc.ClientConn
	prefix  string
	table   *syncasync.Table
	tracing *telemetry.TracingHandler
	log     *logrus.Entry
}

// Option configures the invoker.
type Option func(inv *Invoker) error

// WithPrefix replaces the service name prefix.
func WithPrefix(prefix string) Option {
	return func(inv *Invoker) error {
		inv.prefix = prefix
		return nil
	}
}

// WithTable lets the invoker type asynchronous results after the sync
// counterpart's return type.
func WithTable(table *syncasync.Table) Option {
	return func(inv *Invoker) error {
		inv.table = table
		return nil
	}
}

// WithTracing makes the invoker send trace context in outgoing metadata.
func WithTracing(th *telemetry.TracingHandler) Option {
	return func(inv *Invoker) error {
		inv.tracing = th
		return nil
	}
}

// NewInvoker builds an invoker over an existing connection.
func NewInvoker(conn grpc.ClientConnInterface, opts ...Option) (*Invoker, error) {
	if conn == nil {
		return nil, ErrNilConn
	}

	inv := &Invoker{
		conn:   conn,
		prefix: DefaultPrefix,
		log:    logger.Logger().WithField("invoker", "grpc"),
	}
	for _, opt := range opts {
		if err := opt(inv); err != nil {
			return nil, err
		}
	}

	return inv, nil
}

// Dial connects to target and builds an invoker owning the connection.
// Without certificate material the connection is plaintext.
func Dial(ctx context.Context, target string, settings *config.TLS, opts ...Option) (*Invoker, error) {
	creds := insecure.NewCredentials()
	if settings.Defined() {
		tlsConfig, err := settings.ClientConfig()
		if err != nil {
			return nil, err
		}
		creds = credentials.NewTLS(tlsConfig)
	}

	conn, err := grpc.DialContext(ctx, target, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", target, err)
	}

	inv, err := NewInvoker(conn, opts...)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	inv.owned = conn

	return inv, nil
}

// Close releases the connection if the invoker owns one.
func (inv *Invoker) Close() error {
	if inv.owned == nil {
		return nil
	}

	return inv.owned.Close()
}

// Invoke performs one invocation. Asynchronous operations return an
// outcome that settles when the call round-trips.
func (inv *Invoker) Invoke(ctx context.Context, call *contract.Invocation) (any, error) {
	op := call.Operation()

	if op.Async {
		returns := inv.asyncReturns(op)
		return future.Go(func() (any, error) {
			return inv.perform(ctx, call, returns)
		}), nil
	}

	return inv.perform(ctx, call, op.Returns)
}

func (inv *Invoker) asyncReturns(op *contract.Operation) reflect.Type {
	if inv.table != nil {
		if syncOp, ok := inv.table.SyncCounterpart(op); ok {
			return syncOp.Returns
		}
	}

	return anyType
}

func (inv *Invoker) perform(ctx context.Context, call *contract.Invocation, returns reflect.Type) (any, error) {
	op := call.Operation()
	method := fmt.Sprintf("/%s%s/%s", inv.prefix, op.Contract.Name(), op.Name)

	req, err := encodeArgs(call.Args())
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", method, err)
	}

	if inv.tracing != nil && inv.tracing.Propagators != nil {
		carrier := propagation.MapCarrier{}
		inv.tracing.Propagators.Inject(ctx, carrier)
		if headers := telemetry.PackToMap(carrier); len(headers) > 0 {
			ctx = metadata.NewOutgoingContext(ctx, metadata.New(headers))
		}
	}

	inv.log.WithFields(logrus.Fields{
		"method":     method,
		"invocation": call.ID(),
	}).Debug("sending request")

	reply := &structpb.Value{}
	if err := inv.conn.Invoke(ctx, method, req, reply); err != nil {
		if st, ok := status.FromError(err); ok {
			switch st.Code() {
			case codes.Unauthenticated, codes.PermissionDenied:
				return nil, &types.AuthorizationError{Op: op.String(), Reason: st.Message()}
			}
		}
		return nil, fmt.Errorf("calling %s: %w", method, err)
	}

	return decodeResult(method, reply, returns)
}

// encodeArgs packs the argument list into a struct message. Values go
// through a JSON round trip so any marshalable argument survives the
// generic wire.
func encodeArgs(args []any) (*structpb.Struct, error) {
	values := make([]*structpb.Value, len(args))
	for i, arg := range args {
		v, err := toValue(arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		values[i] = v
	}

	return &structpb.Struct{
		Fields: map[string]*structpb.Value{
			"args": structpb.NewListValue(&structpb.ListValue{Values: values}),
		},
	}, nil
}

func toValue(arg any) (*structpb.Value, error) {
	if arg == nil {
		return structpb.NewNullValue(), nil
	}

	raw, err := json.Marshal(arg)
	if err != nil {
		return nil, err
	}

	var plain any
	if err := json.Unmarshal(raw, &plain); err != nil {
		return nil, err
	}

	return structpb.NewValue(plain)
}

func decodeResult(method string, reply *structpb.Value, returns reflect.Type) (any, error) {
	if returns == nil {
		return nil, nil
	}

	plain := reply.AsInterface()
	if plain == nil {
		return nil, nil
	}

	raw, err := json.Marshal(plain)
	if err != nil {
		return nil, fmt.Errorf("encoding %s result: %w", method, err)
	}

	slot := reflect.New(returns)
	if err := json.Unmarshal(raw, slot.Interface()); err != nil {
		return nil, fmt.Errorf("decoding %s result into %s: %w", method, returns, err)
	}

	return slot.Elem().Interface(), nil
}
