// Package jsonrpc carries invocations as JSON-RPC 2.0 calls over HTTP.
// The wire method is "Contract.wireName" and parameters travel
// positionally, in declaration order.
package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"

	"github.com/gorilla/rpc/v2/json2"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/propagation"

	"github.com/strataline/dispatch/core/contract"
	"github.com/strataline/dispatch/core/future"
	"github.com/strataline/dispatch/core/logger"
	"github.com/strataline/dispatch/core/syncasync"
	"github.com/strataline/dispatch/core/telemetry"
	"github.com/strataline/dispatch/core/types"
)

// CodeUnauthorized is the server error code translated into an
// authorization failure.
const CodeUnauthorized json2.ErrorCode = -32001

var ErrEndpointEmpty = errors.New("jsonrpc endpoint is empty")

var anyType = reflect.TypeOf((*any)(nil)).Elem()

// HTTPDoer is the part of *http.Client the invoker uses.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Invoker performs invocations against a JSON-RPC 2.0 endpoint.
type Invoker struct {
	endpoint string
	client   HTTPDoer
	table    *syncasync.Table
	tracing  *telemetry.TracingHandler
	log      *logrus.Entry
}

// Option configures the invoker.
type Option func(inv *Invoker) error

// WithClient replaces the HTTP client requests go through.
func WithClient(client HTTPDoer) Option {
	return func(inv *Invoker) error {
		if client == nil {
			return errors.New("jsonrpc: nil http client")
		}
		inv.client = client

		return nil
	}
}

// WithTable lets the invoker type asynchronous results after the sync
// counterpart's return type. Without it async results decode generically.
func WithTable(table *syncasync.Table) Option {
	return func(inv *Invoker) error {
		inv.table = table
		return nil
	}
}

// WithTracing makes the invoker propagate trace context on outgoing
// requests.
func WithTracing(th *telemetry.TracingHandler) Option {
	return func(inv *Invoker) error {
		inv.tracing = th
		return nil
	}
}

// New builds a JSON-RPC invoker against endpoint.
func New(endpoint string, opts ...Option) (*Invoker, error) {
	if endpoint == "" {
		return nil, ErrEndpointEmpty
	}

	inv := &Invoker{
		endpoint: endpoint,
		client:   http.DefaultClient,
		log:      logger.Logger().WithField("invoker", "jsonrpc"),
	}
	for _, opt := range opts {
		if err := opt(inv); err != nil {
			return nil, err
		}
	}

	return inv, nil
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

// asyncReturns picks the type an asynchronous result decodes into: the
// sync counterpart's return type when the pairing is known, otherwise a
// generic value.
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
	method := op.Contract.Name() + "." + op.WireName

	body, err := json2.EncodeClientRequest(method, call.Args())
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, inv.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	if inv.tracing != nil && inv.tracing.Propagators != nil {
		inv.tracing.Propagators.Inject(ctx, propagation.HeaderCarrier(req.Header))
	}

	inv.log.WithFields(logrus.Fields{
		"method":     method,
		"invocation": call.ID(),
	}).Debug("sending request")

	resp, err := inv.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &types.AuthorizationError{
			Op:     op.String(),
			Reason: http.StatusText(resp.StatusCode),
		}
	}
	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("calling %s: %s", method, resp.Status)
	}

	var raw json.RawMessage
	if err := json2.DecodeClientResponse(resp.Body, &raw); err != nil {
		if errors.Is(err, json2.ErrNullResult) {
			return nil, nil
		}

		var rpcErr *json2.Error
		if errors.As(err, &rpcErr) {
			if rpcErr.Code == CodeUnauthorized {
				return nil, &types.AuthorizationError{Op: op.String(), Reason: rpcErr.Message}
			}
			return nil, fmt.Errorf("calling %s: %w", method, rpcErr)
		}

		return nil, fmt.Errorf("decoding %s response: %w", method, err)
	}

	return decodeInto(method, raw, returns)
}

func decodeInto(method string, raw json.RawMessage, returns reflect.Type) (any, error) {
	if returns == nil {
		return nil, nil
	}

	slot := reflect.New(returns)
	if err := json.Unmarshal(raw, slot.Interface()); err != nil {
		return nil, fmt.Errorf("decoding %s result into %s: %w", method, returns, err)
	}

	return slot.Elem().Interface(), nil
}
