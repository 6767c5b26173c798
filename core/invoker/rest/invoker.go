package rest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/propagation"

	"github.com/strataline/dispatch/core/config"
	"github.com/strataline/dispatch/core/contract"
	"github.com/strataline/dispatch/core/future"
	"github.com/strataline/dispatch/core/logger"
	"github.com/strataline/dispatch/core/telemetry"
	"github.com/strataline/dispatch/core/types"
)

// ErrUnsupportedOperation reports an invocation that is not one of the
// Caller operations.
var ErrUnsupportedOperation = errors.New("operation is not an http call")

// HTTPDoer is the part of *http.Client the invoker uses.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestFilter mutates an outgoing request before it is sent, for
// signing, authentication headers and the like. Filters run in
// registration order.
type RequestFilter func(req *http.Request) error

// BasicAuth returns a filter that sets HTTP basic credentials on every
// request.
func BasicAuth(identity, credential string) RequestFilter {
	return func(req *http.Request) error {
		req.SetBasicAuth(identity, credential)
		return nil
	}
}

// StatusError reports a response outside the 2xx range.
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Method, e.URL, http.StatusText(e.Status))
}

// Invoker carries Caller and AsyncCaller invocations over HTTP.
type Invoker struct {
	client  HTTPDoer
	filters []RequestFilter
	tracing *telemetry.TracingHandler
	log     *logrus.Entry
}

// Option configures the invoker.
type Option func(inv *Invoker) error

// WithClient replaces the HTTP client requests go through.
func WithClient(client HTTPDoer) Option {
	return func(inv *Invoker) error {
		if client == nil {
			return errors.New("rest: nil http client")
		}
		inv.client = client

		return nil
	}
}

// WithHTTP2 replaces the HTTP client with an HTTP/2 transport built from
// the given certificate material; nil material means h2c.
func WithHTTP2(settings *config.TLS) Option {
	return func(inv *Invoker) error {
		client, err := BuildHTTP2Client(settings)
		if err != nil {
			return err
		}
		inv.client = client

		return nil
	}
}

// WithFilters appends request filters.
func WithFilters(filters ...RequestFilter) Option {
	return func(inv *Invoker) error {
		inv.filters = append(inv.filters, filters...)
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

// New builds an HTTP invoker. Without options it sends through
// http.DefaultClient.
func New(opts ...Option) (*Invoker, error) {
	inv := &Invoker{
		client: http.DefaultClient,
		log:    logger.Logger().WithField("invoker", "rest"),
	}
	for _, opt := range opts {
		if err := opt(inv); err != nil {
			return nil, err
		}
	}

	return inv, nil
}

// Invoke performs one Caller or AsyncCaller invocation.
func (inv *Invoker) Invoke(ctx context.Context, call *contract.Invocation) (any, error) {
	op := call.Operation()

	if op.Async {
		return future.Go(func() (any, error) {
			return inv.perform(ctx, op, call)
		}), nil
	}

	return inv.perform(ctx, op, call)
}

func (inv *Invoker) perform(ctx context.Context, op *contract.Operation, call *contract.Invocation) (any, error) {
	verb := op.WireName
	switch verb {
	case "head", "get", "post", "put", "delete":
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperation, call)
	}

	args := call.Args()
	url, _ := args[0].(string)

	var payload *Payload
	if len(args) > 1 {
		payload, _ = args[1].(*Payload)
	}

	method := strings.ToUpper(verb)

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload.Data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("building %s %s: %w", method, url, err)
	}
	if payload != nil && payload.ContentType != "" {
		req.Header.Set("Content-Type", payload.ContentType)
	}

	if inv.tracing != nil && inv.tracing.Propagators != nil {
		inv.tracing.Propagators.Inject(ctx, propagation.HeaderCarrier(req.Header))
	}

	for _, filter := range inv.filters {
		if err := filter(req); err != nil {
			return nil, fmt.Errorf("applying request filter: %w", err)
		}
	}

	inv.log.WithFields(logrus.Fields{
		"method":     method,
		"url":        url,
		"invocation": call.ID(),
	}).Debug("sending request")

	resp, err := inv.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if verb == "head" {
		_, _ = io.Copy(io.Discard, resp.Body)
		return inv.screenHead(op, method, url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s %s response: %w", method, url, err)
	}

	if err := screen(op, method, url, resp.StatusCode, data); err != nil {
		return nil, err
	}

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   data,
	}, nil
}

func (inv *Invoker) screenHead(op *contract.Operation, method, url string, status int) (any, error) {
	switch {
	case status >= 200 && status < 300:
		return true, nil
	case status == http.StatusNotFound:
		return false, nil
	default:
		if err := screen(op, method, url, status, nil); err != nil {
			return nil, err
		}
		return nil, &StatusError{Method: method, URL: url, Status: status}
	}
}

func screen(op *contract.Operation, method, url string, status int, body []byte) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &types.AuthorizationError{
			Op:     op.String(),
			Reason: http.StatusText(status),
		}
	case status >= 400:
		return &StatusError{Method: method, URL: url, Status: status, Body: body}
	default:
		return nil
	}
}
