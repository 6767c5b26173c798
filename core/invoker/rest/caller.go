// Package rest carries invocations over HTTP. It serves the Caller and
// AsyncCaller contracts, the low-level capability pair every client has
// registered out of the box.
package rest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/strataline/dispatch/core/contract"
	"github.com/strataline/dispatch/core/future"
	"github.com/strataline/dispatch/core/syncasync"
)

// Payload is a request body with its content type.
type Payload struct {
	ContentType string
	Data        []byte
}

// Response is what a call brings back once the status line has been
// screened.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Caller issues HTTP requests synchronously. Head reports resource
// existence; the other operations return the screened response.
type Caller struct {
	Head   func(ctx context.Context, url string) (bool, error)
	Get    func(ctx context.Context, url string) (*Response, error)
	Post   func(ctx context.Context, url string, payload *Payload) (*Response, error)
	Put    func(ctx context.Context, url string, payload *Payload) (*Response, error)
	Delete func(ctx context.Context, url string) (*Response, error)
}

// AsyncCaller is the asynchronous counterpart of Caller.
type AsyncCaller struct {
	Head   func(ctx context.Context, url string) *future.Outcome
	Get    func(ctx context.Context, url string) *future.Outcome
	Post   func(ctx context.Context, url string, payload *Payload) *future.Outcome
	Put    func(ctx context.Context, url string, payload *Payload) *future.Outcome
	Delete func(ctx context.Context, url string) *future.Outcome
}

// Contracts describes the caller pair into reg and registers the pairing
// in table.
func Contracts(reg *contract.Registry, table *syncasync.Table) (syncContract, asyncContract *contract.Contract, err error) {
	syncContract, err = contract.Describe(&Caller{}, contract.WithRegistry(reg))
	if err != nil {
		return nil, nil, fmt.Errorf("describing rest caller: %w", err)
	}

	asyncContract, err = contract.Describe(&AsyncCaller{}, contract.WithRegistry(reg))
	if err != nil {
		return nil, nil, fmt.Errorf("describing rest async caller: %w", err)
	}

	if err = table.Register(syncContract, asyncContract); err != nil {
		return nil, nil, fmt.Errorf("pairing rest callers: %w", err)
	}

	return syncContract, asyncContract, nil
}
