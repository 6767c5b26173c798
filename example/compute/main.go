// Command compute assembles a provider-style API over the dispatch core
// twice: against the scripted mock invoker and against a local JSON-RPC
// endpoint.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/strataline/dispatch/core"
	"github.com/strataline/dispatch/core/config"
	"github.com/strataline/dispatch/core/contract"
	"github.com/strataline/dispatch/core/invoker/jsonrpc"
	"github.com/strataline/dispatch/core/types"
	"github.com/strataline/dispatch/mocks"
)

type Disk struct {
	Name   string `json:"name"`
	SizeGB int    `json:"sizeGB"`
}

type Snapshot struct {
	ID   string `json:"id"`
	Disk string `json:"disk"`
}

type DiskAPI struct {
	Create func(ctx context.Context, name string, sizeGB int) (*Disk, error) `call:"create" throws:"quota"`
	List   func(ctx context.Context) ([]Disk, error)                         `call:"list"`
}

type SnapshotAPI struct {
	Capture func(ctx context.Context, disk string) (*Snapshot, error) `call:"capture"`
}

type ComputeAPI struct {
	String func() string
	Equal  func(other any) bool
	Hash   func() uint64

	APIVersion func() (string, error)                      `provide:"apiVersion"`
	Disks      func() (*DiskAPI, error)                    `delegate:""`
	Snapshots  func() (types.Optional[*SnapshotAPI], error) `delegate:"" since:"2013-10-01"`
}

var errQuota = errors.New("quota exceeded")

var kinds = contract.Kinds{"quota": errQuota}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "compute:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	if err := runMock(ctx); err != nil {
		return err
	}

	return runJSONRPC(ctx)
}

// runMock drives the API against the scripted invoker: declared failures
// and authorization surface identity-preserved.
func runMock(ctx context.Context) error {
	mock := mocks.NewInvoker().
		SetResult("DiskAPI.List", []Disk{{Name: "seed", SizeGB: 10}}).
		SetError("DiskAPI.Create", fmt.Errorf("provisioning: %w", errQuota)).
		SetError("SnapshotAPI.Capture", &types.AuthorizationError{Op: "Capture", Reason: "trial account"})

	c, err := core.New(&ComputeAPI{},
		core.WithInvoker(mock),
		core.WithErrorKinds(kinds),
		core.WithValue("apiVersion", "2014-10-01"),
	)
	if err != nil {
		return err
	}
	defer c.Close()

	api, err := core.FacadeOf[ComputeAPI](c)
	if err != nil {
		return err
	}

	v, err := api.APIVersion()
	if err != nil {
		return err
	}
	fmt.Println("mock: api version", v)

	disks, err := api.Disks()
	if err != nil {
		return err
	}

	list, err := disks.List(ctx)
	if err != nil {
		return err
	}
	fmt.Println("mock: disks", list)

	if _, err := disks.Create(ctx, "data", 500); errors.Is(err, errQuota) {
		fmt.Println("mock: create refused:", err)
	}

	opt, err := api.Snapshots()
	if err != nil {
		return err
	}
	if _, err := opt.Value.Capture(ctx, "seed"); types.IsAuthorization(err) {
		fmt.Println("mock: capture denied:", err)
	}

	return nil
}

// runJSONRPC drives the API against a local JSON-RPC endpoint, once with a
// deployment old enough to lack snapshots and once with a current one.
func runJSONRPC(ctx context.Context) error {
	endpoint, stop, err := serveRPC()
	if err != nil {
		return err
	}
	defer stop()

	inv, err := jsonrpc.New(endpoint)
	if err != nil {
		return err
	}

	old, err := core.New(&ComputeAPI{},
		core.WithInvoker(inv),
		core.WithErrorKinds(kinds),
		core.WithConfig(&config.Config{Endpoint: endpoint, APIVersion: "2012-04-01"}),
		core.WithValue("apiVersion", "2012-04-01"),
	)
	if err != nil {
		return err
	}
	defer old.Close()

	api, err := core.FacadeOf[ComputeAPI](old)
	if err != nil {
		return err
	}

	opt, err := api.Snapshots()
	if err != nil {
		return err
	}
	fmt.Println("jsonrpc: snapshots present in 2012-04-01:", opt.Present)

	current, err := core.New(&ComputeAPI{},
		core.WithInvoker(inv),
		core.WithErrorKinds(kinds),
		core.WithConfig(&config.Config{Endpoint: endpoint, APIVersion: "2014-10-01"}),
		core.WithValue("apiVersion", "2014-10-01"),
	)
	if err != nil {
		return err
	}
	defer current.Close()

	api, err = core.FacadeOf[ComputeAPI](current)
	if err != nil {
		return err
	}

	disks, err := api.Disks()
	if err != nil {
		return err
	}

	created, err := disks.Create(ctx, "data", 40)
	if err != nil {
		return err
	}
	fmt.Println("jsonrpc: created", created.Name, created.SizeGB)

	list, err := disks.List(ctx)
	if err != nil {
		return err
	}
	fmt.Println("jsonrpc: disks", list)

	opt, err = api.Snapshots()
	if err != nil {
		return err
	}
	if opt.Present {
		snap, err := opt.Value.Capture(ctx, "data")
		if err != nil {
			return err
		}
		fmt.Println("jsonrpc: snapshot", snap.ID, "of", snap.Disk)
	}

	return nil
}

type rpcRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
	ID     json.RawMessage   `json:"id"`
}

// serveRPC runs a minimal JSON-RPC 2.0 disk service on a loopback port.
func serveRPC() (string, func(), error) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}

	var disks []Disk

	mux := http.NewServeMux()
	mux.HandleFunc("/rpc", func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var result any
		var rpcErr map[string]any

		switch req.Method {
		case "DiskAPI.create":
			var name string
			var size int
			if len(req.Params) == 2 {
				_ = json.Unmarshal(req.Params[0], &name)
				_ = json.Unmarshal(req.Params[1], &size)
			}
			if size > 100 {
				rpcErr = map[string]any{"code": -32000, "message": "quota exceeded"}
				break
			}
			d := Disk{Name: name, SizeGB: size}
			disks = append(disks, d)
			result = d

		case "DiskAPI.list":
			result = disks

		case "SnapshotAPI.capture":
			var disk string
			if len(req.Params) == 1 {
				_ = json.Unmarshal(req.Params[0], &disk)
			}
			result = Snapshot{ID: "snap-1", Disk: disk}

		default:
			rpcErr = map[string]any{"code": -32601, "message": "method not found"}
		}

		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	srv := &http.Server{Handler: mux}
	go func() { _ = srv.Serve(lis) }()

	endpoint := "http://" + lis.Addr().String() + "/rpc"
	return endpoint, func() { _ = srv.Close() }, nil
}
