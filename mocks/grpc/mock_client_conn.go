// Package grpc carries a scripted grpc.ClientConnInterface double for the
// generic dispatch wire.
package grpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// MockClientConn answers unary calls without a server. Replies and
// statuses are scripted per full method name; every request is recorded.
type MockClientConn struct {
	mu       sync.Mutex
	replies  map[string]any
	statuses map[string]*status.Status
	methods  []string
	requests map[string]*structpb.Struct
}

func NewMockClientConn() *MockClientConn {
	return &MockClientConn{
		replies:  make(map[string]any),
		statuses: make(map[string]*status.Status),
		requests: make(map[string]*structpb.Struct),
	}
}

// SetReply scripts the value a method answers with. The value crosses the
// same JSON encoding a live server would apply.
func (m *MockClientConn) SetReply(method string, v any) *MockClientConn {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.replies[method] = v
	return m
}

// SetStatus scripts a method to fail with st.
func (m *MockClientConn) SetStatus(method string, st *status.Status) *MockClientConn {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.statuses[method] = st
	return m
}

// Methods returns every full method name invoked, in order.
func (m *MockClientConn) Methods() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.methods...)
}

// Request returns the last request a method received.
func (m *MockClientConn) Request(method string) (*structpb.Struct, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[method]
	return req, ok
}

func (m *MockClientConn) Invoke(_ context.Context, method string, args any, reply any, _ ...grpc.CallOption) error {
	req, ok := args.(*structpb.Struct)
	if !ok {
		return fmt.Errorf("unexpected request type %T", args)
	}

	m.mu.Lock()
	m.methods = append(m.methods, method)
	m.requests[method] = req
	st := m.statuses[method]
	scripted := m.replies[method]
	m.mu.Unlock()

	if st != nil {
		return st.Err()
	}

	out, ok := reply.(*structpb.Value)
	if !ok {
		return fmt.Errorf("unexpected reply type %T", reply)
	}

	val, err := toValue(scripted)
	if err != nil {
		return err
	}
	*out = *val

	return nil
}

func (m *MockClientConn) NewStream(context.Context, *grpc.StreamDesc, string, ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, status.Error(codes.Unimplemented, "streaming is not supported")
}

func toValue(v any) (*structpb.Value, error) {
	if v == nil {
		return structpb.NewNullValue(), nil
	}

	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding reply: %w", err)
	}

	var decoded any
	if err := json.Unmarshal(b, &decoded); err != nil {
		return nil, fmt.Errorf("decoding reply: %w", err)
	}

	return structpb.NewValue(decoded)
}
