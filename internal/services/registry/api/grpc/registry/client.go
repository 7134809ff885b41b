package registry

import (
	"context"

	platformgrpc "github.com/louisbranch/didregistry/internal/platform/grpc"
	"github.com/louisbranch/didregistry/internal/services/registry/event"
	"google.golang.org/grpc"
)

// Client calls the registry service over a gRPC connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{platformgrpc.JSONCallOption()}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

// CreateDID registers an identifier owned by the caller in ctx's bearer token.
func (c *Client) CreateDID(ctx context.Context, in *CreateDIDRequest, opts ...grpc.CallOption) (*DIDResponse, error) {
	out := new(DIDResponse)
	if err := c.invoke(ctx, CreateDIDMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateDID replaces the content address of an owned identifier.
func (c *Client) UpdateDID(ctx context.Context, in *UpdateDIDRequest, opts ...grpc.CallOption) (*DIDResponse, error) {
	out := new(DIDResponse)
	if err := c.invoke(ctx, UpdateDIDMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// RevokeDID removes an owned identifier.
func (c *Client) RevokeDID(ctx context.Context, in *RevokeDIDRequest, opts ...grpc.CallOption) (*RevokeDIDResponse, error) {
	out := new(RevokeDIDResponse)
	if err := c.invoke(ctx, RevokeDIDMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// GetDID looks up one identifier.
func (c *Client) GetDID(ctx context.Context, in *GetDIDRequest, opts ...grpc.CallOption) (*DIDResponse, error) {
	out := new(DIDResponse)
	if err := c.invoke(ctx, GetDIDMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEvents pages through the journal.
func (c *Client) ListEvents(ctx context.Context, in *ListEventsRequest, opts ...grpc.CallOption) (*ListEventsResponse, error) {
	out := new(ListEventsResponse)
	if err := c.invoke(ctx, ListEventsMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// WatchEvents opens an event stream after in.AfterSeq.
func (c *Client) WatchEvents(ctx context.Context, in *WatchEventsRequest, opts ...grpc.CallOption) (WatchEventsClient, error) {
	opts = append([]grpc.CallOption{platformgrpc.JSONCallOption()}, opts...)
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], WatchEventsMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[WatchEventsRequest, event.Event]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
