package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) GetMarketView(ctx context.Context, symbol string) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetMarketView", map[string]any{"symbol": symbol})
}

func (c *Client) GetFavorites(ctx context.Context, userID string) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetFavorites", map[string]any{"userId": userID})
}

func (c *Client) Status(ctx context.Context, contextName string) (*structpb.Struct, error) {
	return c.invoke(ctx, "Status", map[string]any{"context": contextName})
}

func (c *Client) invoke(ctx context.Context, method string, fields map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
