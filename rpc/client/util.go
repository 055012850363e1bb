package client

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/csIPC/rpc/proto"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("ipc/client")
)

// CallAs is Call with the response checked against the expected record type
//
// Usage:
//
//	resp, err := client.CallAs[*proto.ClientListResponse](ctx, c, &proto.ClientListRequest{})
func CallAs[T proto.Message](ctx context.Context, c *Client, req proto.Message) (T, error) {
	var zero T
	resp, err := c.Call(ctx, req)
	if err != nil {
		return zero, err
	}

	typed, ok := resp.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected response %T to %s, expected %T", resp, req.Kind(), zero)
	}
	return typed, nil
}
