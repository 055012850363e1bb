// Package client implements the dialing side of csIPC.
//
// A Client dials a server endpoint with retries and exponential backoff, then
// drives the connection on a private reactor loop, exactly like a server
// drives its peers.
//
// The protocol has no request ids. Call therefore matches a request with the
// next response of the same code; concurrent calls of one code are answered
// in order. Every other message (notifies, requests from the server,
// responses nobody waits for) is handed to the optional router.
//
// Usage Example:
//
//	c, err := client.Dial(ctx, common.ClientConfig{
//	  Endpoint:      pipe.DefaultEndpoint("main"),
//	  TimeoutSecond: 5,
//	  RetryCount:    3,
//	}, client.Options{})
//	if err != nil {
//	  return err
//	}
//	defer c.Close()
//
//	status, err := client.CallAs[*proto.ConnectStatusResponse](ctx, c, &proto.ConnectStatusRequest{})
package client
