package microgrid

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// invokeUnary calls a unary RPC on the microgrid API. The request and reply
// are carried as structpb.Struct rather than generated message types, since
// this repository does not vendor the microgrid .proto; a real deployment
// swaps this transport for generated client stubs without touching the
// rest of pkg/microgrid.
func invokeUnary(ctx context.Context, conn *grpc.ClientConn, fullMethod string, req map[string]interface{}) (map[string]interface{}, error) {
	reqStruct, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("microgrid: encode request for %s: %w", fullMethod, err)
	}

	reply := &structpb.Struct{}
	if err := conn.Invoke(ctx, fullMethod, reqStruct, reply); err != nil {
		return nil, err
	}
	return reply.AsMap(), nil
}

// streamDesc describes a server-streaming RPC carrying structpb.Struct
// messages, the shape every per-component telemetry stream uses.
var streamDesc = &grpc.StreamDesc{ServerStreams: true}

// openServerStream starts a server-streaming RPC and returns the stream
// handle; callers repeatedly call recvStruct on it until it errors.
func openServerStream(ctx context.Context, conn *grpc.ClientConn, fullMethod string, req map[string]interface{}) (grpc.ClientStream, error) {
	stream, err := conn.NewStream(ctx, streamDesc, fullMethod)
	if err != nil {
		return nil, err
	}
	reqStruct, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("microgrid: encode request for %s: %w", fullMethod, err)
	}
	if err := stream.SendMsg(reqStruct); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return stream, nil
}

func recvStruct(stream grpc.ClientStream) (map[string]interface{}, error) {
	msg := &structpb.Struct{}
	if err := stream.RecvMsg(msg); err != nil {
		return nil, err
	}
	return msg.AsMap(), nil
}
