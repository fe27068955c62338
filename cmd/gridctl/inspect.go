package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fullstorydev/grpcurl"
	"github.com/jhump/protoreflect/grpcreflect"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/reflection/grpc_reflection_v1alpha"

	"github.com/holmgren-io/microgrid-core/pkg/logx"
)

// reflectListComponents dials target and invokes the microgrid API's
// ListComponents method via dynamic protobuf reflection, the way grpcurl
// itself would from the command line. Grounded on the teacher's
// pkg/starlink/client.go callNativeGRPC (dial, reflection client,
// descriptor source, JSON request/response formatting).
func reflectListComponents(ctx context.Context, target string, timeout time.Duration, logger *logx.Logger) (string, error) {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := grpc.DialContext(dialCtx, target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		return "", fmt.Errorf("gridctl: connect to %s: %w", target, err)
	}
	defer conn.Close()

	reflectionClient := grpcreflect.NewClient(ctx, grpc_reflection_v1alpha.NewServerReflectionClient(conn))
	descSource := grpcurl.DescriptorSourceFromServer(ctx, reflectionClient)

	requestReader := grpcurl.NewJSONRequestParser(strings.NewReader("{}"), grpcurl.AnyResolverFromDescriptorSource(descSource))

	var out strings.Builder
	formatter := grpcurl.NewJSONFormatter(false, grpcurl.AnyResolverFromDescriptorSource(descSource))
	handler := &grpcurl.DefaultEventHandler{
		Out:            &out,
		Formatter:      formatter,
		VerbosityLevel: 0,
	}

	methodName := "microgrid.v1.MicrogridApi/ListComponents"
	if err := grpcurl.InvokeRPC(ctx, descSource, conn, methodName, nil, handler, requestReader.Next); err != nil {
		return "", fmt.Errorf("gridctl: invoke %s on %s: %w", methodName, target, err)
	}

	logger.Debug("reflected ListComponents", "target", target)
	return out.String(), nil
}
