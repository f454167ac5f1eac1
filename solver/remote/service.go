// Package remote serves a solver oracle over gRPC and provides a client implementing the oracle boundary.
package remote

import (
	"context"

	"github.com/golang/protobuf/ptypes/empty"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	serviceName = "pruntime.solver.Oracle"
	solveMethod = "/" + serviceName + "/Solve"
	nameMethod  = "/" + serviceName + "/Name"
)

// The server side of the oracle service
type OracleServer interface {
	Solve(context.Context, *structpb.Value) (*structpb.Struct, error)
	Name(context.Context, *empty.Empty) (*wrapperspb.StringValue, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*OracleServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Solve",
			Handler:    solveHandler,
		},
		{
			MethodName: "Name",
			Handler:    nameHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pruntime/solver/remote",
}

func solveHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OracleServer).Solve(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: solveMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OracleServer).Solve(ctx, req.(*structpb.Value))
	}
	return interceptor(ctx, in, info, handler)
}

func nameHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(empty.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OracleServer).Name(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: nameMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OracleServer).Name(ctx, req.(*empty.Empty))
	}
	return interceptor(ctx, in, info, handler)
}
