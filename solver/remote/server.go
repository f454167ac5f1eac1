package remote

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/golang/protobuf/ptypes/empty"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"pruntime/formula"
	"pruntime/solver"
)

// Serves an oracle to remote clients.
//
// The server forwards every query to the same oracle. Use an oracle guarded by solver.Exclusive, such as solver.Gini,
// to reject overlapping queries instead of running them concurrently.
type Server struct {
	oracle solver.Oracle
	log    *zap.Logger
}

type ServerOption func(*Server)

func WithServerLogger(log *zap.Logger) ServerOption {
	return func(s *Server) {
		s.log = log
	}
}

func NewServer(oracle solver.Oracle, opts ...ServerOption) *Server {
	s := &Server{
		oracle: oracle,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register the oracle service on the grpc server
func (s *Server) Register(srv *grpc.Server) {
	srv.RegisterService(&serviceDesc, s)
}

func (s *Server) Solve(ctx context.Context, in *structpb.Value) (*structpb.Struct, error) {
	f, err := DecodeFormula(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	res, err := s.oracle.Solve(ctx, f)
	if errors.Is(err, solver.ErrSolverBusy) {
		return nil, status.Error(codes.ResourceExhausted, err.Error())
	}
	if err != nil {
		s.log.Error("solve failed", zap.Error(err))
		return nil, status.Error(codes.Internal, err.Error())
	}
	s.log.Debug("solved",
		zap.Int("vars", len(formula.Vars(f))),
		zap.Stringer("status", res.Status),
		zap.String("reason", res.Reason),
	)
	out, err := encodeResult(res)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *Server) Name(context.Context, *empty.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String(solver.NameOf(s.oracle)), nil
}
