package remote

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/golang/protobuf/ptypes/empty"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"pruntime/formula"
	"pruntime/solver"
)

// An oracle answering queries through a remote Server
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) Solve(ctx context.Context, f formula.Formula) (solver.Result, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, solveMethod, EncodeFormula(f), out); err != nil {
		switch status.Code(err) {
		case codes.ResourceExhausted:
			return solver.Result{}, solver.ErrSolverBusy
		case codes.DeadlineExceeded:
			return solver.Result{Status: solver.Unknown, Reason: solver.ErrTimeout.Error()}, nil
		case codes.Canceled:
			return solver.Result{Status: solver.Unknown, Reason: solver.ErrCanceled.Error()}, nil
		}
		return solver.Result{}, errors.Wrap(err, "remote: solve")
	}
	return decodeResult(out)
}

// The name of the remote oracle
func (c *Client) RemoteName(ctx context.Context) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.conn.Invoke(ctx, nameMethod, &empty.Empty{}, out); err != nil {
		return "", errors.Wrap(err, "remote: name")
	}
	return out.GetValue(), nil
}

func (c *Client) Name() string {
	return "remote"
}
