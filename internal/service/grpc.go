package service

import (
	"context"
	"errors"

	"go-ticker/internal/common"
	"go-ticker/internal/metrics"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const subscribeMethod = "/" + common.GRPCServiceName + "/Subscribe"

// CandleServiceServer streams snapshots for the timeframe named in the request.
type CandleServiceServer interface {
	Subscribe(req *wrapperspb.StringValue, stream grpc.ServerStream) error
}

var CandleServiceDesc = grpc.ServiceDesc{
	ServiceName: common.GRPCServiceName,
	HandlerType: (*CandleServiceServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "ticker.proto",
}

func RegisterCandleServiceServer(s grpc.ServiceRegistrar, srv CandleServiceServer) {
	s.RegisterService(&CandleServiceDesc, srv)
}

func subscribeHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(CandleServiceServer).Subscribe(req, stream)
}

// Subscribe streams full snapshots until the client goes away or the service
// shuts down.
func (s *Service) Subscribe(req *wrapperspb.StringValue, stream grpc.ServerStream) error {
	ch, cancel, err := s.Watch(req.GetValue())
	if err != nil {
		if errors.Is(err, common.ErrInvalidTimeframe) {
			s.logger.Warn(common.ErrCodeInvalidTimeframe, common.ErrMsgInvalidTimeframe,
				"Rejected subscription", "timeframe", req.GetValue())
			return status.Error(codes.InvalidArgument, err.Error())
		}
		return status.Error(codes.Unavailable, err.Error())
	}
	defer cancel()

	metrics.Subscribers.WithLabelValues("grpc").Inc()
	defer metrics.Subscribers.WithLabelValues("grpc").Dec()

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return status.Error(codes.Unavailable, ErrClosed.Error())
			}
			msg, err := EncodeSnapshot(snap)
			if err != nil {
				return status.Error(codes.Internal, err.Error())
			}
			if err := stream.SendMsg(msg); err != nil {
				s.logger.Error(err, common.ErrCodeStreamClosed, common.ErrMsgStreamClosed,
					"Failed to send snapshot to stream", "timeframe", snap.Timeframe)
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

// CandleServiceClient is the client side of CandleServiceDesc.
type CandleServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewCandleServiceClient(cc grpc.ClientConnInterface) *CandleServiceClient {
	return &CandleServiceClient{cc: cc}
}

// SnapshotStream receives snapshots from a Subscribe call.
type SnapshotStream struct {
	grpc.ClientStream
}

func (x *SnapshotStream) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *CandleServiceClient) Subscribe(ctx context.Context, timeframe string, opts ...grpc.CallOption) (*SnapshotStream, error) {
	stream, err := c.cc.NewStream(ctx, &CandleServiceDesc.Streams[0], subscribeMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &SnapshotStream{ClientStream: stream}
	if err := x.ClientStream.SendMsg(wrapperspb.String(timeframe)); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
