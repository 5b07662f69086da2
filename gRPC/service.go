package proto

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	iface "github.com/MihirRajeshPanchal/BlitzAI/interface"
)

// The service carries well-known types only, so it is described by hand
// instead of from generated code.
const (
	ServiceName    = "blitzai.v1.Pipeline"
	RunMethod      = "/" + ServiceName + "/Run"
	PingMethod     = "/" + ServiceName + "/Ping"
	ShutdownMethod = "/" + ServiceName + "/Shutdown"
)

type PipelineServer interface {
	Run(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Ping(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	Shutdown(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
}

func RegisterPipelineServer(s grpc.ServiceRegistrar, srv PipelineServer) {
	s.RegisterService(&PipelineServiceDesc, srv)
}

var PipelineServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PipelineServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Run", Handler: runHandler},
		{MethodName: "Ping", Handler: pingHandler},
		{MethodName: "Shutdown", Handler: shutdownHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "blitzai/v1/pipeline.proto",
}

func runHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PipelineServer).Run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RunMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(PipelineServer).Run(ctx, req.(*structpb.Struct))
	})
}

func pingHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PipelineServer).Ping(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PingMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(PipelineServer).Ping(ctx, req.(*emptypb.Empty))
	})
}

func shutdownHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PipelineServer).Shutdown(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ShutdownMethod}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(PipelineServer).Shutdown(ctx, req.(*emptypb.Empty))
	})
}

// PipelineClient is the client side of the Pipeline service.
type PipelineClient struct {
	cc grpc.ClientConnInterface
}

func NewPipelineClient(cc grpc.ClientConnInterface) *PipelineClient {
	return &PipelineClient{cc: cc}
}

// Run sends upload for task and decodes the returned artifact.
func (c *PipelineClient) Run(ctx context.Context, upload *iface.UploadedMedia, task iface.TaskKind, opts ...grpc.CallOption) (*iface.Artifact, error) {
	req, err := structpb.NewStruct(map[string]any{
		FieldTask:        string(task),
		FieldFilename:    upload.Filename,
		FieldContentType: upload.ContentType,
		FieldImage:       base64.StdEncoding.EncodeToString(upload.Data),
	})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, RunMethod, req, out, opts...); err != nil {
		return nil, err
	}
	fields := out.GetFields()
	data, err := base64.StdEncoding.DecodeString(fields[FieldImage].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	return &iface.Artifact{
		Bytes:       data,
		ContentType: fields[FieldContentType].GetStringValue(),
		Filename:    fields[FieldFilename].GetStringValue(),
	}, nil
}

func (c *PipelineClient) Ping(ctx context.Context, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, PingMethod, &emptypb.Empty{}, new(emptypb.Empty), opts...)
}

func (c *PipelineClient) Shutdown(ctx context.Context, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, ShutdownMethod, &emptypb.Empty{}, new(emptypb.Empty), opts...)
}
