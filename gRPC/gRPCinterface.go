package proto

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	iface "github.com/MihirRajeshPanchal/BlitzAI/interface"
	"github.com/MihirRajeshPanchal/BlitzAI/logger"
	"github.com/MihirRajeshPanchal/BlitzAI/monitor"
)

// Request and response field names of Pipeline/Run.
const (
	FieldTask        = "task"
	FieldFilename    = "filename"
	FieldContentType = "content_type"
	FieldImage       = "image"
)

// Runner executes a detection task on an upload.
type Runner interface {
	Run(ctx context.Context, upload *iface.UploadedMedia, task iface.TaskKind) (*iface.Artifact, error)
}

type jobResult struct {
	art *iface.Artifact
	err error
}

type JobPackage struct {
	ctx    context.Context
	upload *iface.UploadedMedia
	task   iface.TaskKind
	Result chan jobResult
}

// Server implements PipelineServer on top of a fixed pool of workers, so
// at most that many pipelines run at once no matter how many streams are open.
type Server struct {
	runner    Runner
	jobs      chan JobPackage
	wg        sync.WaitGroup
	stopOnce  sync.Once
	closeOnce sync.Once
	// CloseChannel is closed by a Shutdown call when remote shutdown is allowed.
	CloseChannel  chan struct{}
	allowShutdown bool
}

func NewServer(runner Runner, workersNum int, allowShutdown bool) *Server {
	if workersNum <= 0 {
		workersNum = 1
	}
	s := &Server{
		runner:        runner,
		jobs:          make(chan JobPackage, workersNum),
		CloseChannel:  make(chan struct{}),
		allowShutdown: allowShutdown,
	}
	s.StartWorker(workersNum)
	return s
}

func (s *Server) StartWorker(workerNum int) {
	for i := 0; i < workerNum; i++ {
		s.wg.Add(1)
		go s.runWorker(i)
	}
}

func (s *Server) runWorker(workerID int) {
	defer s.wg.Done()
	logger.Log().Debug("grpc worker created", zap.Int("worker", workerID))
	for job := range s.jobs {
		job.Result <- s.execute(workerID, job)
	}
}

func (s *Server) execute(workerID int, job JobPackage) (res jobResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log().Error("grpc worker panic", zap.Int("worker", workerID), zap.Any("panic", r))
			res = jobResult{err: fmt.Errorf("worker %d panic: %v", workerID, r)}
		}
	}()
	if err := job.ctx.Err(); err != nil {
		return jobResult{err: err}
	}
	art, err := s.runner.Run(job.ctx, job.upload, job.task)
	return jobResult{art: art, err: err}
}

// Stop drains the worker pool. Call it after the grpc.Server has stopped.
func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.jobs) })
	s.wg.Wait()
}

func (s *Server) Run(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	upload, task, err := decodeRun(req)
	if err != nil {
		return nil, toStatus(err)
	}
	job := JobPackage{ctx: ctx, upload: upload, task: task, Result: make(chan jobResult, 1)}
	select {
	case s.jobs <- job:
	case <-ctx.Done():
		return nil, status.FromContextError(ctx.Err()).Err()
	}
	var res jobResult
	select {
	case res = <-job.Result:
	case <-ctx.Done():
		return nil, status.FromContextError(ctx.Err()).Err()
	}
	if res.err != nil {
		return nil, toStatus(res.err)
	}
	return structpb.NewStruct(map[string]any{
		FieldFilename:    res.art.Filename,
		FieldContentType: res.art.ContentType,
		FieldImage:       base64.StdEncoding.EncodeToString(res.art.Bytes),
	})
}

func (s *Server) Ping(context.Context, *emptypb.Empty) (*emptypb.Empty, error) {
	return &emptypb.Empty{}, nil
}

func (s *Server) Shutdown(context.Context, *emptypb.Empty) (*emptypb.Empty, error) {
	if !s.allowShutdown {
		return nil, status.Error(codes.PermissionDenied, "remote shutdown disabled")
	}
	logger.Log().Warn("shutdown requested over grpc")
	s.closeOnce.Do(func() { close(s.CloseChannel) })
	return &emptypb.Empty{}, nil
}

func decodeRun(req *structpb.Struct) (*iface.UploadedMedia, iface.TaskKind, error) {
	const op = "grpc.Run"
	fields := req.GetFields()
	task := fields[FieldTask].GetStringValue()
	if task == "" {
		return nil, "", iface.Errorf(iface.ValidationError, op, "missing %s", FieldTask)
	}
	raw := fields[FieldImage].GetStringValue()
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, "", iface.Errorf(iface.ValidationError, op, "image is not base64: %v", err)
	}
	return &iface.UploadedMedia{
		Data:        data,
		Filename:    fields[FieldFilename].GetStringValue(),
		ContentType: fields[FieldContentType].GetStringValue(),
	}, iface.TaskKind(task), nil
}

// toStatus maps error kinds to gRPC codes.
func toStatus(err error) error {
	if _, ok := status.FromError(err); ok && iface.KindOf(err) == iface.UnknownError {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	var code codes.Code
	switch iface.KindOf(err) {
	case iface.ValidationError, iface.EncodingError:
		code = codes.InvalidArgument
	case iface.InferenceError:
		code = codes.Unavailable
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

// metricsInterceptor counts calls per method and logs failures.
func metricsInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	monitor.GRPCTotal.WithLabelValues(info.FullMethod).Inc()
	resp, err := handler(ctx, req)
	if err != nil {
		logger.Log().Warn("grpc call failed", zap.String("method", info.FullMethod), zap.Error(err))
	}
	return resp, err
}

// NewGRPCServer returns a grpc.Server with srv registered.
func NewGRPCServer(srv PipelineServer) *grpc.Server {
	s := grpc.NewServer(grpc.UnaryInterceptor(metricsInterceptor))
	RegisterPipelineServer(s, srv)
	return s
}

func StartGRPCServer(port int, srv PipelineServer) (*grpc.Server, error) {
	addr := fmt.Sprintf(":%d", port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	s := NewGRPCServer(srv)
	go func() {
		logger.Log().Info("grpc server listening", zap.String("addr", lis.Addr().String()))
		if err := s.Serve(lis); err != nil {
			logger.Log().Error("grpc server stopped", zap.Error(err))
		}
	}()
	return s, nil
}
