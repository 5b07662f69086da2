package proto

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	iface "github.com/MihirRajeshPanchal/BlitzAI/interface"
	"github.com/MihirRajeshPanchal/BlitzAI/monitor"
)

type MockRunner struct {
	calls   atomic.Int32
	err     error
	panics  bool
	block   chan struct{}
	running atomic.Int32
	maxSeen atomic.Int32
}

func (m *MockRunner) Run(ctx context.Context, upload *iface.UploadedMedia, task iface.TaskKind) (*iface.Artifact, error) {
	m.calls.Add(1)
	n := m.running.Add(1)
	defer m.running.Add(-1)
	for {
		seen := m.maxSeen.Load()
		if n <= seen || m.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	if m.panics {
		panic("mock runner panic")
	}
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, iface.Wrap(iface.InferenceError, "mock", ctx.Err())
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return &iface.Artifact{
		Bytes:       append([]byte("annotated:"), upload.Data...),
		ContentType: "image/jpeg",
		Filename:    string(task) + "_" + upload.Filename,
	}, nil
}

func startMock(t *testing.T, runner Runner, workers int, allowShutdown bool) (*PipelineClient, *Server) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewServer(runner, workers, allowShutdown)
	gs := NewGRPCServer(srv)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(func() {
		gs.Stop()
		srv.Stop()
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewPipelineClient(conn), srv
}

func TestRunRoundTrip(t *testing.T) {
	runner := &MockRunner{}
	client, _ := startMock(t, runner, 2, false)
	before := testutil.ToFloat64(monitor.GRPCTotal.WithLabelValues(RunMethod))

	require.NoError(t, client.Ping(context.Background()))

	art, err := client.Run(context.Background(), &iface.UploadedMedia{Data: []byte{1, 2, 3}, Filename: "face.jpg"}, iface.TaskEmotion)
	require.NoError(t, err)
	assert.Equal(t, []byte("annotated:\x01\x02\x03"), art.Bytes)
	assert.Equal(t, "image/jpeg", art.ContentType)
	assert.Equal(t, "emotion_face.jpg", art.Filename)
	assert.Equal(t, int32(1), runner.calls.Load())
	assert.Equal(t, before+1, testutil.ToFloat64(monitor.GRPCTotal.WithLabelValues(RunMethod)))
}

func TestRunErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"validation", iface.Errorf(iface.ValidationError, "pipeline.Run", "no selected file"), codes.InvalidArgument},
		{"encoding", iface.Errorf(iface.EncodingError, "engine.ReadFile", "cannot decode"), codes.InvalidArgument},
		{"inference", iface.Errorf(iface.InferenceError, "roboflow.Detect", "provider returned 500"), codes.Unavailable},
		{"resource", iface.Errorf(iface.ResourceError, "tempres.Acquire", "disk full"), codes.Internal},
		{"plain", errors.New("boom"), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := startMock(t, &MockRunner{err: tt.err}, 1, false)
			_, err := client.Run(context.Background(), &iface.UploadedMedia{Data: []byte{1}, Filename: "a.jpg"}, iface.TaskEmotion)
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}

func TestRunRejectsBadRequests(t *testing.T) {
	runner := &MockRunner{}
	client, _ := startMock(t, runner, 1, false)

	_, err := client.Run(context.Background(), &iface.UploadedMedia{Data: []byte{1}, Filename: "a.jpg"}, "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	upload, task, err := decodeRun(&structpb.Struct{Fields: map[string]*structpb.Value{
		FieldTask:  structpb.NewStringValue("emotion"),
		FieldImage: structpb.NewStringValue("%%%"),
	}})
	assert.Nil(t, upload)
	assert.Empty(t, task)
	assert.Equal(t, iface.ValidationError, iface.KindOf(err))
	assert.Zero(t, runner.calls.Load())
}

func TestWorkerPoolBoundsConcurrency(t *testing.T) {
	runner := &MockRunner{block: make(chan struct{})}
	client, _ := startMock(t, runner, 2, false)

	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		go func() {
			_, err := client.Run(context.Background(), &iface.UploadedMedia{Data: []byte{1}, Filename: "a.jpg"}, iface.TaskEmotion)
			errs <- err
		}()
	}
	require.Eventually(t, func() bool { return runner.running.Load() == 2 }, 5*time.Second, 10*time.Millisecond)
	close(runner.block)
	for i := 0; i < 5; i++ {
		assert.NoError(t, <-errs)
	}
	assert.Equal(t, int32(2), runner.maxSeen.Load())
	assert.Equal(t, int32(5), runner.calls.Load())
}

func TestRunDeadline(t *testing.T) {
	runner := &MockRunner{block: make(chan struct{})}
	client, _ := startMock(t, runner, 1, false)
	defer close(runner.block)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := client.Run(ctx, &iface.UploadedMedia{Data: []byte{1}, Filename: "a.jpg"}, iface.TaskEmotion)
	assert.Equal(t, codes.DeadlineExceeded, status.Code(err))
}

func TestWorkerSurvivesPanic(t *testing.T) {
	runner := &MockRunner{panics: true}
	client, _ := startMock(t, runner, 1, false)
	for i := 0; i < 2; i++ {
		_, err := client.Run(context.Background(), &iface.UploadedMedia{Data: []byte{1}, Filename: "a.jpg"}, iface.TaskEmotion)
		assert.Equal(t, codes.Internal, status.Code(err))
	}
	assert.Equal(t, int32(2), runner.calls.Load())
}

func TestShutdown(t *testing.T) {
	client, _ := startMock(t, &MockRunner{}, 1, false)
	assert.Equal(t, codes.PermissionDenied, status.Code(client.Shutdown(context.Background())))

	client, srv := startMock(t, &MockRunner{}, 1, true)
	require.NoError(t, client.Shutdown(context.Background()))
	require.NoError(t, client.Shutdown(context.Background()))
	select {
	case <-srv.CloseChannel:
	case <-time.After(time.Second):
		t.Fatal("CloseChannel not closed")
	}
}
