package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/sortdl/internal/core/api"
	"github.com/solatis/sortdl/internal/core/auth"
	"github.com/solatis/sortdl/internal/core/config"
	"github.com/solatis/sortdl/internal/rules"
)

type testServer struct {
	server *GRPCServer
	conn   *grpc.ClientConn
	hook   *test.Hook
}

func startServer(t *testing.T, authenticator *auth.Authenticator) *testServer {
	t.Helper()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	log := logrus.NewEntry(logger)

	engine := rules.NewEngine(rules.WithLogger(log))
	engine.Update(nil)
	service, err := api.NewSuggestService(engine, &fakeRules{}, log)
	require.NoError(t, err)

	cfg := config.DefaultConfig().Server
	srv, err := NewGRPCServer(&cfg, service, authenticator, log)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	go srv.Serve(lis)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	return &testServer{server: srv, conn: conn, hook: hook}
}

func suggestRequest(t *testing.T) *structpb.Struct {
	t.Helper()
	req, err := structpb.NewStruct(map[string]any{"url": "https://example.com/a.pdf"})
	require.NoError(t, err)
	return req
}

func TestNewGRPCServer_Validation(t *testing.T) {
	service, err := api.NewSuggestService(rules.NewEngine(), &fakeRules{}, nil)
	require.NoError(t, err)
	cfg := config.DefaultConfig().Server

	_, err = NewGRPCServer(nil, service, nil, nil)
	assert.Error(t, err)

	_, err = NewGRPCServer(&cfg, nil, nil, nil)
	assert.Error(t, err)

	srv, err := NewGRPCServer(&cfg, service, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:50061", srv.Addr())
}

func TestGRPCServer_Suggest(t *testing.T) {
	ts := startServer(t, nil)
	client := api.NewSuggestClient(ts.conn)

	resp, err := client.Suggest(context.Background(), suggestRequest(t))
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", resp.AsMap()["filename"])

	var logged bool
	for _, e := range ts.hook.AllEntries() {
		if e.Message == "Handled request" && e.Data["method"] == api.SuggestFullMethod {
			logged = true
			assert.Equal(t, "OK", e.Data["code"])
		}
	}
	assert.True(t, logged, "request was not logged")
}

func TestGRPCServer_Health(t *testing.T) {
	key, err := auth.GenerateAPIKey()
	require.NoError(t, err)
	authenticator, err := auth.NewAuthenticator(key)
	require.NoError(t, err)

	ts := startServer(t, authenticator)
	health := grpc_health_v1.NewHealthClient(ts.conn)

	for _, svc := range []string{"", api.ServiceName} {
		resp, err := health.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: svc})
		require.NoError(t, err, "health check for %q", svc)
		assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)
	}
}

func TestGRPCServer_APIKey(t *testing.T) {
	key, err := auth.GenerateAPIKey()
	require.NoError(t, err)
	authenticator, err := auth.NewAuthenticator(key)
	require.NoError(t, err)

	ts := startServer(t, authenticator)
	client := api.NewSuggestClient(ts.conn)

	_, err = client.Suggest(context.Background(), suggestRequest(t))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := metadata.AppendToOutgoingContext(context.Background(), auth.MetadataKey, key)
	resp, err := client.Suggest(ctx, suggestRequest(t))
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", resp.AsMap()["filename"])

	var warned bool
	for _, e := range ts.hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["code"] == "Unauthenticated" {
			warned = true
		}
	}
	assert.True(t, warned, "rejected request was not logged at warn")
}

func TestTimeoutInterceptor(t *testing.T) {
	info := &grpc.UnaryServerInfo{FullMethod: api.SuggestFullMethod}

	remaining := func(ctx context.Context, _ any) (any, error) {
		deadline, ok := ctx.Deadline()
		if !ok {
			return time.Duration(0), nil
		}
		return time.Until(deadline), nil
	}

	t.Run("adds deadline", func(t *testing.T) {
		got, err := TimeoutInterceptor(time.Second)(context.Background(), nil, info, remaining)
		require.NoError(t, err)
		assert.InDelta(t, float64(time.Second), float64(got.(time.Duration)), float64(100*time.Millisecond))
	})

	t.Run("keeps earlier deadline", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		got, err := TimeoutInterceptor(time.Hour)(ctx, nil, info, remaining)
		require.NoError(t, err)
		assert.LessOrEqual(t, got.(time.Duration), 100*time.Millisecond)
	})

	t.Run("disabled", func(t *testing.T) {
		got, err := TimeoutInterceptor(0)(context.Background(), nil, info, remaining)
		require.NoError(t, err)
		assert.Equal(t, time.Duration(0), got)
	})

	t.Run("handler sees expiry", func(t *testing.T) {
		slow := func(ctx context.Context, _ any) (any, error) {
			<-ctx.Done()
			return nil, status.FromContextError(ctx.Err()).Err()
		}
		_, err := TimeoutInterceptor(10*time.Millisecond)(context.Background(), nil, info, slow)
		assert.Equal(t, codes.DeadlineExceeded, status.Code(err))
	})
}
