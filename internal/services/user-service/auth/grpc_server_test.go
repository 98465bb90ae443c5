package auth

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

func dialIdentity(t *testing.T, e *testEnv) *grpc.ClientConn {
	t.Helper()
	ln := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(UnaryAuthInterceptor(e.tokens)))
	RegisterIdentityService(srv, NewIdentityGRPC(e.uc, nil))
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return ln.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func callIdentity(ctx context.Context, conn *grpc.ClientConn, method string) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	err := conn.Invoke(ctx, "/"+IdentityServiceName+"/"+method, &emptypb.Empty{}, out)
	return out, err
}

func TestIdentityServiceRequiresAccessToken(t *testing.T) {
	e := newTestEnv(t)
	conn := dialIdentity(t, e)

	_, err := callIdentity(context.Background(), conn, "WhoAmI")
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer forged")
	_, err = callIdentity(ctx, conn, "Profile")
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestIdentityServiceAnswersForCaller(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	u := register(t, e, "a@x.com", "secret1", "Ann")
	res, err := e.uc.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	conn := dialIdentity(t, e)

	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+res.Tokens.AccessToken)
	who, err := callIdentity(ctx, conn, "WhoAmI")
	require.NoError(t, err)
	assert.Equal(t, u.ID.String(), who.Fields["userId"].GetStringValue())
	assert.Equal(t, "jobseeker", who.Fields["role"].GetStringValue())

	prof, err := callIdentity(ctx, conn, "Profile")
	require.NoError(t, err)
	assert.Equal(t, "Ann", prof.Fields["name"].GetStringValue())
	assert.Equal(t, float64(1), prof.Fields["activeSessions"].GetNumberValue())
}

func TestIdentityServiceUnknownUser(t *testing.T) {
	e := newTestEnv(t)
	token, _ := accessFor(t, e, "jobseeker")
	conn := dialIdentity(t, e)

	ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
	_, err := callIdentity(ctx, conn, "Profile")
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = callIdentity(ctx, conn, "WhoAmI")
	assert.NoError(t, err)
}
