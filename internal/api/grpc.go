package api

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/victornm/facematch/internal/domain"
	"github.com/victornm/facematch/internal/errors"
	"github.com/victornm/facematch/internal/leaderboard"
)

const (
	gameServiceName = "facematch.v1.GameService"

	// CodecName is the gRPC content-subtype of the service messages.
	CodecName = "json"
)

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec encodes gRPC messages as JSON.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return CodecName }

// GameServiceServer is the server API of facematch.v1.GameService.
type GameServiceServer interface {
	CreateGame(context.Context, *CreateGameRequest) (*CreateGameResponse, error)
	NextRound(context.Context, *NextRoundRequest) (*NextRoundResponse, error)
	SubmitAnswer(context.Context, *SubmitAnswerRequest) (*SubmitAnswerResponse, error)
	SubmitName(context.Context, *SubmitNameRequest) (*SubmitNameResponse, error)
	GetLeaderboard(context.Context, *GetLeaderboardRequest) (*GetLeaderboardResponse, error)
}

func RegisterGameServiceServer(s grpc.ServiceRegistrar, srv GameServiceServer) {
	s.RegisterService(&gameServiceDesc, srv)
}

var gameServiceDesc = grpc.ServiceDesc{
	ServiceName: gameServiceName,
	HandlerType: (*GameServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("CreateGame", GameServiceServer.CreateGame),
		unaryMethod("NextRound", GameServiceServer.NextRound),
		unaryMethod("SubmitAnswer", GameServiceServer.SubmitAnswer),
		unaryMethod("SubmitName", GameServiceServer.SubmitName),
		unaryMethod("GetLeaderboard", GameServiceServer.GetLeaderboard),
	},
	Streams: []grpc.StreamDesc{},
}

func unaryMethod[Req, Resp any](name string, call func(GameServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}

			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(GameServiceServer), ctx, req.(*Req))
			}

			if interceptor == nil {
				return handler(ctx, in)
			}

			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + gameServiceName + "/" + name,
			}

			return interceptor(ctx, in, info, handler)
		},
	}
}

// GameServiceClient calls facematch.v1.GameService with the JSON codec.
type GameServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewGameServiceClient(cc grpc.ClientConnInterface) *GameServiceClient {
	return &GameServiceClient{cc: cc}
}

func (c *GameServiceClient) CreateGame(ctx context.Context, in *CreateGameRequest, opts ...grpc.CallOption) (*CreateGameResponse, error) {
	out := new(CreateGameResponse)
	if err := c.invoke(ctx, "CreateGame", in, out, opts); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *GameServiceClient) NextRound(ctx context.Context, in *NextRoundRequest, opts ...grpc.CallOption) (*NextRoundResponse, error) {
	out := new(NextRoundResponse)
	if err := c.invoke(ctx, "NextRound", in, out, opts); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *GameServiceClient) SubmitAnswer(ctx context.Context, in *SubmitAnswerRequest, opts ...grpc.CallOption) (*SubmitAnswerResponse, error) {
	out := new(SubmitAnswerResponse)
	if err := c.invoke(ctx, "SubmitAnswer", in, out, opts); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *GameServiceClient) SubmitName(ctx context.Context, in *SubmitNameRequest, opts ...grpc.CallOption) (*SubmitNameResponse, error) {
	out := new(SubmitNameResponse)
	if err := c.invoke(ctx, "SubmitName", in, out, opts); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *GameServiceClient) GetLeaderboard(ctx context.Context, in *GetLeaderboardRequest, opts ...grpc.CallOption) (*GetLeaderboardResponse, error) {
	out := new(GetLeaderboardResponse)
	if err := c.invoke(ctx, "GetLeaderboard", in, out, opts); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *GameServiceClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+gameServiceName+"/"+method, in, out, opts...)
}

func (a *API) CreateGame(ctx context.Context, req *CreateGameRequest) (*CreateGameResponse, error) {
	_, g, err := a.createGame(ctx, req.Mode)
	if err != nil {
		return nil, errors.Convert(err)
	}

	return &CreateGameResponse{Game: toGame(*g)}, nil
}

func (a *API) NextRound(ctx context.Context, req *NextRoundRequest) (*NextRoundResponse, error) {
	resp, err := a.nextRound(ctx, req.GameID)
	if err != nil {
		return nil, errors.Convert(err)
	}

	return resp, nil
}

func (a *API) SubmitAnswer(ctx context.Context, req *SubmitAnswerRequest) (*SubmitAnswerResponse, error) {
	resp, err := a.submitAnswer(ctx, req.GameID, req.Choice)
	if err != nil {
		return nil, errors.Convert(err)
	}

	return resp, nil
}

func (a *API) SubmitName(ctx context.Context, req *SubmitNameRequest) (*SubmitNameResponse, error) {
	l, err := a.submitName(ctx, req.GameID, req.Name)
	if err != nil {
		return nil, errors.Convert(err)
	}

	return &SubmitNameResponse{Leaderboard: toLeaderboard(l)}, nil
}

func (a *API) GetLeaderboard(ctx context.Context, req *GetLeaderboardRequest) (*GetLeaderboardResponse, error) {
	l, err := a.ls.GetScores(ctx, leaderboard.GetScoresRequest{Mode: domain.Mode(req.Mode)})
	if err != nil {
		return nil, errors.Convert(err)
	}

	return &GetLeaderboardResponse{Leaderboard: toLeaderboard(l)}, nil
}
