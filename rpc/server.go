package rpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/spooky-finn/marketsync/domain"
	"github.com/spooky-finn/marketsync/infrastructure/logger"
	"github.com/spooky-finn/marketsync/usecase"
)

const serviceName = "marketsync.MarketData"

var log = logger.WithComponent("rpc")

type MarketViewer interface {
	Switch(ctx context.Context, symbol *domain.MarketSymbol) error
	Snapshot() *usecase.MarketSnapshot
	Status() usecase.Status
}

type FavoritesViewer interface {
	LoadUser(ctx context.Context, userID string) error
	Snapshot() *usecase.FavoritesSnapshot
	Status() usecase.Status
}

// MarketDataServer is the query surface over the two subscription contexts.
// Requests and responses are google.protobuf.Struct documents.
type MarketDataServer interface {
	GetMarketView(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	GetFavorites(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Status(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

type Server struct {
	market            MarketViewer
	favorites         FavoritesViewer
	validationService *ValidationService
}

var _ MarketDataServer = (*Server)(nil)

func NewServer(market MarketViewer, favorites FavoritesViewer, conf *ValidationServiceConfig) *Server {
	return &Server{
		market:            market,
		favorites:         favorites,
		validationService: NewValidationService(conf),
	}
}

var MarketDataServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*MarketDataServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetMarketView", Handler: unaryHandler("GetMarketView", MarketDataServer.GetMarketView)},
		{MethodName: "GetFavorites", Handler: unaryHandler("GetFavorites", MarketDataServer.GetFavorites)},
		{MethodName: "Status", Handler: unaryHandler("Status", MarketDataServer.Status)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "marketsync/market_data.proto",
}

type unaryMethod func(MarketDataServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call unaryMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := fmt.Sprintf("/%s/%s", serviceName, name)

	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(MarketDataServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(MarketDataServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func Register(s grpc.ServiceRegistrar, srv MarketDataServer) {
	s.RegisterService(&MarketDataServiceDesc, srv)
}

func NewGRPCServer(srv MarketDataServer, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.UnaryInterceptor(loggingInterceptor)}, opts...)
	s := grpc.NewServer(opts...)
	Register(s, srv)
	return s
}

// ListenAndServe serves until ctx is cancelled, then stops gracefully.
func ListenAndServe(ctx context.Context, addr string, srv MarketDataServer) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s := NewGRPCServer(srv)
	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()

	log.WithField("addr", lis.Addr().String()).Info("grpc server listening")
	if err := s.Serve(lis); err != nil {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

func loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	entry := log.WithFields(logrus.Fields{
		"method":   info.FullMethod,
		"duration": time.Since(start),
		"code":     status.Code(err).String(),
	})
	if err != nil {
		entry.WithError(err).Warn("rpc failed")
	} else {
		entry.Debug("rpc served")
	}
	return resp, err
}
