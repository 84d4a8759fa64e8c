package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/example/tablepos/pkg/config"
	"github.com/example/tablepos/pkg/models"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	OrderServiceName = "tablepos.v1.OrderService"

	listOrdersMethod   = "/" + OrderServiceName + "/ListOrders"
	updateStatusMethod = "/" + OrderServiceName + "/UpdateOrderStatus"
)

// OrderStore is the part of the order repository served over gRPC.
type OrderStore interface {
	Orders(status string) []models.Order
	UpdateStatus(ctx context.Context, id string, to models.OrderStatus) (models.Order, error)
}

type orderService interface {
	ListOrders(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	UpdateOrderStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// orderServiceDesc describes the order service by hand. Requests and replies
// are Struct messages holding the JSON form of the models.
var orderServiceDesc = grpc.ServiceDesc{
	ServiceName: OrderServiceName,
	HandlerType: (*orderService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListOrders", Handler: listOrdersHandler},
		{MethodName: "UpdateOrderStatus", Handler: updateOrderStatusHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func listOrdersHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(orderService).ListOrders(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listOrdersMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(orderService).ListOrders(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func updateOrderStatusHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(orderService).UpdateOrderStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: updateStatusMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(orderService).UpdateOrderStatus(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

type OrderServer struct {
	orders OrderStore
	logger *zap.Logger
	config *config.ServerConfig

	srv    *grpc.Server
	health *health.Server
}

func NewOrderServer(cfg *config.ServerConfig, orders OrderStore, logger *zap.Logger) *OrderServer {
	s := &OrderServer{
		orders: orders,
		logger: logger,
		config: cfg,
		health: health.NewServer(),
	}

	s.srv = grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor))
	s.srv.RegisterService(&orderServiceDesc, s)
	healthpb.RegisterHealthServer(s.srv, s.health)
	reflection.Register(s.srv)
	s.health.SetServingStatus(OrderServiceName, healthpb.HealthCheckResponse_SERVING)

	return s
}

func (s *OrderServer) loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	fields := []zap.Field{
		zap.String("method", info.FullMethod),
		zap.Duration("latency", time.Since(start)),
	}
	if err != nil {
		s.logger.Warn("gRPC request failed", append(fields, zap.Error(err))...)
	} else {
		s.logger.Info("gRPC request", fields...)
	}
	return resp, err
}

func (s *OrderServer) Start() error {
	lis, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(lis)
}

func (s *OrderServer) Serve(lis net.Listener) error {
	s.logger.Info("Order service started", zap.String("address", lis.Addr().String()))
	return s.srv.Serve(lis)
}

func (s *OrderServer) Stop() {
	s.health.Shutdown()
	s.srv.GracefulStop()
}

// ListOrders returns the cached orders, newest first. An empty or "all" status
// returns every order.
func (s *OrderServer) ListOrders(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	orders := s.orders.Orders(stringField(req, "status"))

	resp, err := toStruct(map[string]interface{}{
		"orders": orders,
		"total":  len(orders),
	})
	if err != nil {
		s.logger.Error("Failed to encode orders", zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to encode orders")
	}
	return resp, nil
}

func (s *OrderServer) UpdateOrderStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := stringField(req, "order_id")
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "order_id is required")
	}

	order, err := s.orders.UpdateStatus(ctx, id, models.OrderStatus(stringField(req, "status")))
	if err != nil {
		return nil, toStatus(err)
	}

	resp, err := toStruct(map[string]interface{}{"order": order})
	if err != nil {
		s.logger.Error("Failed to encode order", zap.String("order_id", id), zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to encode order")
	}
	return resp, nil
}
