package grpc

import (
	"context"
	"fmt"
	"time"

	"github.com/example/tablepos/pkg/discovery"
	"github.com/example/tablepos/pkg/models"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// ClientManager owns the connection from the gateway to the order service.
type ClientManager struct {
	discovery *discovery.ServiceDiscovery
	logger    *zap.Logger

	fallback    string
	orderConn   *grpc.ClientConn
	orderClient *OrderClient
}

// NewClientManager creates a client manager. fallback is the order service
// address used when discovery is nil or finds nothing.
func NewClientManager(fallback string, logger *zap.Logger, disc *discovery.ServiceDiscovery) *ClientManager {
	return &ClientManager{
		discovery: disc,
		logger:    logger,
		fallback:  fallback,
	}
}

func (m *ClientManager) resolve(serviceName string) string {
	target := m.fallback
	if m.discovery == nil {
		return target
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	instances, err := m.discovery.Discover(ctx, serviceName)
	if err == nil && len(instances) > 0 {
		target = instances[0].Addr()
		m.logger.Info("Discovered service", zap.String("service", serviceName), zap.String("address", target))
	} else {
		m.logger.Info("Using default address", zap.String("service", serviceName), zap.String("address", target), zap.Error(err))
	}
	return target
}

// Connect sets up the order service client. The connection is established
// lazily on the first call.
func (m *ClientManager) Connect(serviceName string, opts ...grpc.DialOption) error {
	target := m.resolve(serviceName)
	m.logger.Info("Connecting to order service", zap.String("target", target))

	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to order service: %w", err)
	}

	m.orderConn = conn
	m.orderClient = NewOrderClient(conn)
	return nil
}

func (m *ClientManager) OrderClient() *OrderClient {
	return m.orderClient
}

func (m *ClientManager) Close() error {
	if m.orderConn != nil {
		if err := m.orderConn.Close(); err != nil {
			return fmt.Errorf("order connection close error: %w", err)
		}
	}
	return nil
}

// OrderClient calls the order service.
type OrderClient struct {
	conn grpc.ClientConnInterface
}

func NewOrderClient(conn grpc.ClientConnInterface) *OrderClient {
	return &OrderClient{conn: conn}
}

func (c *OrderClient) ListOrders(ctx context.Context, status string) ([]models.Order, error) {
	req, err := structpb.NewStruct(map[string]interface{}{"status": status})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, listOrdersMethod, req, out); err != nil {
		return nil, fromStatus("list orders", err)
	}

	orders := []models.Order{}
	if v, ok := out.GetFields()["orders"]; ok {
		if err := fromValue(v, &orders); err != nil {
			return nil, fmt.Errorf("decode orders: %w", err)
		}
	}
	return orders, nil
}

// UpdateStatus moves an order to a new status on the order service.
func (c *OrderClient) UpdateStatus(ctx context.Context, id string, to models.OrderStatus) (models.Order, error) {
	req, err := structpb.NewStruct(map[string]interface{}{"order_id": id, "status": string(to)})
	if err != nil {
		return models.Order{}, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, updateStatusMethod, req, out); err != nil {
		return models.Order{}, fromStatus("update order status", err)
	}

	var order models.Order
	if err := fromValue(out.GetFields()["order"], &order); err != nil {
		return models.Order{}, fmt.Errorf("decode order: %w", err)
	}
	return order, nil
}
