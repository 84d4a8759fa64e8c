package notify

import (
	"testing"

	"github.com/example/tablepos/pkg/config"
	"go.uber.org/zap"
)

func TestOpenDrivers(t *testing.T) {
	ps, closeFn, err := Open(config.NotifyConfig{Driver: "local"}, config.RabbitMQConfig{}, nil, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := ps.(*Hub); !ok {
		t.Fatalf("local driver = %T", ps)
	}
	if err := closeFn(); err != nil {
		t.Fatal(err)
	}

	if _, _, err := Open(config.NotifyConfig{Driver: "redis"}, config.RabbitMQConfig{}, nil, zap.NewNop()); err == nil {
		t.Fatal("redis driver without client succeeded")
	}
	if _, _, err := Open(config.NotifyConfig{Driver: "kafka"}, config.RabbitMQConfig{}, nil, zap.NewNop()); err == nil {
		t.Fatal("unknown driver succeeded")
	}
}
