package neo4j

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Lee_Social/internal/pkg"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// ErrUnavailable 熔断打开或半开限流时返回
var ErrUnavailable = errors.New("graph store unavailable")

type BreakerConfig struct {
	FailureThreshold uint32        `koanf:"failure_threshold" validate:"gte=1"`
	MaxRequests      uint32        `koanf:"max_requests" validate:"gte=1"`
	Interval         time.Duration `koanf:"interval"`
	OpenTimeout      time.Duration `koanf:"open_timeout" validate:"gt=0"`
}

type Config struct {
	URI      string        `koanf:"uri" validate:"required"`
	Username string        `koanf:"username"`
	Password string        `koanf:"password"`
	Database string        `koanf:"database"`
	Timeout  time.Duration `koanf:"timeout" validate:"gt=0"`
	Breaker  BreakerConfig `koanf:"breaker"`
}

// Client 图库连接，所有查询经过熔断器
type Client struct {
	driver   neo4j.DriverWithContext
	database string
	timeout  time.Duration
	breaker  *gobreaker.CircuitBreaker[[]*neo4j.Record]
}

func Connect(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	auth := neo4j.NoAuth()
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth)
	if err != nil {
		return nil, fmt.Errorf("neo4j: failed to create driver: %w", err)
	}
	// 图库是派生索引，启动时不可达只告警，由熔断器和补偿队列兜底
	if err = driver.VerifyConnectivity(ctx); err != nil {
		logger.Warn("neo4j unreachable at startup, continuing degraded", zap.String("uri", cfg.URI), zap.Error(err))
	}
	return &Client{
		driver:   driver,
		database: cfg.Database,
		timeout:  cfg.Timeout,
		breaker:  newBreaker(cfg.Breaker, logger),
	}, nil
}

func newBreaker(cfg BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker[[]*neo4j.Record] {
	return gobreaker.NewCircuitBreaker[[]*neo4j.Record](gobreaker.Settings{
		Name:        "neo4j",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			// 调用方取消不算图库故障
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			pkg.GraphBreakerState.WithLabelValues(name).Set(float64(to))
			logger.Warn("graph breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.driver == nil {
		return nil
	}
	return c.driver.Close(ctx)
}

// Ping 不经过熔断器，供健康检查使用
func (c *Client) Ping(ctx context.Context) error {
	return c.driver.VerifyConnectivity(ctx)
}

// EnsureSchema 用户节点 id 唯一约束
func (c *Client) EnsureSchema(ctx context.Context) error {
	_, err := c.write(ctx, `CREATE CONSTRAINT user_id IF NOT EXISTS FOR (u:User) REQUIRE u.id IS UNIQUE`, nil)
	return err
}

func (c *Client) read(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	return c.run(ctx, neo4j.AccessModeRead, cypher, params)
}

func (c *Client) write(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	return c.run(ctx, neo4j.AccessModeWrite, cypher, params)
}

func (c *Client) run(ctx context.Context, mode neo4j.AccessMode, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	records, err := c.breaker.Execute(func() ([]*neo4j.Record, error) {
		session := c.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: c.database})
		defer session.Close(ctx)

		work := func(tx neo4j.ManagedTransaction) (any, error) {
			result, err := tx.Run(ctx, cypher, params)
			if err != nil {
				return nil, err
			}
			return result.Collect(ctx)
		}
		var (
			out any
			err error
		)
		if mode == neo4j.AccessModeWrite {
			out, err = session.ExecuteWrite(ctx, work, neo4j.WithTxTimeout(c.timeout))
		} else {
			out, err = session.ExecuteRead(ctx, work, neo4j.WithTxTimeout(c.timeout))
		}
		if err != nil {
			return nil, err
		}
		return out.([]*neo4j.Record), nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return nil, fmt.Errorf("neo4j: %w", err)
	}
	return records, nil
}

// decodeStrings 取出每条记录中 key 列的字符串值
func decodeStrings(records []*neo4j.Record, key string) []string {
	out := make([]string, 0, len(records))
	for _, rec := range records {
		if v, ok := rec.Get(key); ok {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

// decodeInt 取第一条记录中 key 列的整数值，无记录时为 0
func decodeInt(records []*neo4j.Record, key string) int64 {
	if len(records) == 0 {
		return 0
	}
	v, ok := records[0].Get(key)
	if !ok {
		return 0
	}
	n, _ := v.(int64)
	return n
}
