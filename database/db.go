package database

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"shop-svc/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const (
	usersCollection    = "users"
	productsCollection = "products"
	ordersCollection   = "orders"
)

// Client owns the single MongoDB connection pool of the process.
type Client struct {
	client       *mongo.Client
	db           *mongo.Database
	logger       *zap.Logger
	disconnected atomic.Bool
}

// InitDB connects to MongoDB, retrying with a doubling backoff, and ensures indexes.
func InitDB(ctx context.Context, cfg config.MongoConfig, logger *zap.Logger) (*Client, error) {
	c := &Client{logger: logger}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1).SetStrict(true).SetDeprecationErrors(true)).
		SetConnectTimeout(10 * time.Second).
		SetHeartbeatInterval(10 * time.Second).
		SetRetryWrites(true).
		SetRetryReads(true).
		SetServerMonitor(c.serverMonitor()).
		SetPoolMonitor(c.poolMonitor())

	attempts := cfg.ConnectRetries
	if attempts < 1 {
		attempts = 1
	}
	backoff := time.Second

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		c.client, err = connect(ctx, opts)
		if err == nil {
			break
		}

		logger.Warn("Failed to connect to MongoDB",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(err),
		)
		if attempt == attempts {
			return nil, fmt.Errorf("failed to connect to MongoDB after %d attempts: %w", attempts, err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	c.db = c.client.Database(cfg.DB)

	if err := c.EnsureIndexes(ctx); err != nil {
		_ = c.Close(context.Background())
		return nil, err
	}

	logger.Info("MongoDB connection established", zap.String("database", cfg.DB))
	return c, nil
}

func connect(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping: %w", err)
	}
	return client, nil
}

func (c *Client) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		productsCollection: {
			{Keys: bson.D{{Key: "category", Value: 1}}},
		},
		ordersCollection: {
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
	}

	for name, models := range indexes {
		if _, err := c.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// Store returns the Mongo-backed repositories sharing this client.
func (c *Client) Store() *Store {
	return &Store{
		Users:    NewUserRepository(c.db.Collection(usersCollection)),
		Products: NewProductRepository(c.db.Collection(productsCollection)),
		Orders:   NewOrderRepository(c.db.Collection(ordersCollection)),
	}
}

func (c *Client) serverMonitor() *event.ServerMonitor {
	return &event.ServerMonitor{
		ServerHeartbeatFailed: func(e *event.ServerHeartbeatFailedEvent) {
			if c.disconnected.CompareAndSwap(false, true) {
				c.logger.Warn("MongoDB disconnected, driver will keep reconnecting",
					zap.String("connection_id", e.ConnectionID),
					zap.Error(e.Failure),
				)
			}
		},
		ServerHeartbeatSucceeded: func(e *event.ServerHeartbeatSucceededEvent) {
			if c.disconnected.CompareAndSwap(true, false) {
				c.logger.Info("MongoDB reconnected", zap.String("connection_id", e.ConnectionID))
			}
		},
		ServerClosed: func(e *event.ServerClosedEvent) {
			c.logger.Info("MongoDB server closed", zap.String("address", e.Address.String()))
		},
	}
}

func (c *Client) poolMonitor() *event.PoolMonitor {
	return &event.PoolMonitor{
		Event: func(e *event.PoolEvent) {
			if e.Type == event.PoolCleared {
				c.logger.Warn("MongoDB connection pool cleared", zap.String("address", e.Address))
			}
		},
	}
}
