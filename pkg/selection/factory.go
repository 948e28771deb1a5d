package selection

import (
	"context"
	"fmt"

	"github.com/barekit/docscope/pkg/consts"
	"github.com/barekit/docscope/pkg/database"
	gormsel "github.com/barekit/docscope/pkg/selection/gorm"
	"github.com/barekit/docscope/pkg/selection/inmemory"
	mongosel "github.com/barekit/docscope/pkg/selection/mongo"
	"github.com/barekit/docscope/pkg/selection/neo4j"
	"github.com/barekit/docscope/pkg/selection/redis"
	goredis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type Type string

const (
	TypeSQLite   Type = "sqlite"
	TypePostgres Type = "postgres"
	TypeMySQL    Type = "mysql"
	TypeMSSQL    Type = "mssql"
	TypeRedis    Type = "redis"
	TypeNeo4j    Type = "neo4j"
	TypeMongo    Type = "mongo"
	TypeInMemory Type = "inmemory"
)

// Config holds configuration for selection backends.
type Config struct {
	Type             Type
	ConnectionString string
	Username         string
	Password         string
	DBName           string
	Logger           *zap.Logger
}

// NewFactory creates a selection Store based on the configuration.
func NewFactory(ctx context.Context, cfg Config) (Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Type {
	case TypeSQLite, TypePostgres, TypeMySQL, TypeMSSQL:
		db, err := database.Open(database.Driver(cfg.Type), cfg.ConnectionString)
		if err != nil {
			return nil, err
		}
		store, err := gormsel.New(db, gormsel.WithLogger(logger))
		if err != nil {
			_ = database.Close(db)
			return nil, err
		}
		return store, nil

	case TypeRedis:
		opts, err := goredis.ParseURL(cfg.ConnectionString)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		client := goredis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		return redis.New(client, redis.WithLogger(logger)), nil

	case TypeNeo4j:
		dbName := consts.DefaultNeo4j
		if cfg.DBName != "" {
			dbName = cfg.DBName
		}
		return neo4j.New(ctx, cfg.ConnectionString, cfg.Username, cfg.Password, dbName, neo4j.WithLogger(logger))

	case TypeMongo:
		opts := options.Client().ApplyURI(cfg.ConnectionString)
		client, err := mongo.Connect(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("failed to ping mongo: %w", err)
		}
		dbName := consts.DefaultDBName
		if cfg.DBName != "" {
			dbName = cfg.DBName
		}
		return mongosel.New(client, dbName, consts.TableNameSelections, mongosel.WithLogger(logger)), nil

	case TypeInMemory:
		return inmemory.New(), nil

	default:
		return nil, fmt.Errorf("unsupported selection store type: %s", cfg.Type)
	}
}
