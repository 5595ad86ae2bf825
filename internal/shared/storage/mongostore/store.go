// Package mongostore 实现基于 MongoDB 的 storage.Store
//
// 使用 mongo-go-driver v2。用户文档内嵌角色 ID，角色文档内嵌权限 ID，
// 查询用户时分两步取回角色与权限后在内存中组装。
// 所有 Collection 名称和索引在 ensureIndexes 中统一管理。
package mongostore

import (
	"context"
	"fmt"
	"time"

	"user-admin/internal/shared/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection 名称常量
const (
	ColUsers       = "users"
	ColRoles       = "roles"
	ColPermissions = "permissions"
)

// Store MongoDB 存储
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ storage.Store = (*Store)(nil)

// NewStore 创建 MongoDB 存储实例
//
// uri: MongoDB 连接 URI，如 "mongodb://localhost:27017"
// dbName: 数据库名称，如 "user_admin"
func NewStore(uri, dbName string) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect failed: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongostore: ping failed: %w", err)
	}

	s := &Store{client: client, db: client.Database(dbName)}

	// 用户名唯一索引缺失时拒绝启动
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongostore: ensure indexes failed: %w", err)
	}

	return s, nil
}

// Ping 检查 MongoDB 连接
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close 关闭 MongoDB 连接
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// col 获取指定 Collection
func (s *Store) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// ensureIndexes 创建所有必要的索引
func (s *Store) ensureIndexes(ctx context.Context) error {
	type idx struct {
		col    string
		keys   bson.D
		unique bool
	}

	indexes := []idx{
		{ColUsers, bson.D{{Key: "username", Value: 1}}, true},
		{ColUsers, bson.D{{Key: "created_at", Value: 1}}, false},
		{ColRoles, bson.D{{Key: "name", Value: 1}}, true},
		{ColPermissions, bson.D{{Key: "code", Value: 1}}, true},
	}

	for _, i := range indexes {
		model := mongo.IndexModel{Keys: i.keys}
		if i.unique {
			model.Options = options.Index().SetUnique(true)
		}
		if _, err := s.col(i.col).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("create index on %s: %w", i.col, err)
		}
	}

	return nil
}
