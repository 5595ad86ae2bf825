package mongostore

import (
	"context"
	"errors"
	"fmt"

	"user-admin/internal/shared/storage"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// wrapError 将 MongoDB 错误转换为领域错误
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return storage.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", storage.ErrDuplicate, err)
	}
	return err
}

// findOne 查找单个文档并解码到 result，不存在返回 storage.ErrNotFound
func findOne[T any](ctx context.Context, col *mongo.Collection, filter bson.D) (*T, error) {
	var result T
	if err := col.FindOne(ctx, filter).Decode(&result); err != nil {
		return nil, wrapError(err)
	}
	return &result, nil
}

// findMany 查找多个文档
func findMany[T any](ctx context.Context, col *mongo.Collection, filter bson.D, opts ...options.Lister[options.FindOptions]) ([]*T, error) {
	cursor, err := col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, wrapError(err)
	}
	defer cursor.Close(ctx)

	results := []*T{}
	for cursor.Next(ctx) {
		var item T
		if err := cursor.Decode(&item); err != nil {
			return nil, err
		}
		results = append(results, &item)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// insertOne 插入单个文档
func insertOne(ctx context.Context, col *mongo.Collection, doc interface{}) error {
	_, err := col.InsertOne(ctx, doc)
	return wrapError(err)
}

// updateFields 按 _id 更新指定字段
func updateFields(ctx context.Context, col *mongo.Collection, id string, update bson.D) error {
	res, err := col.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, bson.D{{Key: "$set", Value: update}})
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// byIDs 构造 {_id: {$in: ids}} 过滤条件
func byIDs(ids []string) bson.D {
	return bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}}
}
