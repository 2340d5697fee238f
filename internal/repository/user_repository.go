package repository

import (
	"context"
	"errors"

	"cute-chat/internal/domain/user"
	cutechat_errors "cute-chat/pkg/errors"
	"cute-chat/pkg/logger"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type MongoUserRepository struct {
	db *mongo.Database
}

func NewUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{db: db}
}

func (r *MongoUserRepository) Resolve(ctx context.Context, ref user.DocumentRef) (user.Ref, error) {
	if ref.IsZero() {
		return user.Ref{}, cutechat_errors.ErrNotFound
	}
	collection := ref.Collection
	if collection == "" {
		collection = user.UsersCollection
	}

	var u user.Ref
	err := r.db.Collection(collection).FindOne(ctx, bson.D{{Key: "_id", Value: docIDValue(ref.ID)}}).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return user.Ref{}, cutechat_errors.ErrNotFound
		}
		return user.Ref{}, err
	}
	if u.ID == "" {
		u.ID = ref.ID
	}
	return u, nil
}

// CachedUserRepository serves senders from a cache in front of another UserRepository.
// Cache failures fall through to the inner repository.
type CachedUserRepository struct {
	inner UserRepository
	cache UserCache
	log   *logger.Logger
}

func NewCachedUserRepository(inner UserRepository, cache UserCache, l *logger.Logger) *CachedUserRepository {
	if l == nil {
		l = logger.Nop()
	}
	return &CachedUserRepository{inner: inner, cache: cache, log: l}
}

func (r *CachedUserRepository) Resolve(ctx context.Context, ref user.DocumentRef) (user.Ref, error) {
	if cached, err := r.cache.GetUser(ctx, ref); err != nil {
		r.log.Warnf("user cache get %s: %v", ref, err)
	} else if cached != nil {
		return *cached, nil
	}

	u, err := r.inner.Resolve(ctx, ref)
	if err != nil {
		return user.Ref{}, err
	}
	if err := r.cache.SetUser(ctx, ref, u); err != nil {
		r.log.Warnf("user cache set %s: %v", ref, err)
	}
	return u, nil
}
