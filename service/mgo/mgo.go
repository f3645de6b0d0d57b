// Package mgo owns the MongoDB client lifecycle: connect with retry at
// startup, expose the database handle, ensure the indexes the core relies on.
package mgo

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"connectify/global/config"
	"connectify/logger"
	"connectify/tools/errs"
)

var (
	mu sync.RWMutex
	db *mongo.Database
)

// Connect dials MongoDB with a short exponential backoff and stores the
// database handle for GetDB. Call once from main.
func Connect(ctx context.Context, cfg config.MongoConfig) error {
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	if cfg.Username != "" {
		opts.SetAuth(options.Credential{Username: cfg.Username, Password: cfg.Password})
	}

	backoff := 200 * time.Millisecond
	const maxBackoff = 5 * time.Second

	var lastErr error
	for attempt := 0; attempt < 5; attempt++ {
		cli, err := mongo.Connect(ctx, opts)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err = cli.Ping(pingCtx, nil)
			cancel()
			if err == nil {
				mu.Lock()
				db = cli.Database(cfg.Database)
				mu.Unlock()
				logger.Infof("[mgo] connected to %s/%s", cfg.URI, cfg.Database)
				return nil
			}
			_ = cli.Disconnect(ctx)
		}
		lastErr = err
		logger.Warnf("[mgo] connect attempt %d failed: %v", attempt+1, err)
		select {
		case <-ctx.Done():
			return errs.Wrap(ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return errs.WrapMsg(lastErr, "mongo connect")
}

// GetDB returns the connected database. Panics when called before Connect,
// which is a wiring bug, not a runtime condition.
func GetDB() *mongo.Database {
	mu.RLock()
	defer mu.RUnlock()
	if db == nil {
		panic("mgo: not connected, call Connect first")
	}
	return db
}

// Close disconnects the client.
func Close(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()
	if db == nil {
		return nil
	}
	err := db.Client().Disconnect(ctx)
	db = nil
	return err
}

// EnsureIndexes creates the indexes the conversation core depends on. Safe to
// run on every boot; Mongo treats existing identical indexes as a no-op.
func EnsureIndexes(ctx context.Context) error {
	d := GetDB()

	// Direct conversations are unique per canonical member pair.
	_, err := d.Collection("conversations").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "member_key", Value: 1}},
		Options: options.Index().SetUnique(true).
			SetPartialFilterExpression(bson.M{"is_group": false}),
	})
	if err != nil {
		return errs.WrapMsg(err, "index conversations.member_key")
	}

	_, err = d.Collection("messages").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "sender_id", Value: 1}, {Key: "seen", Value: 1}}},
	})
	if err != nil {
		return errs.WrapMsg(err, "index messages")
	}

	_, err = d.Collection("notifications").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return errs.WrapMsg(err, "index notifications")
	}

	_, err = d.Collection("follows").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "follower_id", Value: 1}, {Key: "followee_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return errs.WrapMsg(err, "index follows")
	}

	// Only one live request per direction; settled requests are kept and must
	// not block a later retry.
	_, err = d.Collection("follow_requests").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "from_user_id", Value: 1}, {Key: "to_user_id", Value: 1}},
		Options: options.Index().SetUnique(true).
			SetPartialFilterExpression(bson.M{"status": "PENDING"}),
	})
	return errs.WrapMsg(err, "index follow_requests")
}

// MapErr folds driver errors into the service error taxonomy. Timeouts and
// dropped connections become ErrStoreTransient so idempotent callers can
// retry once; callers never see raw mongo errors.
func MapErr(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case err == mongo.ErrNoDocuments:
		return errs.ErrNotFound.WrapMsg(op)
	case mongo.IsDuplicateKeyError(err):
		return errs.ErrAlreadyExists.WrapMsg(op)
	case mongo.IsTimeout(err) || mongo.IsNetworkError(err):
		return errs.ErrStoreTransient.WrapMsg(op + ": " + err.Error())
	default:
		return errs.WrapMsg(err, op)
	}
}
