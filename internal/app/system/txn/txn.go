// Package txn runs a group of writes in a MongoDB transaction when the
// deployment supports one, and directly when it does not.
//
// Standalone servers (the usual development setup) reject transactions.
// Callers that write to more than one collection therefore still order
// their writes so that a failure between them can be compensated.
package txn

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Server error codes meaning transactions are unavailable here.
const (
	codeIllegalOperation  = 20
	codeNotReplicaSet     = 51
	codeOperationNotInTxn = 263
)

// unsupported latches once a deployment has refused a transaction so later
// calls skip the failed round trip.
var unsupported atomic.Bool

// Run calls fn inside a transaction on db's client. If the server cannot run
// transactions, fn is called once more without one. fn may be retried by
// the driver on transient errors, so it must reset any state it captures.
func Run(ctx context.Context, db *mongo.Database, logger *zap.Logger, fn func(ctx context.Context) error) error {
	if unsupported.Load() {
		return fn(ctx)
	}

	sess, err := db.Client().StartSession()
	if err != nil {
		if IsNotSupported(err) {
			return fallback(ctx, logger, err, fn)
		}
		return err
	}
	defer sess.EndSession(context.WithoutCancel(ctx))

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		return fallback(ctx, logger, err, fn)
	}
	return err
}

func fallback(ctx context.Context, logger *zap.Logger, cause error, fn func(ctx context.Context) error) error {
	if unsupported.CompareAndSwap(false, true) {
		logger.Warn("MongoDB transactions unavailable; multi-collection writes run without one",
			zap.Error(cause))
	}
	return fn(ctx)
}

// IsNotSupported reports whether err says the deployment cannot run
// transactions or sessions.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		switch ce.Code {
		case codeIllegalOperation, codeNotReplicaSet, codeOperationNotInTxn:
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "transaction") {
		return strings.Contains(msg, "replica set") ||
			strings.Contains(msg, "session") ||
			strings.Contains(msg, "illegal operation")
	}
	return strings.Contains(msg, "session") && strings.Contains(msg, "not supported")
}
