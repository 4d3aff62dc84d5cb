// Package workflow holds the state machines that move submissions and
// redeem requests through their lifecycles. Every admin transition runs in
// one database transaction that also writes its audit row and outbox jobs.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/referralhub/backend/internal/errutil"
	"github.com/referralhub/backend/internal/queue"
	"github.com/referralhub/backend/internal/security/audit"
	"github.com/referralhub/backend/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Outbox persists follow-up jobs inside a transaction and runs them after commit
type Outbox interface {
	Enqueue(tx *gorm.DB, jobType queue.JobType, payload interface{}) (*queue.Job, error)
	Dispatch(ctx context.Context, jobs ...*queue.Job)
}

// AuditRecorder appends audit rows through the given transaction
type AuditRecorder interface {
	Record(tx *gorm.DB, entry audit.Entry) (*audit.AuditLog, error)
}

// TransactionIDs issues payout references when the operator supplies none
type TransactionIDs interface {
	Next() string
}

// Options tunes engine behavior
type Options struct {
	MinimumRedeemPoints int64
}

// Engine runs the submission and redeem workflows
type Engine struct {
	db         *gorm.DB
	outbox     Outbox
	audit      AuditRecorder
	txids      TransactionIDs
	opts       Options
	log        *zap.Logger
	now        func() time.Time
	accessCode func() (string, error)
}

// NewEngine creates a workflow engine
func NewEngine(db *gorm.DB, outbox Outbox, recorder AuditRecorder, txids TransactionIDs, opts Options, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}

	return &Engine{
		db:         db,
		outbox:     outbox,
		audit:      recorder,
		txids:      txids,
		opts:       opts,
		log:        log.Named("workflow"),
		now:        time.Now,
		accessCode: utils.GenerateAccessCode,
	}
}

// inTx runs fn in a transaction. Errors returned by fn roll it back.
func (e *Engine) inTx(ctx context.Context, fn func(tx *gorm.DB) error) (err error) {
	tx := e.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return errutil.Internal("failed to begin transaction", tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return errutil.Internal("failed to commit transaction", err)
	}

	return nil
}

// forUpdate locks the selected rows until the transaction ends. SQLite
// drops the clause.
func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (e *Engine) record(tx *gorm.DB, actor *uuid.UUID, action audit.Action, entityType audit.EntityType, entityID uuid.UUID, details string) error {
	if _, err := e.audit.Record(tx, audit.Entry{
		AdminID:    actor,
		Action:     action,
		EntityID:   entityID,
		EntityType: entityType,
		Details:    details,
	}); err != nil {
		return errutil.Internal("failed to write audit log", err)
	}
	return nil
}

func (e *Engine) enqueue(tx *gorm.DB, jobType queue.JobType, payload interface{}) (*queue.Job, error) {
	job, err := e.outbox.Enqueue(tx, jobType, payload)
	if err != nil {
		return nil, errutil.Internal(fmt.Sprintf("failed to enqueue %s", jobType), err)
	}
	return job, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
