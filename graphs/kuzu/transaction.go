package kuzu

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/randgraph/randgraph/graphs"
)

// ErrTransactionNotActive is returned when a query is issued on a finished transaction.
var ErrTransactionNotActive = errors.New("transaction is not active")

// TransactionState represents the state of a transaction
type TransactionState int

const (
	TransactionActive TransactionState = iota
	TransactionCommitted
	TransactionRolledBack
	TransactionFailed
)

// String returns the string representation of the transaction state
func (ts TransactionState) String() string {
	switch ts {
	case TransactionActive:
		return "active"
	case TransactionCommitted:
		return "committed"
	case TransactionRolledBack:
		return "rolled_back"
	case TransactionFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Transaction is an explicit KuzuDB transaction on the store's connection.
type Transaction struct {
	id       string
	kuzu     *Kuzu
	ctx      context.Context
	state    TransactionState
	readOnly bool
	queries  int
}

// TransactionOption defines options for transaction configuration
type TransactionOption func(*transactionConfig)

type transactionConfig struct {
	readOnly bool
}

// WithReadOnly configures a read-only transaction
func WithReadOnly(readOnly bool) TransactionOption {
	return func(config *transactionConfig) {
		config.readOnly = readOnly
	}
}

// RunInTransaction runs fn between BEGIN TRANSACTION and COMMIT. When fn
// returns an error the transaction is rolled back and the error returned.
func (k *Kuzu) RunInTransaction(ctx context.Context, fn func(tx *Transaction) error, opts ...TransactionOption) error {
	config := &transactionConfig{}
	for _, opt := range opts {
		opt(config)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if !k.IsConnected() {
		return graphs.ErrStoreClosed
	}

	begin := "BEGIN TRANSACTION"
	if config.readOnly {
		begin = "BEGIN TRANSACTION READ ONLY"
	}
	if _, err := k.query(ctx, begin, nil); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	tx := &Transaction{
		id:       uuid.NewString(),
		kuzu:     k,
		ctx:      ctx,
		state:    TransactionActive,
		readOnly: config.readOnly,
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.rollback(); rbErr != nil {
			k.options.logger.Warn("kuzu rollback failed",
				zap.String("tx_id", tx.id), zap.Error(rbErr))
		}
		return err
	}

	return tx.commit()
}

// ID returns the transaction identifier used in log fields.
func (tx *Transaction) ID() string {
	return tx.id
}

// State returns the current transaction state
func (tx *Transaction) State() TransactionState {
	return tx.state
}

// ReadOnly reports whether the transaction was opened read-only.
func (tx *Transaction) ReadOnly() bool {
	return tx.readOnly
}

// Query executes a query within the transaction
func (tx *Transaction) Query(query string, params map[string]any) ([]map[string]any, error) {
	if tx.state != TransactionActive {
		return nil, fmt.Errorf("%w: %s", ErrTransactionNotActive, tx.state)
	}

	tx.queries++
	records, err := tx.kuzu.query(tx.ctx, query, params)
	if err != nil {
		tx.state = TransactionFailed
		return nil, fmt.Errorf("query failed in transaction: %w", err)
	}
	return records, nil
}

func (tx *Transaction) commit() error {
	if _, err := tx.kuzu.query(tx.ctx, "COMMIT", nil); err != nil {
		tx.state = TransactionFailed
		if rbErr := tx.rollback(); rbErr != nil {
			tx.kuzu.options.logger.Warn("kuzu rollback failed",
				zap.String("tx_id", tx.id), zap.Error(rbErr))
		}
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	tx.state = TransactionCommitted
	tx.kuzu.options.logger.Debug("kuzu transaction committed",
		zap.String("tx_id", tx.id),
		zap.Bool("read_only", tx.readOnly),
		zap.Int("queries", tx.queries))
	return nil
}

// rollback ignores the caller's cancellation so an interrupted transaction
// does not stay open on the connection.
func (tx *Transaction) rollback() error {
	if _, err := tx.kuzu.query(context.WithoutCancel(tx.ctx), "ROLLBACK", nil); err != nil {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	tx.state = TransactionRolledBack
	return nil
}
