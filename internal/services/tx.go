package services

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sin3107/matching-sub001/internal/repository"
)

// PgxTransactor runs chat store operations inside a single database
// transaction, handing the callback tx-scoped repositories. The callback's
// error rolls everything back.
type PgxTransactor struct {
	db *pgxpool.Pool
}

func NewPgxTransactor(db *pgxpool.Pool) *PgxTransactor {
	return &PgxTransactor{db: db}
}

func (t *PgxTransactor) InTx(ctx context.Context, fn func(stores ChatStores) error) error {
	tx, err := t.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ChatStores{
		Conversations: repository.NewConversationRepository(tx),
		Messages:      repository.NewMessageRepository(tx),
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
