package repository

import (
	"context"
	"database/sql"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/avelmor/ticket-escrow/internal/queue"
)

// JournalEntry mirrors the 'ledger_journal' table: one row per emitted
// ledger domain event, append-only. The in-memory ledger stays
// authoritative; this table is an audit trail and is never read back
// into ledger state.
type JournalEntry struct {
	ID        string
	Kind      string
	EventID   uint64
	Actor     string
	Amount    string
	Asset     string
	CreatedAt time.Time
}

// JournalRepo appends and queries ledger audit rows.
type JournalRepo struct{ DB *sql.DB }

func NewJournalRepo(db *sql.DB) *JournalRepo { return &JournalRepo{DB: db} }

// Append inserts one audit row. The id is generated here so callers do
// not depend on database auto-increment semantics.
func (r *JournalRepo) Append(ctx context.Context, e JournalEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO ledger_journal (id, kind, event_id, actor, amount, asset) VALUES (?,?,?,?,?,?)",
		e.ID, e.Kind, e.EventID, e.Actor, e.Amount, e.Asset)
	return err
}

// ListByEvent returns the audit trail of a single ledger event in
// insertion order.
func (r *JournalRepo) ListByEvent(ctx context.Context, eventID uint64) ([]JournalEntry, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, kind, event_id, actor, amount, asset, created_at FROM ledger_journal WHERE event_id=? ORDER BY created_at, id",
		eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ListByKind returns the most recent entries of one kind, newest first.
func (r *JournalRepo) ListByKind(ctx context.Context, kind string, limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, kind, event_id, actor, amount, asset, created_at FROM ledger_journal WHERE kind=? ORDER BY created_at DESC, id LIMIT ?",
		kind, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]JournalEntry, error) {
	var out []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ID, &e.Kind, &e.EventID, &e.Actor, &e.Amount, &e.Asset, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// JournalEmitter adapts the JournalRepo to the ledger's Emitter interface.
// Insert failures are logged and dropped: the audit trail must never make
// a settled ledger transition fail.
type JournalEmitter struct {
	Repo *JournalRepo
	Log  zerolog.Logger
}

func NewJournalEmitter(repo *JournalRepo, log zerolog.Logger) *JournalEmitter {
	return &JournalEmitter{Repo: repo, Log: log.With().Str("component", "journal").Logger()}
}

func (j *JournalEmitter) append(e JournalEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := j.Repo.Append(ctx, e); err != nil {
		j.Log.Error().Err(err).Str("kind", e.Kind).Uint64("event_id", e.EventID).Msg("journal append failed")
	}
}

func (j *JournalEmitter) EventCreated(id uint64, owner common.Address, name string) {
	j.append(JournalEntry{Kind: queue.KindEventCreated, EventID: id, Actor: owner.Hex()})
}

func (j *JournalEmitter) TicketPurchased(id uint64, buyer common.Address, amount *big.Int, asset common.Address) {
	j.append(JournalEntry{Kind: queue.KindTicketPurchased, EventID: id, Actor: buyer.Hex(), Amount: amount.String(), Asset: asset.Hex()})
}

func (j *JournalEmitter) RefundIssued(id uint64, buyer common.Address, amount *big.Int) {
	j.append(JournalEntry{Kind: queue.KindRefundIssued, EventID: id, Actor: buyer.Hex(), Amount: amount.String()})
}

func (j *JournalEmitter) FundsReleased(id uint64, amount *big.Int) {
	j.append(JournalEntry{Kind: queue.KindFundsReleased, EventID: id, Amount: amount.String()})
}

func (j *JournalEmitter) EventCanceled(id uint64) {
	j.append(JournalEntry{Kind: queue.KindEventCanceled, EventID: id})
}
