package ledger

import (
	"context"
	"fmt"

	"github.com/roach88/loopswap/internal/swaperr"
)

// Record is one stored record. Data is always Size bytes long.
type Record struct {
	Address Address
	Size    int
	Data    []byte
}

// Records is the record-store view handlers and collaborators work through.
type Records interface {
	// Load returns the record's data, or false if nothing lives at addr.
	Load(ctx context.Context, addr Address) ([]byte, bool, error)
	// Create allocates a zeroed record of size bytes. Fails if addr is taken.
	Create(ctx context.Context, addr Address, size int) error
	// Write replaces the record's data. Shorter data is zero padded.
	Write(ctx context.Context, addr Address, data []byte) error
	// Erase removes the record.
	Erase(ctx context.Context, addr Address) error
}

type pendingOp struct {
	erased bool
	size   int
	data   []byte
}

// Batch buffers every record effect of one invocation over a Store. Nothing
// reaches the database until Commit, which applies the whole batch in one
// transaction.
type Batch struct {
	store   *Store
	pending map[Address]*pendingOp
	order   []Address
	done    bool
}

// NewBatch starts an empty batch.
func (s *Store) NewBatch() *Batch {
	return &Batch{store: s, pending: make(map[Address]*pendingOp)}
}

var _ Records = (*Batch)(nil)

func (b *Batch) lookup(ctx context.Context, addr Address) (*pendingOp, error) {
	if op, ok := b.pending[addr]; ok {
		if op.erased {
			return nil, nil
		}
		return op, nil
	}
	rec, ok, err := b.store.Load(ctx, addr)
	if err != nil || !ok {
		return nil, err
	}
	return &pendingOp{size: rec.Size, data: rec.Data}, nil
}

func (b *Batch) stage(addr Address, op *pendingOp) {
	if _, seen := b.pending[addr]; !seen {
		b.order = append(b.order, addr)
	}
	b.pending[addr] = op
}

func (b *Batch) checkOpen() error {
	if b.done {
		return fmt.Errorf("ledger batch already committed or discarded")
	}
	return nil
}

// Load implements Records.
func (b *Batch) Load(ctx context.Context, addr Address) ([]byte, bool, error) {
	if err := b.checkOpen(); err != nil {
		return nil, false, err
	}
	op, err := b.lookup(ctx, addr)
	if err != nil || op == nil {
		return nil, false, err
	}
	return append([]byte(nil), op.data...), true, nil
}

// Create implements Records.
func (b *Batch) Create(ctx context.Context, addr Address, size int) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	if size < 0 {
		return fmt.Errorf("create %s: negative size %d", addr, size)
	}
	existing, err := b.lookup(ctx, addr)
	if err != nil {
		return err
	}
	if existing != nil {
		return swaperr.Newf(swaperr.CodeInvalidAccountData, "record %s already exists", addr)
	}
	b.stage(addr, &pendingOp{size: size, data: make([]byte, size)})
	return nil
}

// Write implements Records.
func (b *Batch) Write(ctx context.Context, addr Address, data []byte) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	existing, err := b.lookup(ctx, addr)
	if err != nil {
		return err
	}
	if existing == nil {
		return swaperr.Newf(swaperr.CodeUninitializedAccount, "record %s does not exist", addr)
	}
	if len(data) > existing.size {
		return swaperr.Newf(swaperr.CodeInvalidAccountData,
			"record %s: %d bytes exceed allocated size %d", addr, len(data), existing.size)
	}
	padded := make([]byte, existing.size)
	copy(padded, data)
	b.stage(addr, &pendingOp{size: existing.size, data: padded})
	return nil
}

// Erase implements Records.
func (b *Batch) Erase(ctx context.Context, addr Address) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	existing, err := b.lookup(ctx, addr)
	if err != nil {
		return err
	}
	if existing == nil {
		return swaperr.Newf(swaperr.CodeUninitializedAccount, "record %s does not exist", addr)
	}
	b.stage(addr, &pendingOp{erased: true})
	return nil
}

// Len returns the number of addresses the batch touches.
func (b *Batch) Len() int {
	return len(b.order)
}

// Commit applies every staged effect in one transaction, stamping written
// records with seq. The batch cannot be used afterwards.
func (b *Batch) Commit(ctx context.Context, seq int64) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	b.done = true

	tx, err := b.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	for _, addr := range b.order {
		op := b.pending[addr]
		if op.erased {
			if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE address = ?`, string(addr)); err != nil {
				return fmt.Errorf("commit batch: erase %s: %w", addr, err)
			}
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO records (address, size, data, updated_seq)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(address) DO UPDATE SET
				size = excluded.size,
				data = excluded.data,
				updated_seq = excluded.updated_seq
		`, string(addr), op.size, op.data, seq)
		if err != nil {
			return fmt.Errorf("commit batch: write %s: %w", addr, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Discard drops every staged effect.
func (b *Batch) Discard() {
	b.done = true
	b.pending = nil
	b.order = nil
}
