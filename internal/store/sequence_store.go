package store

import "context"

// SequenceStore hands out per-date voucher sequence numbers. The upsert is a
// single statement, so two postings on the same date can never observe the
// same counter value, regardless of which accounts they touch.
type SequenceStore struct {
	db DB
}

func NewSequenceStore(db DB) *SequenceStore {
	return &SequenceStore{db: db}
}

func (s *SequenceStore) Next(ctx context.Context, tx Getter, seqDate string) (int64, error) {
	var counter int64
	err := tx.GetContext(ctx, &counter, `
		INSERT INTO voucher_sequences (seq_date, counter)
		VALUES ($1, 1)
		ON CONFLICT (seq_date) DO UPDATE SET counter = voucher_sequences.counter + 1
		RETURNING counter
	`, seqDate)
	return counter, err
}
