package services

import (
	"context"
	"fmt"
	"strings"

	"cashbook/internal/store"
)

// VoucherAllocator assigns date-scoped sequential voucher numbers, e.g.
// JZ20250901-003. Allocation happens inside the posting transaction so an
// aborted posting rolls its number back together with everything else.
type VoucherAllocator struct {
	prefix    string
	sequences SequenceStore
}

func NewVoucherAllocator(prefix string, sequences SequenceStore) *VoucherAllocator {
	return &VoucherAllocator{prefix: prefix, sequences: sequences}
}

func (a *VoucherAllocator) Next(ctx context.Context, tx store.Getter, businessDate string) (string, error) {
	seq, err := a.sequences.Next(ctx, tx, businessDate)
	if err != nil {
		return "", err
	}
	return FormatVoucherNo(a.prefix, businessDate, seq), nil
}

func FormatVoucherNo(prefix, businessDate string, seq int64) string {
	return fmt.Sprintf("%s%s-%03d", prefix, strings.ReplaceAll(businessDate, "-", ""), seq)
}
