package idpool

import (
	"fmt"
	"time"

	"github.com/clinic/terminal/internal/domain/shared"
	"github.com/google/uuid"
)

// Kind classifies what a reserved identifier will number.
type Kind string

const (
	KindInvoice Kind = "INVOICE"
	KindOrder   Kind = "ORDER"
	KindSample  Kind = "SAMPLE"
)

// codeDigits is the zero-padded width of the numeric part of a printed
// code, e.g. FAC-PIA-000000105.
const codeDigits = 9

// AllKinds lists every identifier kind the terminal reserves.
func AllKinds() []Kind {
	return []Kind{KindInvoice, KindOrder, KindSample}
}

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindInvoice, KindOrder, KindSample:
		return true
	}
	return false
}

// CodePrefix returns the document prefix printed before the branch code.
func (k Kind) CodePrefix() string {
	switch k {
	case KindInvoice:
		return "FAC"
	case KindOrder:
		return "LAB"
	case KindSample:
		return "MUE"
	}
	return "UNK"
}

// Range is a contiguous block of identifier values the authority reserved
// for this terminal. Ranges are disjoint across the whole fleet by
// construction; the authority is the only writer of the bounds.
//
// Invariant: Start <= NextUnused <= End+1. Once NextUnused passes End the
// range is exhausted and can never hand out another value.
type Range struct {
	shared.BaseEntity
	AuthorityID  string // authority-side id of this reservation
	BatchID      string // human-readable batch label, e.g. LOTE-PIA-FAC-003
	Kind         Kind
	Prefix       string // printed code prefix, e.g. FAC-PIA-
	Start        int64
	End          int64
	NextUnused   int64
	TerminalID   string
	IssuedAt     time.Time
	Exhausted    bool
	LastReported int64 // highest used value the authority has acknowledged
}

// NewRange creates a range from an authority grant.
func NewRange(authorityID, batchID string, kind Kind, prefix string, start, end int64, terminalID string) (*Range, error) {
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_KIND", fmt.Sprintf("Unknown identifier kind %q", kind))
	}
	if batchID == "" {
		return nil, shared.NewDomainError("INVALID_RANGE", "Batch ID cannot be empty")
	}
	if prefix == "" {
		return nil, shared.NewDomainError("INVALID_RANGE", "Code prefix cannot be empty")
	}
	if start <= 0 || end < start {
		return nil, shared.NewDomainError("INVALID_RANGE", fmt.Sprintf("Invalid bounds [%d, %d]", start, end))
	}

	return &Range{
		BaseEntity:   shared.NewBaseEntity(),
		AuthorityID:  authorityID,
		BatchID:      batchID,
		Kind:         kind,
		Prefix:       prefix,
		Start:        start,
		End:          end,
		NextUnused:   start,
		TerminalID:   terminalID,
		IssuedAt:     time.Now(),
		LastReported: start - 1,
	}, nil
}

// Remaining returns how many values the range can still hand out.
func (r *Range) Remaining() int64 {
	if r.Exhausted || r.NextUnused > r.End {
		return 0
	}
	return r.End - r.NextUnused + 1
}

// Size returns the total capacity of the range.
func (r *Range) Size() int64 {
	return r.End - r.Start + 1
}

// LastUsed returns the highest value consumed so far, or Start-1 when
// nothing has been allocated yet.
func (r *Range) LastUsed() int64 {
	return r.NextUnused - 1
}

// Code renders the printed form of a value drawn from this range.
func (r *Range) Code(value int64) string {
	return fmt.Sprintf("%s%0*d", r.Prefix, codeDigits, value)
}

// Allocate consumes the next unused value. The caller must persist the
// advanced range in the same local transaction as the record consuming
// the identifier; an allocation is permanent even if that record is
// later voided.
func (r *Range) Allocate() (*Allocation, error) {
	if r.Remaining() == 0 {
		r.Exhausted = true
		return nil, shared.ErrPoolExhausted
	}

	value := r.NextUnused
	r.NextUnused++
	if r.NextUnused > r.End {
		r.Exhausted = true
	}
	r.Touch()

	return &Allocation{
		ID:          uuid.New(),
		RangeID:     r.ID,
		BatchID:     r.BatchID,
		Kind:        r.Kind,
		Value:       value,
		Code:        r.Code(value),
		AllocatedAt: time.Now(),
	}, nil
}

// Unreported returns the highest used value not yet acknowledged by the
// authority, and whether there is anything to report.
func (r *Range) Unreported() (int64, bool) {
	last := r.LastUsed()
	if last <= r.LastReported {
		return 0, false
	}
	return last, true
}

// MarkReported records that the authority acknowledged usage up to value.
func (r *Range) MarkReported(value int64) {
	if value > r.LastReported {
		r.LastReported = value
		r.Touch()
	}
}

// Allocation is a single identifier drawn from a range. Once handed to a
// record it is never reissued, on this terminal or any other.
type Allocation struct {
	ID          uuid.UUID
	RangeID     uuid.UUID
	BatchID     string
	Kind        Kind
	Value       int64
	Code        string
	AllocatedAt time.Time
}
