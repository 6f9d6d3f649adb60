/*
recorder.go - Upsert policy for sales and expense submissions

INVARIANTS:
  At most one Sale per (unit, date).
  At most one Expense per (unit, category, date).

SEMANTICS:
  Sales replace:      100 then 150 on the same day -> one row, amount 150.
                      A day's sales submission corrects that day's total.
  Expenses accumulate: 100 then 50, same day+category -> one row, amount 150.
                      Each expense submission is an incremental spend.
  Both overwrite the note with the latest submission and keep the original
  row identity, contributor and creation timestamp.

CONCURRENCY:
  Each upsert runs in TxStore.WithTx. If two writers still race to insert the
  same key, the store's unique constraint rejects one with ErrConflict; the
  Recorder retries that submission once and then gives up.

AUTHORIZATION:
  Not checked here. Callers must verify the submitter is an active staff
  member assigned to the unit (StaffMember.CanSubmitFor) before calling.
*/
package ledger

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// SaleSubmission is a staff member's daily sales entry.
type SaleSubmission struct {
	UnitID UnitID
	Date   Date
	Amount int64
	Note   string
	By     *StaffID
}

// ExpenseSubmission is a staff member's expense entry.
type ExpenseSubmission struct {
	UnitID   UnitID
	Category Category
	Date     Date
	Amount   int64
	Note     string
	By       *StaffID
}

// Recorder applies the upsert policy on top of a TxStore.
type Recorder struct {
	store TxStore
	now   func() time.Time
	newID func() string
}

// NewRecorder creates a recorder writing through store.
func NewRecorder(store TxStore) *Recorder {
	return &Recorder{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// RecordSale creates or replaces the unit's sale for the submitted day.
func (r *Recorder) RecordSale(ctx context.Context, sub SaleSubmission) (Sale, error) {
	if sub.Amount <= 0 {
		return Sale{}, ErrInvalidAmount
	}
	if sub.Date.IsZero() {
		return Sale{}, fmt.Errorf("%w: date is required", ErrValidation)
	}

	var saved Sale
	err := r.withRetry(ctx, func(tx Tx) error {
		if err := requireUnit(ctx, tx, sub.UnitID); err != nil {
			return err
		}

		existing, err := tx.FindSale(ctx, sub.UnitID, sub.Date)
		if err != nil {
			return err
		}

		if existing != nil {
			existing.Amount = sub.Amount
			existing.Note = sub.Note
			if err := tx.UpdateSale(ctx, *existing); err != nil {
				return err
			}
			saved = *existing
		} else {
			saved = Sale{
				ID:        RecordID(r.newID()),
				UnitID:    sub.UnitID,
				Amount:    sub.Amount,
				Date:      sub.Date,
				Note:      sub.Note,
				CreatedBy: sub.By,
				CreatedAt: r.now(),
			}
			if err := tx.InsertSale(ctx, saved); err != nil {
				return err
			}
		}

		return tx.AppendAudit(ctx, r.audit(sub.By, fmt.Sprintf("Recorded sale %d for %s", sub.Amount, sub.Date), "sale"))
	})
	if err != nil {
		return Sale{}, err
	}
	return saved, nil
}

// RecordExpense creates the expense row or adds to the existing one for the
// same unit, category and day.
func (r *Recorder) RecordExpense(ctx context.Context, sub ExpenseSubmission) (Expense, error) {
	if !sub.Category.Valid() {
		return Expense{}, fmt.Errorf("%w: %q", ErrInvalidCategory, string(sub.Category))
	}
	if sub.Amount <= 0 {
		return Expense{}, ErrInvalidAmount
	}
	if sub.Date.IsZero() {
		return Expense{}, fmt.Errorf("%w: date is required", ErrValidation)
	}

	var saved Expense
	err := r.withRetry(ctx, func(tx Tx) error {
		if err := requireUnit(ctx, tx, sub.UnitID); err != nil {
			return err
		}

		existing, err := tx.FindExpense(ctx, sub.UnitID, sub.Category, sub.Date)
		if err != nil {
			return err
		}

		if existing != nil {
			if sub.Amount > math.MaxInt64-existing.Amount {
				return fmt.Errorf("%w: accumulated %s expense for %s exceeds the maximum amount", ErrValidation, sub.Category, sub.Date)
			}
			existing.Amount += sub.Amount
			existing.Note = sub.Note
			if err := tx.UpdateExpense(ctx, *existing); err != nil {
				return err
			}
			saved = *existing
		} else {
			saved = Expense{
				ID:            RecordID(r.newID()),
				UnitID:        sub.UnitID,
				Category:      sub.Category,
				Amount:        sub.Amount,
				EffectiveDate: sub.Date,
				Note:          sub.Note,
				CreatedBy:     sub.By,
				CreatedAt:     r.now(),
			}
			if err := tx.InsertExpense(ctx, saved); err != nil {
				return err
			}
		}

		action := fmt.Sprintf("Recorded expense %d (%s) for %s", sub.Amount, sub.Category, sub.Date)
		return tx.AppendAudit(ctx, r.audit(sub.By, action, "expense"))
	})
	if err != nil {
		return Expense{}, err
	}
	return saved, nil
}

// withRetry runs fn in a transaction and retries once on ErrConflict.
func (r *Recorder) withRetry(ctx context.Context, fn func(Tx) error) error {
	err := r.store.WithTx(ctx, fn)
	if IsRetryable(err) {
		err = r.store.WithTx(ctx, fn)
	}
	return err
}

func (r *Recorder) audit(actor *StaffID, action, entity string) AuditEntry {
	return AuditEntry{
		ID:        r.newID(),
		ActorID:   actor,
		Action:    action,
		Entity:    entity,
		CreatedAt: r.now(),
	}
}

func requireUnit(ctx context.Context, units UnitReader, id UnitID) error {
	unit, err := units.GetUnit(ctx, id)
	if err != nil {
		return err
	}
	if unit == nil {
		return fmt.Errorf("%w: %s", ErrUnitNotFound, id)
	}
	return nil
}
