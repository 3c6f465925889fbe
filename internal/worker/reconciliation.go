package worker

import (
	"context"
	"errors"
	"time"

	"storefront-client/internal/apperr"
	"storefront-client/internal/client"
	"storefront-client/internal/model"
	"storefront-client/internal/repository"

	"go.uber.org/zap"
)

// TokenSource yields the bearer token of the signed-in user.
type TokenSource interface {
	Token() (string, error)
}

// ReconciliationWorker re-checks orders whose capture was not recorded and resolves
// the journal entry once the backend reports them paid. It only reads orders; the
// mark-paid call is never repeated from here.
type ReconciliationWorker struct {
	journal   repository.ReconciliationRepository
	store     client.StoreClient
	session   TokenSource
	interval  time.Duration
	batchSize int
	logger    *zap.Logger
}

func NewReconciliationWorker(
	journal repository.ReconciliationRepository,
	store client.StoreClient,
	session TokenSource,
	interval time.Duration,
	logger *zap.Logger,
) *ReconciliationWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReconciliationWorker{
		journal:   journal,
		store:     store,
		session:   session,
		interval:  interval,
		batchSize: 50,
		logger:    logger,
	}
}

// Run checks pending entries every interval until ctx is done.
func (w *ReconciliationWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.ProcessOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("reconciliation iteration failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessOnce checks every pending entry once and returns how many were resolved.
func (w *ReconciliationWorker) ProcessOnce(ctx context.Context) (int, error) {
	pending, err := w.journal.ListPending(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	token, err := w.session.Token()
	if err != nil {
		// nothing can be checked until someone signs in
		w.logger.Debug("reconciliation skipped, no session", zap.Int("pending", len(pending)))
		return 0, nil
	}

	resolved := 0
	for _, rec := range pending {
		if rec.Reason == model.ReasonDuplicate {
			// the order is paid by another receipt; this one needs a refund
			w.logger.Warn("duplicate capture awaiting refund",
				zap.String("order_id", rec.OrderID),
				zap.String("receipt_id", rec.ReceiptID),
			)
			continue
		}
		ok, err := w.check(ctx, token, rec)
		if err != nil {
			if apperr.Classify(err) == apperr.KindAuth {
				return resolved, err
			}
			w.logger.Warn("reconciliation check failed",
				zap.String("order_id", rec.OrderID),
				zap.String("receipt_id", rec.ReceiptID),
				zap.Error(err),
			)
			continue
		}
		if ok {
			resolved++
		}
	}

	if resolved > 0 {
		w.logger.Info("reconciliation pass finished",
			zap.Int("pending", len(pending)),
			zap.Int("resolved", resolved),
		)
	}
	return resolved, nil
}

func (w *ReconciliationWorker) check(ctx context.Context, token string, rec *model.Reconciliation) (bool, error) {
	order, err := w.store.GetOrder(ctx, token, rec.OrderID)
	if err != nil {
		return false, err
	}
	if !order.IsPaid {
		return false, nil
	}

	if err := w.journal.MarkResolved(ctx, rec.ID); err != nil {
		return false, err
	}
	w.logger.Info("capture reconciled",
		zap.String("order_id", rec.OrderID),
		zap.String("receipt_id", rec.ReceiptID),
	)
	return true, nil
}
