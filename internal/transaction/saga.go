package transaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nanolink/nanolink/internal/ledger"
	"github.com/nanolink/nanolink/internal/mobilemoney"
	"github.com/nanolink/nanolink/internal/settlement"
	"github.com/nanolink/nanolink/internal/wallet"
)

// Handle runs one settlement step. Every step re-reads the transaction and
// moves it with conditional writes, so a redelivered task is harmless. A
// returned error asks the worker to retry the task later.
func (s *Service) Handle(ctx context.Context, task settlement.Task) error {
	tx, err := s.repo.Get(ctx, task.TransactionID)
	if errors.Is(err, ErrNotFound) {
		s.logger.Warn("settlement task for unknown transaction", slog.String("task", task.ID()))
		return nil
	}
	if err != nil {
		return err
	}

	switch task.Kind {
	case settlement.KindProcessOnRamp:
		return s.processOnRamp(ctx, tx)
	case settlement.KindCompleteOnRamp:
		return s.completeOnRamp(ctx, tx)
	case settlement.KindProcessOffRamp:
		return s.processOffRamp(ctx, tx)
	default:
		s.logger.Warn("unknown settlement task", slog.String("task", task.ID()))
		return nil
	}
}

func (s *Service) processOnRamp(ctx context.Context, tx Transaction) error {
	if tx.Terminal() {
		return nil
	}
	if tx.Status == StatusPending && tx.MobileMoneyReference != "" {
		return s.scheduleCompletion(ctx, tx)
	}
	if tx.Status == StatusPending {
		moved, err := s.repo.UpdateStatus(ctx, tx.ID, StatusPending, StatusProcessing, Patch{})
		if errors.Is(err, ErrStatusConflict) {
			return nil
		}
		if err != nil {
			return err
		}
		tx = moved
	}

	provider, err := s.providers.Lookup(tx.PaymentMethod)
	if err != nil {
		return s.fail(ctx, tx, "Payment initiation failed: "+err.Error())
	}
	res, err := provider.InitiatePayment(ctx, mobilemoney.Request{
		Phone:     tx.RecipientPhone,
		Amount:    tx.FromAmount,
		Reference: "NL_" + tx.ID,
	})
	if err == nil && !res.Success {
		err = errors.New(res.Message)
	}
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return s.fail(ctx, tx, "Payment initiation failed: "+err.Error())
	}

	reference := res.ProviderReference()
	waiting, err := s.repo.UpdateStatus(ctx, tx.ID, StatusProcessing, StatusPending, Patch{MobileMoneyReference: &reference})
	if errors.Is(err, ErrStatusConflict) {
		return nil
	}
	if err != nil {
		return err
	}
	s.logger.Info("on-ramp payment initiated",
		slog.String("transaction_id", tx.ID),
		slog.String("provider", provider.Name()),
		slog.String("reference", reference),
	)
	return s.scheduleCompletion(ctx, waiting)
}

func (s *Service) scheduleCompletion(ctx context.Context, tx Transaction) error {
	task := settlement.Task{Kind: settlement.KindCompleteOnRamp, TransactionID: tx.ID}
	return s.queue.Schedule(ctx, task, s.now().Add(s.settleDelay))
}

func (s *Service) completeOnRamp(ctx context.Context, tx Transaction) error {
	if tx.Status != StatusPending || tx.MobileMoneyReference == "" {
		return nil
	}
	_, err := s.wallets.Credit(ctx, tx.UserID, tx.ToCurrency, ledger.KindOnRampSettlement, tx.ID, tx.ToAmount)
	switch {
	case err == nil, errors.Is(err, ledger.ErrDuplicatePosting):
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, wallet.ErrWalletNotFound):
		return s.fail(ctx, tx, "Settlement failed: "+err.Error())
	default:
		return err
	}

	hash, err := fabricateTxHash()
	if err != nil {
		return err
	}
	done, err := s.repo.UpdateStatus(ctx, tx.ID, StatusPending, StatusCompleted, Patch{CryptoTxHash: &hash})
	if errors.Is(err, ErrStatusConflict) {
		return nil
	}
	if err != nil {
		return err
	}
	s.logger.Info("on-ramp settled",
		slog.String("transaction_id", tx.ID),
		slog.String("credited", done.ToAmount.String()+" "+done.ToCurrency),
	)
	s.notify(ctx, done)
	return nil
}

func (s *Service) processOffRamp(ctx context.Context, tx Transaction) error {
	if tx.Status == StatusFailed {
		return s.refundIfDebited(ctx, tx)
	}
	if tx.Terminal() {
		return nil
	}
	if tx.Status == StatusPending {
		moved, err := s.repo.UpdateStatus(ctx, tx.ID, StatusPending, StatusProcessing, Patch{})
		if errors.Is(err, ErrStatusConflict) {
			return nil
		}
		if err != nil {
			return err
		}
		tx = moved
	}

	_, err := s.wallets.Debit(ctx, tx.UserID, tx.FromCurrency, ledger.KindOffRampDebit, tx.ID, tx.FromAmount)
	switch {
	case err == nil, errors.Is(err, ledger.ErrDuplicatePosting):
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, wallet.ErrWalletNotFound):
		return s.fail(ctx, tx, "Payout failed: "+err.Error())
	default:
		return err
	}

	provider, err := s.providers.Lookup(tx.PaymentMethod)
	if err != nil {
		return s.fail(ctx, tx, "Payout failed: "+err.Error())
	}
	res, err := provider.SendPayout(ctx, mobilemoney.Request{
		Phone:     tx.RecipientPhone,
		Amount:    tx.ToAmount,
		Reference: "NL_OUT_" + tx.ID,
	})
	if err == nil && !res.Success {
		err = errors.New(res.Message)
	}
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return s.fail(ctx, tx, "Payout failed: "+err.Error())
	}

	hash, err := fabricateTxHash()
	if err != nil {
		return err
	}
	reference := res.ProviderReference()
	done, err := s.repo.UpdateStatus(ctx, tx.ID, StatusProcessing, StatusCompleted, Patch{
		MobileMoneyReference: &reference,
		CryptoTxHash:         &hash,
	})
	if errors.Is(err, ErrStatusConflict) {
		current, getErr := s.repo.Get(ctx, tx.ID)
		if getErr != nil {
			return getErr
		}
		if current.Status == StatusFailed {
			return s.refundIfDebited(ctx, current)
		}
		return nil
	}
	if err != nil {
		return err
	}
	s.logger.Info("off-ramp paid out",
		slog.String("transaction_id", tx.ID),
		slog.String("provider", provider.Name()),
		slog.String("paid", done.ToAmount.String()+" "+done.ToCurrency),
	)
	s.notify(ctx, done)
	return nil
}

// fail moves a transaction to failed with the reason in its admin notes and
// returns any funds already taken from the user.
func (s *Service) fail(ctx context.Context, tx Transaction, reason string) error {
	failed, err := s.repo.UpdateStatus(ctx, tx.ID, tx.Status, StatusFailed, Patch{AdminNotes: &reason})
	if errors.Is(err, ErrStatusConflict) {
		current, getErr := s.repo.Get(ctx, tx.ID)
		if getErr != nil {
			return getErr
		}
		if current.Status == StatusFailed && current.Type == TypeOffRamp {
			return s.refundIfDebited(ctx, current)
		}
		return nil
	}
	if err != nil {
		return err
	}
	s.logger.Warn("transaction failed",
		slog.String("transaction_id", tx.ID),
		slog.String("type", tx.Type),
		slog.String("reason", reason),
	)
	if failed.Type == TypeOffRamp {
		if err := s.refundIfDebited(ctx, failed); err != nil {
			return err
		}
	}
	s.notify(ctx, failed)
	return nil
}

func (s *Service) refundIfDebited(ctx context.Context, tx Transaction) error {
	debited, err := s.wallets.Posted(ctx, ledger.KindOffRampDebit, tx.ID)
	if err != nil || !debited {
		return err
	}
	_, err = s.wallets.Credit(ctx, tx.UserID, tx.FromCurrency, ledger.KindOffRampRefund, tx.ID, tx.FromAmount)
	if errors.Is(err, ledger.ErrDuplicatePosting) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("refund off-ramp %s: %w", tx.ID, err)
	}
	s.logger.Info("off-ramp refunded",
		slog.String("transaction_id", tx.ID),
		slog.String("amount", tx.FromAmount.String()+" "+tx.FromCurrency),
	)
	return nil
}

// RequeueStale schedules the next step of transactions that stopped moving,
// for example after a crash between a status write and the enqueue.
func (s *Service) RequeueStale(ctx context.Context, updatedBefore time.Time) (int, error) {
	stale, err := s.repo.ListStale(ctx, updatedBefore, 100)
	if err != nil {
		return 0, err
	}
	now := s.now()
	count := 0
	for _, tx := range stale {
		task := settlement.Task{TransactionID: tx.ID}
		switch {
		case tx.Type == TypeOffRamp:
			task.Kind = settlement.KindProcessOffRamp
		case tx.Type == TypeOnRamp && tx.Status == StatusPending && tx.MobileMoneyReference != "":
			task.Kind = settlement.KindCompleteOnRamp
		case tx.Type == TypeOnRamp:
			task.Kind = settlement.KindProcessOnRamp
		default:
			continue
		}
		if err := s.queue.Schedule(ctx, task, now); err != nil {
			return count, err
		}
		if err := s.repo.Touch(ctx, tx.ID); err != nil {
			s.logger.Warn("touch requeued transaction", slog.String("transaction_id", tx.ID), slog.Any("error", err))
		}
		count++
	}
	return count, nil
}
