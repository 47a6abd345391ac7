package payments

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/goods-transport/internal/models"
	"github.com/example/goods-transport/internal/observability"
)

// PaymentNotifier is the slice of the fan-out the settlement needs.
type PaymentNotifier interface {
	PaymentUpdate(ctx context.Context, senderID, carrierID, requestID, status string, amount float64)
}

// Settlement runs the caller-side payment policy on delivery: compute the
// net amount after commission, submit it, poll status, and retry a bounded
// number of times. The caller treats an exhausted settlement as log-only.
type Settlement struct {
	Gateway        Gateway
	Notifier       PaymentNotifier
	CommissionRate float64
	Attempts       int
	Delay          time.Duration
	Logger         *slog.Logger
}

// Net returns the payable amount after commission.
func (s *Settlement) Net(fare float64) float64 {
	return fare * (1 - s.CommissionRate)
}

// Settle submits the net fare for a delivered request and polls until the
// gateway reports success, failing over to a fresh attempt after Delay.
// On success the sender is notified; after Attempts failures an error is
// returned for the caller to log.
func (s *Settlement) Settle(ctx context.Context, r *models.Request) error {
	net := s.Net(r.Fare)
	in := Instruction{RequestID: r.ID, UserID: r.SenderID, Amount: net}

	for attempt := 1; attempt <= s.Attempts; attempt++ {
		observability.SettlementAttempts.Inc()
		if err := s.attempt(ctx, in); err != nil {
			s.Logger.Error("settlement attempt failed",
				"request_id", r.ID, "attempt", attempt, "error", err)
			if attempt < s.Attempts {
				select {
				case <-time.After(s.Delay):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			continue
		}
		s.Logger.Info("settlement succeeded", "request_id", r.ID, "net_amount", net)
		if s.Notifier != nil {
			s.Notifier.PaymentUpdate(ctx, r.SenderID, r.CarrierID, r.ID, "processed successfully", net)
		}
		return nil
	}

	observability.SettlementFailures.Inc()
	return fmt.Errorf("settlement failed after %d attempts for request %s", s.Attempts, r.ID)
}

func (s *Settlement) attempt(ctx context.Context, in Instruction) error {
	ref, err := s.Gateway.Submit(ctx, in)
	if err != nil {
		return err
	}
	st, err := s.Gateway.Status(ctx, ref)
	if err != nil {
		return err
	}
	if st.Status != "SUCCESS" {
		return fmt.Errorf("gateway status %s: %s", st.Status, st.Message)
	}
	return nil
}
