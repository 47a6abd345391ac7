package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/example/goods-transport/internal/models"
)

// scriptedGateway fails the first failures submissions, then succeeds.
type scriptedGateway struct {
	failures int
	submits  []Instruction
}

func (g *scriptedGateway) Submit(ctx context.Context, in Instruction) (string, error) {
	g.submits = append(g.submits, in)
	if len(g.submits) <= g.failures {
		return "", errors.New("gateway unavailable")
	}
	return fmt.Sprintf("ref-%d", len(g.submits)), nil
}

func (g *scriptedGateway) Status(ctx context.Context, ref string) (GatewayStatus, error) {
	return GatewayStatus{Status: "SUCCESS"}, nil
}

type recordingNotifier struct {
	updates []string
	amounts []float64
}

func (n *recordingNotifier) PaymentUpdate(ctx context.Context, senderID, carrierID, requestID, status string, amount float64) {
	n.updates = append(n.updates, status)
	n.amounts = append(n.amounts, amount)
}

func newSettlement(g Gateway, n PaymentNotifier) *Settlement {
	return &Settlement{
		Gateway:        g,
		Notifier:       n,
		CommissionRate: 0.05,
		Attempts:       3,
		Delay:          time.Millisecond,
		Logger:         slog.Default(),
	}
}

func deliveredRequest() *models.Request {
	return &models.Request{ID: "req-1", SenderID: "sender-1", CarrierID: "carrier-1", Fare: 100.00}
}

func TestSettleSucceedsAfterRetries(t *testing.T) {
	gw := &scriptedGateway{failures: 2}
	nt := &recordingNotifier{}
	s := newSettlement(gw, nt)

	if err := s.Settle(context.Background(), deliveredRequest()); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if len(gw.submits) != 3 {
		t.Fatalf("expected 3 submissions, got %d", len(gw.submits))
	}
	if len(nt.updates) != 1 {
		t.Fatalf("expected one payment notification, got %d", len(nt.updates))
	}
	if nt.amounts[0] != 95.00 {
		t.Fatalf("expected net 95.00 after 5%% commission, got %v", nt.amounts[0])
	}
}

func TestSettleExhaustsAttempts(t *testing.T) {
	gw := &scriptedGateway{failures: 10}
	nt := &recordingNotifier{}
	s := newSettlement(gw, nt)

	err := s.Settle(context.Background(), deliveredRequest())
	if err == nil {
		t.Fatal("expected error after exhausted attempts")
	}
	if len(gw.submits) != 3 {
		t.Fatalf("expected exactly 3 submissions, got %d", len(gw.submits))
	}
	if len(nt.updates) != 0 {
		t.Fatalf("expected no payment notification on failure, got %v", nt.updates)
	}
}

// failedStatusGateway accepts the submission but never reports success.
type failedStatusGateway struct {
	statusCalls int
}

func (g *failedStatusGateway) Submit(ctx context.Context, in Instruction) (string, error) {
	return "ref-1", nil
}

func (g *failedStatusGateway) Status(ctx context.Context, ref string) (GatewayStatus, error) {
	g.statusCalls++
	return GatewayStatus{Status: "FAILED", Message: "card declined"}, nil
}

func TestSettleTreatsNonSuccessStatusAsFailure(t *testing.T) {
	gw := &failedStatusGateway{}
	s := newSettlement(gw, &recordingNotifier{})

	if err := s.Settle(context.Background(), deliveredRequest()); err == nil {
		t.Fatal("expected error for FAILED gateway status")
	}
	if gw.statusCalls != 3 {
		t.Fatalf("expected 3 status polls, got %d", gw.statusCalls)
	}
}

func TestSettleHonorsContextCancellation(t *testing.T) {
	gw := &scriptedGateway{failures: 10}
	s := newSettlement(gw, nil)
	s.Delay = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Settle(ctx, deliveredRequest()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNet(t *testing.T) {
	s := &Settlement{CommissionRate: 0.05}
	if got := s.Net(100); got != 95 {
		t.Fatalf("expected 95, got %v", got)
	}
	s.CommissionRate = 0
	if got := s.Net(42.5); got != 42.5 {
		t.Fatalf("expected 42.5, got %v", got)
	}
}
