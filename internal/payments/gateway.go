package payments

import (
	"context"
	"os"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
)

// Instruction is one payment the gateway should settle.
type Instruction struct {
	RequestID string
	UserID    string
	Amount    float64 // major units, already net of commission
	Currency  string
}

// GatewayStatus is the gateway's view of a submitted instruction.
type GatewayStatus struct {
	Status  string // SUCCESS, PENDING, FAILED
	Message string
}

// Gateway abstracts the payment provider: submit an instruction, then poll
// its settlement status by reference.
type Gateway interface {
	Submit(ctx context.Context, in Instruction) (ref string, err error)
	Status(ctx context.Context, ref string) (GatewayStatus, error)
}

// StripeGateway implements Gateway on stripe PaymentIntents.
type StripeGateway struct{}

// NewStripeGateway initializes the stripe client with the STRIPE_API_KEY env var.
func NewStripeGateway() *StripeGateway {
	stripe.Key = os.Getenv("STRIPE_API_KEY")
	return &StripeGateway{}
}

func (s *StripeGateway) Submit(ctx context.Context, in Instruction) (string, error) {
	currency := in.Currency
	if currency == "" {
		currency = "usd"
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(in.Amount*100 + 0.5)),
		Currency: stripe.String(currency),
		Confirm:  stripe.Bool(true),
	}
	params.AddMetadata("request_id", in.RequestID)
	params.AddMetadata("user_id", in.UserID)
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}

func (s *StripeGateway) Status(ctx context.Context, ref string) (GatewayStatus, error) {
	pi, err := paymentintent.Get(ref, nil)
	if err != nil {
		return GatewayStatus{}, err
	}
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return GatewayStatus{Status: "SUCCESS"}, nil
	case stripe.PaymentIntentStatusCanceled:
		return GatewayStatus{Status: "FAILED", Message: string(pi.Status)}, nil
	default:
		return GatewayStatus{Status: "PENDING", Message: string(pi.Status)}, nil
	}
}
