package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/goods-transport/internal/cache"
	"github.com/example/goods-transport/internal/clients"
	"github.com/example/goods-transport/internal/models"
	"github.com/example/goods-transport/internal/observability"
)

// Pusher is the real-time leg of the fan-out.
type Pusher interface {
	Push(userID string, m Message) error
	Broadcast(m Message)
}

// Notifier fans a lifecycle event out to the affected parties: a push on the
// user's subscription channel plus a best-effort email. Nothing here returns
// an error to the caller; the state machine must not couple to downstream
// availability.
type Notifier struct {
	Registry  Pusher
	Mail      EmailSender          // optional, direct delivery
	Events    *EventProducer       // optional, async email leg via kafka
	Directory clients.UserDirectory // optional, resolves emails
	Cache     cache.Cache
	UserTTL   time.Duration
	Logger    *slog.Logger
}

// NotifyUser delivers a generic notification to one user.
func (n *Notifier) NotifyUser(ctx context.Context, userID, requestID, message string) {
	n.push(userID, Message{RequestID: requestID, Kind: "notification", Body: message})
	n.email(ctx, userID, requestID, "User Notification", message)
}

// BroadcastCarriers announces to every connected carrier.
func (n *Notifier) BroadcastCarriers(requestID, message string) {
	n.Registry.Broadcast(Message{RequestID: requestID, Kind: "notification", Body: message})
	observability.NotificationsSent.WithLabelValues("broadcast").Inc()
}

// TrackingUpdate informs both parties of a status/location change.
func (n *Notifier) TrackingUpdate(ctx context.Context, senderID, carrierID, requestID string, status models.Status, location string) {
	body := fmt.Sprintf("Request %s: status updated to %s at %s", requestID, status, location)
	for _, id := range []string{senderID, carrierID} {
		if id == "" {
			continue
		}
		n.push(id, Message{RequestID: requestID, Kind: "tracking", Body: body})
		n.email(ctx, id, requestID, "Tracking Update", body)
	}
}

// PaymentUpdate informs both parties of a settlement outcome.
func (n *Notifier) PaymentUpdate(ctx context.Context, senderID, carrierID, requestID, status string, amount float64) {
	body := fmt.Sprintf("Request %s: payment %s. Amount: %.2f", requestID, status, amount)
	for _, id := range []string{senderID, carrierID} {
		if id == "" {
			continue
		}
		n.push(id, Message{RequestID: requestID, Kind: "payment", Body: body})
		n.email(ctx, id, requestID, "Payment Notification", body)
	}
}

// RequestCreated runs the creation fan-out: the assigned carrier (if any)
// gets a push plus an email carrying the accept/reject action links,
// otherwise all carriers are broadcast to. The sender is always notified.
func (n *Notifier) RequestCreated(ctx context.Context, r *models.Request, acceptURL, rejectURL string) {
	if r.CarrierID != "" {
		n.push(r.CarrierID, Message{RequestID: r.ID, Kind: "notification",
			Body: fmt.Sprintf("New request for your ride from %s to %s", r.From, r.To)})
		body := fmt.Sprintf("New transport request %s from %s to %s.\nGoods: %s\nFare: %.2f\n\nAccept: %s\nReject: %s",
			r.ID, r.From, r.To, r.GoodsDescription, r.Fare, acceptURL, rejectURL)
		n.email(ctx, r.CarrierID, r.ID, "New Transport Request", body)
	} else {
		n.BroadcastCarriers(r.ID, fmt.Sprintf("New request available from %s to %s", r.From, r.To))
	}

	n.push(r.SenderID, Message{RequestID: r.ID, Kind: "notification", Body: "Request created successfully"})
	n.email(ctx, r.SenderID, r.ID, "Request Created",
		fmt.Sprintf("Your request %s from %s to %s for %q was created.", r.ID, r.From, r.To, r.GoodsDescription))
}

// AutoRejected tells the sender no carrier responded in time.
func (n *Notifier) AutoRejected(ctx context.Context, r *models.Request) {
	body := fmt.Sprintf("Your request %s was automatically rejected as the assigned carrier did not respond in time.", r.ID)
	n.push(r.SenderID, Message{RequestID: r.ID, Kind: "notification", Body: "Auto rejected due to no response"})
	n.email(ctx, r.SenderID, r.ID, "Carrier Did Not Respond", body)
}

func (n *Notifier) push(userID string, m Message) {
	if err := n.Registry.Push(userID, m); err != nil {
		n.Logger.Debug("push skipped", "user_id", userID, "error", err)
		return
	}
	observability.NotificationsSent.WithLabelValues("ws").Inc()
}

func (n *Notifier) email(ctx context.Context, userID, requestID, subject, body string) {
	addr, ok := n.emailFor(ctx, userID)
	if !ok {
		return
	}
	if n.Events != nil {
		e := Event{RequestID: requestID, UserID: userID, Email: addr, Subject: subject, Body: body, EmittedAt: time.Now()}
		if err := n.Events.Publish(ctx, e); err != nil {
			n.Logger.Warn("notification event publish failed", "user_id", userID, "error", err)
			return
		}
	} else if n.Mail != nil {
		if err := n.Mail.SendEmail(addr, subject, body); err != nil {
			n.Logger.Warn("email send failed", "user_id", userID, "error", err)
			return
		}
	} else {
		return
	}
	observability.NotificationsSent.WithLabelValues("email").Inc()
}

// emailFor resolves a user's address through the cache, then the identity
// service. A user we cannot resolve simply gets no email.
func (n *Notifier) emailFor(ctx context.Context, userID string) (string, bool) {
	if n.Cache != nil {
		if u, ok, err := n.Cache.User(ctx, userID); err == nil && ok && u.Email != "" {
			return u.Email, true
		}
	}
	if n.Directory == nil {
		return "", false
	}
	u, err := n.Directory.GetUser(ctx, userID)
	if err != nil || u.Email == "" {
		return "", false
	}
	if n.Cache != nil {
		_ = n.Cache.SetUser(ctx, u, n.UserTTL)
	}
	return u.Email, true
}
