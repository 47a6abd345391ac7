package notify

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/example/goods-transport/internal/cache"
	"github.com/example/goods-transport/internal/models"
)

type fakePusher struct {
	pushed     map[string][]Message
	broadcasts []Message
	failFor    map[string]bool
}

func newFakePusher() *fakePusher {
	return &fakePusher{pushed: make(map[string][]Message), failFor: make(map[string]bool)}
}

func (p *fakePusher) Push(userID string, m Message) error {
	if p.failFor[userID] {
		return errors.New("no session")
	}
	p.pushed[userID] = append(p.pushed[userID], m)
	return nil
}

func (p *fakePusher) Broadcast(m Message) { p.broadcasts = append(p.broadcasts, m) }

type fakeMail struct {
	sent []string // "to: subject"
	err  error
}

func (m *fakeMail) SendEmail(to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to+": "+subject)
	return nil
}

type fakeDirectory struct {
	emails map[string]string
	calls  int
}

func (d *fakeDirectory) GetUser(ctx context.Context, id string) (models.User, error) {
	d.calls++
	email, ok := d.emails[id]
	if !ok {
		return models.User{}, errors.New("unknown user")
	}
	return models.User{ID: id, Email: email}, nil
}

func newTestNotifier(p *fakePusher, m *fakeMail, d *fakeDirectory) *Notifier {
	return &Notifier{
		Registry:  p,
		Mail:      m,
		Directory: d,
		Cache:     cache.NewMemoryCache(),
		UserTTL:   time.Hour,
		Logger:    slog.Default(),
	}
}

func TestNotifyUserPushAndEmail(t *testing.T) {
	p := newFakePusher()
	m := &fakeMail{}
	d := &fakeDirectory{emails: map[string]string{"u1": "u1@example.com"}}
	n := newTestNotifier(p, m, d)

	n.NotifyUser(context.Background(), "u1", "r1", "hello")

	if len(p.pushed["u1"]) != 1 || p.pushed["u1"][0].Body != "hello" {
		t.Fatalf("expected one push, got %+v", p.pushed["u1"])
	}
	if len(m.sent) != 1 {
		t.Fatalf("expected one email, got %v", m.sent)
	}
}

func TestNotifyUserSurvivesDownstreamFailures(t *testing.T) {
	p := newFakePusher()
	p.failFor["u1"] = true
	m := &fakeMail{err: errors.New("smtp down")}
	d := &fakeDirectory{emails: map[string]string{"u1": "u1@example.com"}}
	n := newTestNotifier(p, m, d)

	// must not panic or propagate anything
	n.NotifyUser(context.Background(), "u1", "r1", "hello")
}

func TestEmailSkippedWhenUnresolvable(t *testing.T) {
	p := newFakePusher()
	m := &fakeMail{}
	n := newTestNotifier(p, m, &fakeDirectory{emails: map[string]string{}})

	n.NotifyUser(context.Background(), "ghost", "r1", "hello")
	if len(m.sent) != 0 {
		t.Fatalf("expected no email for unresolvable user, got %v", m.sent)
	}
	if len(p.pushed["ghost"]) != 1 {
		t.Fatal("push must still happen")
	}
}

func TestEmailResolutionIsCached(t *testing.T) {
	p := newFakePusher()
	m := &fakeMail{}
	d := &fakeDirectory{emails: map[string]string{"u1": "u1@example.com"}}
	n := newTestNotifier(p, m, d)
	ctx := context.Background()

	n.NotifyUser(ctx, "u1", "r1", "first")
	n.NotifyUser(ctx, "u1", "r1", "second")

	if d.calls != 1 {
		t.Fatalf("expected one directory lookup, got %d", d.calls)
	}
	if len(m.sent) != 2 {
		t.Fatalf("expected two emails, got %v", m.sent)
	}
}

func TestRequestCreatedFanout(t *testing.T) {
	p := newFakePusher()
	m := &fakeMail{}
	d := &fakeDirectory{emails: map[string]string{"sender-1": "s@example.com", "carrier-1": "c@example.com"}}
	n := newTestNotifier(p, m, d)

	r := &models.Request{ID: "r1", SenderID: "sender-1", CarrierID: "carrier-1", From: "A", To: "B"}
	n.RequestCreated(context.Background(), r, "http://x/accept", "http://x/reject")

	if len(p.pushed["carrier-1"]) != 1 || len(p.pushed["sender-1"]) != 1 {
		t.Fatalf("expected pushes to both parties, got %+v", p.pushed)
	}
	if len(p.broadcasts) != 0 {
		t.Fatal("assigned request must not broadcast")
	}
	if len(m.sent) != 2 {
		t.Fatalf("expected carrier + sender emails, got %v", m.sent)
	}

	// unassigned request goes to the broadcast channel instead
	r2 := &models.Request{ID: "r2", SenderID: "sender-1", From: "A", To: "B"}
	n.RequestCreated(context.Background(), r2, "", "")
	if len(p.broadcasts) != 1 {
		t.Fatalf("expected one broadcast, got %d", len(p.broadcasts))
	}
}

func TestTrackingUpdateSkipsEmptyCarrier(t *testing.T) {
	p := newFakePusher()
	n := newTestNotifier(p, &fakeMail{}, &fakeDirectory{emails: map[string]string{}})

	n.TrackingUpdate(context.Background(), "sender-1", "", "r1", models.StatusPending, "A")
	if len(p.pushed["sender-1"]) != 1 {
		t.Fatalf("expected sender push, got %+v", p.pushed)
	}
	if len(p.pushed[""]) != 0 {
		t.Fatal("empty carrier id must be skipped")
	}
}
