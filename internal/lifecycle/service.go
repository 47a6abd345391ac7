package lifecycle

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/goods-transport/internal/cache"
	"github.com/example/goods-transport/internal/clients"
	"github.com/example/goods-transport/internal/geocode"
	"github.com/example/goods-transport/internal/models"
	"github.com/example/goods-transport/internal/observability"
	"github.com/example/goods-transport/internal/store"
	"github.com/example/goods-transport/internal/token"
)

// Fanout is the notification surface the state machine fires into.
// Every call is best-effort; implementations log and never fail the caller.
type Fanout interface {
	RequestCreated(ctx context.Context, r *models.Request, acceptURL, rejectURL string)
	NotifyUser(ctx context.Context, userID, requestID, message string)
	BroadcastCarriers(requestID, message string)
	TrackingUpdate(ctx context.Context, senderID, carrierID, requestID string, status models.Status, location string)
	AutoRejected(ctx context.Context, r *models.Request)
}

// Settler runs payment settlement for a delivered request.
type Settler interface {
	Settle(ctx context.Context, r *models.Request) error
}

// Service is the request lifecycle orchestrator: it validates actor
// authorization and state preconditions, mutates the request, appends the
// history ledger, and fires the side-effect fan-out. No lock is held across
// collaborator calls; concurrent writes resolve last-writer-wins.
type Service struct {
	Store      store.RequestStore
	Cache      cache.Cache
	Fanout     Fanout
	Settlement Settler
	Tokens     *token.Manager
	Geocoder   geocode.Geocoder      // optional
	Rides      clients.RideInventory // optional
	Users      clients.UserDirectory // optional, ban-target existence check

	BaseURL        string // public origin for email action links
	BanTTL         time.Duration
	LocationTTL    time.Duration
	CommissionRate float64

	StaleCutoff     time.Duration
	StaleOuterBound time.Duration

	Logger *slog.Logger
}

// Create persists a new PENDING request for senderID. Ride lookup and
// geocoding are enrichment only: their failure leaves fields empty and is
// logged, never surfaced.
func (s *Service) Create(ctx context.Context, spec models.RequestSpec, senderID string) (*models.Request, error) {
	if err := s.checkBanned(ctx, senderID); err != nil {
		return nil, err
	}

	carrierID := ""
	if spec.RideID != "" && s.Rides != nil {
		ride, err := s.Rides.GetRide(ctx, spec.RideID)
		switch {
		case err != nil:
			s.Logger.Error("ride lookup failed", "ride_id", spec.RideID, "error", err)
		case s.isBanned(ctx, ride.CarrierID):
			s.Logger.Warn("assigned carrier is banned, leaving request unassigned",
				"ride_id", spec.RideID, "carrier_id", ride.CarrierID)
		default:
			carrierID = ride.CarrierID
		}
	}

	now := time.Now()
	r := &models.Request{
		ID:                  newID(),
		SenderID:            senderID,
		CarrierID:           carrierID,
		RideID:              spec.RideID,
		GoodsDescription:    spec.GoodsDescription,
		GoodsType:           spec.GoodsType,
		Weight:              spec.Weight,
		GoodsQuantity:       spec.GoodsQuantity,
		RequiredSpace:       spec.RequiredSpace,
		From:                spec.From,
		To:                  spec.To,
		FromLoc:             s.resolve(ctx, spec.From),
		ToLoc:               s.resolve(ctx, spec.To),
		Fare:                spec.Fare,
		SpecialInstructions: spec.SpecialInstructions,
		DeliveryDate:        spec.DeliveryDate,
		Status:              models.StatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.Store.SaveRequest(ctx, r); err != nil {
		return nil, fmt.Errorf("save request: %w", err)
	}
	s.appendHistory(ctx, r, models.StatusPending, "Request created", senderID)
	observability.RequestsCreated.Inc()

	var acceptURL, rejectURL string
	if carrierID != "" {
		if tok, err := s.Tokens.Issue(r.ID, carrierID); err == nil {
			acceptURL = fmt.Sprintf("%s/api/v1/requests/%s/accept?token=%s", s.BaseURL, r.ID, tok)
			rejectURL = fmt.Sprintf("%s/api/v1/requests/%s/reject?token=%s", s.BaseURL, r.ID, tok)
		} else {
			s.Logger.Error("action token issue failed", "request_id", r.ID, "error", err)
		}
	}
	s.Fanout.RequestCreated(ctx, r, acceptURL, rejectURL)

	return r, nil
}

// Get returns the request if requesterID is the sender or assigned carrier.
func (s *Service) Get(ctx context.Context, id, requesterID string) (*models.Request, error) {
	if err := s.checkBanned(ctx, requesterID); err != nil {
		return nil, err
	}
	r, err := s.findRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.SenderID != requesterID && r.CarrierID != requesterID {
		return nil, fmt.Errorf("%w: not a party to this request", ErrForbidden)
	}
	return r, nil
}

// Update mutates the sender-editable fields of a PENDING request.
func (s *Service) Update(ctx context.Context, id string, patch models.RequestPatch, requesterID string) (*models.Request, error) {
	if err := s.checkBanned(ctx, requesterID); err != nil {
		return nil, err
	}
	r, err := s.findRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.SenderID != requesterID {
		return nil, fmt.Errorf("%w: only the sender can update a request", ErrForbidden)
	}
	if r.Status != models.StatusPending {
		return nil, fmt.Errorf("%w: only pending requests can be updated", ErrInvalidState)
	}

	r.GoodsDescription = patch.GoodsDescription
	r.Weight = patch.Weight
	r.GoodsQuantity = patch.GoodsQuantity
	r.From = patch.From
	r.To = patch.To
	r.SpecialInstructions = patch.SpecialInstructions
	r.UpdatedAt = time.Now()

	if err := s.Store.UpdateRequest(ctx, r); err != nil {
		return nil, fmt.Errorf("update request: %w", err)
	}
	s.appendHistory(ctx, r, r.Status, "Request updated", requesterID)
	observability.Transitions.WithLabelValues("update").Inc()

	s.Fanout.NotifyUser(ctx, requesterID, id, "Request updated successfully")
	if r.CarrierID != "" {
		s.Fanout.NotifyUser(ctx, r.CarrierID, id, "Request details updated by sender")
	}
	return r, nil
}

// Cancel moves a PENDING request to CANCELLED. Sender only.
func (s *Service) Cancel(ctx context.Context, id, requesterID string) error {
	if err := s.checkBanned(ctx, requesterID); err != nil {
		return err
	}
	r, err := s.findRequest(ctx, id)
	if err != nil {
		return err
	}
	if r.SenderID != requesterID {
		return fmt.Errorf("%w: only the sender can cancel the request", ErrForbidden)
	}
	if r.Status != models.StatusPending {
		return fmt.Errorf("%w: only pending requests can be cancelled", ErrInvalidState)
	}

	r.Status = models.StatusCancelled
	r.UpdatedAt = time.Now()
	if err := s.Store.UpdateRequest(ctx, r); err != nil {
		return fmt.Errorf("cancel request: %w", err)
	}
	s.appendHistory(ctx, r, models.StatusCancelled, "Cancelled by sender", requesterID)
	observability.Transitions.WithLabelValues("cancel").Inc()

	s.Fanout.NotifyUser(ctx, requesterID, id, "Request cancelled successfully")
	if r.CarrierID != "" {
		s.Fanout.NotifyUser(ctx, r.CarrierID, id, "Request cancelled by sender")
	}
	return nil
}

// Accept moves a PENDING request to ACCEPTED. Assigned carrier only.
func (s *Service) Accept(ctx context.Context, id, carrierID string) (*models.Request, error) {
	if err := s.checkBanned(ctx, carrierID); err != nil {
		return nil, err
	}
	r, err := s.findRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.CarrierID == "" || r.CarrierID != carrierID {
		return nil, fmt.Errorf("%w: not the assigned carrier for this request", ErrForbidden)
	}
	if r.Status != models.StatusPending {
		return nil, fmt.Errorf("%w: only pending requests can be accepted", ErrInvalidState)
	}

	now := time.Now()
	r.Status = models.StatusAccepted
	r.AcceptedAt = &now
	r.UpdatedAt = now
	if err := s.Store.UpdateRequest(ctx, r); err != nil {
		return nil, fmt.Errorf("accept request: %w", err)
	}
	s.appendHistory(ctx, r, models.StatusAccepted, "Accepted by carrier", carrierID)
	observability.Transitions.WithLabelValues("accept").Inc()

	s.Fanout.NotifyUser(ctx, r.SenderID, id, "Request accepted by carrier")
	s.Fanout.NotifyUser(ctx, carrierID, id, "Request accepted successfully")
	s.Fanout.TrackingUpdate(ctx, r.SenderID, carrierID, id, models.StatusAccepted, r.From)
	return r, nil
}

// AcceptWithToken accepts using a signed action token in place of a session.
// The token's embedded carrier id becomes the acting user.
func (s *Service) AcceptWithToken(ctx context.Context, id, tok string) (*models.Request, error) {
	carrierID, err := s.Tokens.Validate(tok, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return s.Accept(ctx, id, carrierID)
}

// Reject clears the assigned carrier and recycles the request back to
// PENDING so it can be rematched. Valid from any status.
func (s *Service) Reject(ctx context.Context, id, carrierID, reason string) (*models.Request, error) {
	if err := s.checkBanned(ctx, carrierID); err != nil {
		return nil, err
	}
	r, err := s.findRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.CarrierID != carrierID {
		return nil, fmt.Errorf("%w: can only reject requests assigned to you", ErrForbidden)
	}

	r.CarrierID = ""
	r.Status = models.StatusPending
	r.RejectionReason = reason
	r.UpdatedAt = time.Now()
	if err := s.Store.UpdateRequest(ctx, r); err != nil {
		return nil, fmt.Errorf("reject request: %w", err)
	}
	note := "Rejected by carrier"
	if reason != "" {
		note += ": " + reason
	}
	s.appendHistory(ctx, r, models.StatusPending, note, carrierID)
	observability.Transitions.WithLabelValues("reject").Inc()

	msg := "Request rejected"
	if reason != "" {
		msg += ": " + reason
	}
	s.Fanout.NotifyUser(ctx, r.SenderID, id, msg)
	s.Fanout.NotifyUser(ctx, carrierID, id, "Request rejection confirmed")
	s.Fanout.BroadcastCarriers(id, "Request available again after rejection")
	return r, nil
}

// RejectWithToken rejects using a signed action token.
func (s *Service) RejectWithToken(ctx context.Context, id, tok, reason string) (*models.Request, error) {
	carrierID, err := s.Tokens.Validate(tok, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return s.Reject(ctx, id, carrierID, reason)
}

// MarkPickedUp moves an ACCEPTED request to IN_TRANSIT.
func (s *Service) MarkPickedUp(ctx context.Context, id, carrierID string) (*models.Request, error) {
	if err := s.checkBanned(ctx, carrierID); err != nil {
		return nil, err
	}
	r, err := s.findRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.CarrierID != carrierID {
		return nil, fmt.Errorf("%w: only the assigned carrier can mark picked up", ErrForbidden)
	}
	if r.Status != models.StatusAccepted {
		return nil, fmt.Errorf("%w: only accepted requests can be picked up", ErrInvalidState)
	}

	now := time.Now()
	r.Status = models.StatusInTransit
	r.PickedUpAt = &now
	r.UpdatedAt = now
	if err := s.Store.UpdateRequest(ctx, r); err != nil {
		return nil, fmt.Errorf("mark picked up: %w", err)
	}
	s.appendHistory(ctx, r, models.StatusInTransit, "Goods picked up by carrier", carrierID)
	observability.Transitions.WithLabelValues("pickup").Inc()

	s.Fanout.TrackingUpdate(ctx, r.SenderID, carrierID, id, models.StatusInTransit, s.carrierLocationOr(ctx, carrierID, r.From))
	s.Fanout.NotifyUser(ctx, r.SenderID, id, "Your goods have been picked up")
	s.Fanout.NotifyUser(ctx, carrierID, id, "Pickup confirmed, goods in transit")
	return r, nil
}

// MarkDelivered moves an IN_TRANSIT request to DELIVERED and runs payment
// settlement. Settlement failure is logged and never rolls the delivery
// back: delivery is truth, payment is reconciled separately.
func (s *Service) MarkDelivered(ctx context.Context, id, carrierID, notes string) (*models.Request, error) {
	if err := s.checkBanned(ctx, carrierID); err != nil {
		return nil, err
	}
	r, err := s.findRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.CarrierID != carrierID {
		return nil, fmt.Errorf("%w: only the assigned carrier can mark delivered", ErrForbidden)
	}
	if r.Status != models.StatusInTransit {
		return nil, fmt.Errorf("%w: only in-transit requests can be delivered", ErrInvalidState)
	}

	now := time.Now()
	r.Status = models.StatusDelivered
	r.DeliveredAt = &now
	r.UpdatedAt = now
	if err := s.Store.UpdateRequest(ctx, r); err != nil {
		return nil, fmt.Errorf("mark delivered: %w", err)
	}
	note := "Goods delivered successfully"
	if notes != "" {
		note += ". Notes: " + notes
	}
	s.appendHistory(ctx, r, models.StatusDelivered, note, carrierID)
	observability.Transitions.WithLabelValues("deliver").Inc()

	if s.Settlement != nil {
		if err := s.Settlement.Settle(ctx, r); err != nil {
			s.Logger.Error("payment settlement failed", "request_id", id, "error", err)
		}
	}

	s.Fanout.TrackingUpdate(ctx, r.SenderID, carrierID, id, models.StatusDelivered, s.carrierLocationOr(ctx, carrierID, r.To))
	s.Fanout.NotifyUser(ctx, r.SenderID, id, "Goods delivered successfully")
	s.Fanout.NotifyUser(ctx, carrierID, id, "Delivery confirmed")
	return r, nil
}

// UpdateTracking writes a tracking sample for a request. Assigned carrier only.
func (s *Service) UpdateTracking(ctx context.Context, id string, loc models.Location, carrierID string) error {
	if err := s.checkBanned(ctx, carrierID); err != nil {
		return err
	}
	r, err := s.findRequest(ctx, id)
	if err != nil {
		return err
	}
	if r.CarrierID != carrierID {
		return fmt.Errorf("%w: only the assigned carrier can update tracking", ErrForbidden)
	}
	if loc.Timestamp.IsZero() {
		loc.Timestamp = time.Now()
	}
	if err := s.Cache.SetLocation(ctx, cache.KindRequest, id, loc, s.LocationTTL); err != nil {
		return fmt.Errorf("set tracking: %w", err)
	}
	s.Fanout.TrackingUpdate(ctx, r.SenderID, carrierID, id, r.Status, fmt.Sprintf("%.5f,%.5f", loc.Lat, loc.Lon))
	return nil
}

// GetTracking reads the last tracking sample for a request. Sender or
// assigned carrier only; ok=false means no tracking data.
func (s *Service) GetTracking(ctx context.Context, id, requesterID string) (models.Location, bool, error) {
	if err := s.checkBanned(ctx, requesterID); err != nil {
		return models.Location{}, false, err
	}
	r, err := s.findRequest(ctx, id)
	if err != nil {
		return models.Location{}, false, err
	}
	if r.SenderID != requesterID && r.CarrierID != requesterID {
		return models.Location{}, false, fmt.Errorf("%w: not authorized to view tracking", ErrForbidden)
	}
	return s.Cache.Location(ctx, cache.KindRequest, id)
}

// UpdateCarrierLocation stores a carrier's own last-known position.
func (s *Service) UpdateCarrierLocation(ctx context.Context, carrierID string, loc models.Location) error {
	if err := s.checkBanned(ctx, carrierID); err != nil {
		return err
	}
	if loc.Timestamp.IsZero() {
		loc.Timestamp = time.Now()
	}
	return s.Cache.SetLocation(ctx, cache.KindCarrier, carrierID, loc, s.LocationTTL)
}

// Status returns the lifecycle-timestamp snapshot of a request.
func (s *Service) Status(ctx context.Context, id, userID string) (models.StatusSnapshot, error) {
	r, err := s.Get(ctx, id, userID)
	if err != nil {
		return models.StatusSnapshot{}, err
	}
	return models.StatusSnapshot{
		RequestID:   r.ID,
		Status:      r.Status,
		AcceptedAt:  r.AcceptedAt,
		PickedUpAt:  r.PickedUpAt,
		DeliveredAt: r.DeliveredAt,
	}, nil
}

// Summary counts a sender's requests per status.
func (s *Service) Summary(ctx context.Context, userID string) (models.Summary, error) {
	if err := s.checkBanned(ctx, userID); err != nil {
		return models.Summary{}, err
	}
	reqs, err := s.Store.ListBySender(ctx, userID, "")
	if err != nil {
		return models.Summary{}, err
	}
	var sum models.Summary
	sum.Total = len(reqs)
	for _, r := range reqs {
		switch r.Status {
		case models.StatusPending:
			sum.Pending++
		case models.StatusAccepted:
			sum.Accepted++
		case models.StatusInTransit:
			sum.InTransit++
		case models.StatusDelivered:
			sum.Delivered++
		case models.StatusCancelled:
			sum.Cancelled++
		}
	}
	return sum, nil
}

// ListBySender returns a sender's requests, optionally filtered by status.
func (s *Service) ListBySender(ctx context.Context, userID string, status models.Status) ([]*models.Request, error) {
	if err := s.checkBanned(ctx, userID); err != nil {
		return nil, err
	}
	return s.Store.ListBySender(ctx, userID, status)
}

// ListByCarrier returns a carrier's requests, optionally filtered by status.
func (s *Service) ListByCarrier(ctx context.Context, carrierID string, status models.Status) ([]*models.Request, error) {
	if err := s.checkBanned(ctx, carrierID); err != nil {
		return nil, err
	}
	return s.Store.ListByCarrier(ctx, carrierID, status)
}

// DetailedHistory returns the ledger rows for a request the user is party to.
func (s *Service) DetailedHistory(ctx context.Context, id, userID string) ([]models.HistoryEntry, error) {
	if _, err := s.Get(ctx, id, userID); err != nil {
		return nil, err
	}
	return s.Store.HistoryFor(ctx, id)
}

// BanUser writes the shared ban marker after verifying the user exists.
// The registry itself is externally owned; this is the writer the core shares.
func (s *Service) BanUser(ctx context.Context, userID, reason string) error {
	if s.Users != nil {
		if _, err := s.Users.GetUser(ctx, userID); err != nil {
			return fmt.Errorf("%w: user %s", ErrNotFound, userID)
		}
	}
	if err := s.Cache.Ban(ctx, userID, reason, s.BanTTL); err != nil {
		return fmt.Errorf("ban user: %w", err)
	}
	s.Fanout.NotifyUser(ctx, userID, "", "Your account has been banned. Reason: "+reason)
	s.Logger.Info("user banned", "user_id", userID, "reason", reason)
	return nil
}

// TransactionReport aggregates delivered requests between two dates
// (YYYY-MM-DD, upper bound inclusive of the whole day).
func (s *Service) TransactionReport(ctx context.Context, fromDate, toDate string) (models.TransactionReport, error) {
	from, err := time.Parse("2006-01-02", fromDate)
	if err != nil {
		return models.TransactionReport{}, fmt.Errorf("invalid from date: %w", err)
	}
	to, err := time.Parse("2006-01-02", toDate)
	if err != nil {
		return models.TransactionReport{}, fmt.Errorf("invalid to date: %w", err)
	}
	reqs, err := s.Store.DeliveredBetween(ctx, from, to.AddDate(0, 0, 1))
	if err != nil {
		return models.TransactionReport{}, err
	}
	var total float64
	for _, r := range reqs {
		total += r.Fare
	}
	return models.TransactionReport{
		FromDate:          fromDate,
		ToDate:            toDate,
		TotalTransactions: len(reqs),
		TotalAmount:       total,
		CommissionEarned:  total * s.CommissionRate,
	}, nil
}

// SweepStale auto-rejects PENDING requests created between StaleOuterBound
// and StaleCutoff ago. Each request is processed independently; one failure
// is logged and never aborts the rest of the batch. Returns the number of
// requests rejected.
func (s *Service) SweepStale(ctx context.Context) (int, error) {
	now := time.Now()
	stale, err := s.Store.ListStalePending(ctx, now.Add(-s.StaleCutoff), now.Add(-s.StaleOuterBound))
	if err != nil {
		return 0, fmt.Errorf("list stale pending: %w", err)
	}

	rejected := 0
	for _, r := range stale {
		r.Status = models.StatusRejected
		r.RejectionReason = "No carrier responded in time"
		r.UpdatedAt = time.Now()
		if err := s.Store.UpdateRequest(ctx, r); err != nil {
			s.Logger.Error("auto-reject failed", "request_id", r.ID, "error", err)
			continue
		}
		s.appendHistory(ctx, r, models.StatusRejected, "Auto-rejected: carrier did not respond", "")
		s.Fanout.AutoRejected(ctx, r)
		observability.SweeperRejections.Inc()
		s.Logger.Info("auto-rejected stale request", "request_id", r.ID, "created_at", r.CreatedAt)
		rejected++
	}
	return rejected, nil
}

func (s *Service) findRequest(ctx context.Context, id string) (*models.Request, error) {
	r, ok, err := s.Store.GetRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, nil
}

func (s *Service) appendHistory(ctx context.Context, r *models.Request, status models.Status, notes, actor string) {
	h := models.HistoryEntry{
		ID:        newID(),
		RequestID: r.ID,
		Status:    status,
		Timestamp: time.Now(),
		Notes:     notes,
		ChangedBy: actor,
	}
	if err := s.Store.AppendHistory(ctx, h); err != nil {
		s.Logger.Error("history append failed", "request_id", r.ID, "error", err)
	}
}

// checkBanned is the cheap gate in front of every operation: one cache read
// before any expensive work, applied uniformly regardless of role.
func (s *Service) checkBanned(ctx context.Context, userID string) error {
	reason, banned, err := s.Cache.BanReason(ctx, userID)
	if err != nil {
		return fmt.Errorf("ban check: %w", err)
	}
	if banned {
		return fmt.Errorf("%w: user is banned: %s", ErrForbidden, reason)
	}
	return nil
}

func (s *Service) isBanned(ctx context.Context, userID string) bool {
	_, banned, err := s.Cache.BanReason(ctx, userID)
	return err == nil && banned
}

// resolve geocodes best-effort; failure produces zero coordinates.
func (s *Service) resolve(ctx context.Context, address string) models.Coord {
	if s.Geocoder == nil || address == "" {
		return models.Coord{}
	}
	c, err := s.Geocoder.Resolve(ctx, address)
	if err != nil {
		s.Logger.Warn("geocoding failed", "address", address, "error", err)
		return models.Coord{}
	}
	return c
}

// carrierLocationOr formats the carrier's last-known position, falling back
// to the given address string when no tracking data exists.
func (s *Service) carrierLocationOr(ctx context.Context, carrierID, fallback string) string {
	loc, ok, err := s.Cache.Location(ctx, cache.KindCarrier, carrierID)
	if err != nil || !ok {
		return fallback
	}
	return fmt.Sprintf("%.5f,%.5f", loc.Lat, loc.Lon)
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
