package models

import "time"

// Status of a transport request. REJECTED is only reached by the stale-request
// sweeper; a carrier-initiated reject recycles the request back to PENDING.
type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusPending   Status = "PENDING"
	StatusAccepted  Status = "ACCEPTED"
	StatusRejected  Status = "REJECTED"
	StatusInTransit Status = "IN_TRANSIT"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Request is the central goods-transport entity.
type Request struct {
	ID        string `json:"id"`
	SenderID  string `json:"sender_id"`
	CarrierID string `json:"carrier_id,omitempty"` // empty until a ride is assigned
	RideID    string `json:"ride_id,omitempty"`

	GoodsDescription string  `json:"goods_description"`
	GoodsType        string  `json:"goods_type,omitempty"`
	Weight           float64 `json:"weight,omitempty"`
	GoodsQuantity    int     `json:"goods_quantity,omitempty"`
	RequiredSpace    string  `json:"required_space,omitempty"`

	From    string `json:"from"`
	To      string `json:"to"`
	FromLoc Coord  `json:"from_loc"`
	ToLoc   Coord  `json:"to_loc"`

	Fare                float64    `json:"fare,omitempty"`
	SpecialInstructions string     `json:"special_instructions,omitempty"`
	DeliveryDate        *time.Time `json:"delivery_date,omitempty"`

	Status          Status     `json:"status"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	AcceptedAt      *time.Time `json:"accepted_at,omitempty"`
	PickedUpAt      *time.Time `json:"picked_up_at,omitempty"`
	DeliveredAt     *time.Time `json:"delivered_at,omitempty"`
}

// HistoryEntry is one append-only ledger row per status transition.
// Rows are written only by the lifecycle service and never mutated.
type HistoryEntry struct {
	ID        string    `json:"id"`
	RequestID string    `json:"request_id"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Notes     string    `json:"notes,omitempty"`
	ChangedBy string    `json:"changed_by,omitempty"`
}

// RequestSpec carries the caller-supplied fields for a new request.
type RequestSpec struct {
	RideID              string     `json:"ride_id,omitempty"`
	GoodsDescription    string     `json:"goods_description"`
	GoodsType           string     `json:"goods_type,omitempty"`
	Weight              float64    `json:"weight,omitempty"`
	GoodsQuantity       int        `json:"goods_quantity,omitempty"`
	RequiredSpace       string     `json:"required_space,omitempty"`
	From                string     `json:"from"`
	To                  string     `json:"to"`
	Fare                float64    `json:"fare,omitempty"`
	SpecialInstructions string     `json:"special_instructions,omitempty"`
	DeliveryDate        *time.Time `json:"delivery_date,omitempty"`
}

// RequestPatch holds the sender-mutable fields; only meaningful while PENDING.
type RequestPatch struct {
	GoodsDescription    string  `json:"goods_description"`
	Weight              float64 `json:"weight"`
	GoodsQuantity       int     `json:"goods_quantity"`
	From                string  `json:"from"`
	To                  string  `json:"to"`
	SpecialInstructions string  `json:"special_instructions"`
}

// Location is a cache-resident tracking sample. Best-effort, absence means
// "no tracking data", not an error.
type Location struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusSnapshot is the lifecycle-timestamp view of a request.
type StatusSnapshot struct {
	RequestID   string     `json:"request_id"`
	Status      Status     `json:"status"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	PickedUpAt  *time.Time `json:"picked_up_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// Summary counts a sender's requests per status.
type Summary struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Accepted  int `json:"accepted"`
	InTransit int `json:"in_transit"`
	Delivered int `json:"delivered"`
	Cancelled int `json:"cancelled"`
}

// TransactionReport aggregates delivered requests over a date range.
type TransactionReport struct {
	FromDate          string  `json:"from_date"`
	ToDate            string  `json:"to_date"`
	TotalTransactions int     `json:"total_transactions"`
	TotalAmount       float64 `json:"total_amount"`
	CommissionEarned  float64 `json:"commission_earned"`
}

// User is the identity-service view of an account.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
}

// Ride is the ride-inventory view of a trip a request can attach to.
type Ride struct {
	ID        string `json:"id"`
	CarrierID string `json:"ride_user_id"`
	From      string `json:"from"`
	To        string `json:"to"`
}
