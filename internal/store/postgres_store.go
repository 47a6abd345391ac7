package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/goods-transport/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

const requestColumns = `id, sender_id, carrier_id, ride_id, goods_description, goods_type, weight,
goods_quantity, required_space, from_location, to_location, from_lat, from_lon, to_lat, to_lon,
fare, special_instructions, delivery_date, status, rejection_reason,
created_at, updated_at, accepted_at, picked_up_at, delivered_at`

func (p *PostgresStore) SaveRequest(ctx context.Context, r *models.Request) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO requests(`+requestColumns+`)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)`,
		r.ID, r.SenderID, nullStr(r.CarrierID), nullStr(r.RideID), r.GoodsDescription, r.GoodsType,
		r.Weight, r.GoodsQuantity, r.RequiredSpace, r.From, r.To,
		r.FromLoc.Lat, r.FromLoc.Lon, r.ToLoc.Lat, r.ToLoc.Lon,
		r.Fare, r.SpecialInstructions, r.DeliveryDate, string(r.Status), nullStr(r.RejectionReason),
		r.CreatedAt, r.UpdatedAt, r.AcceptedAt, r.PickedUpAt, r.DeliveredAt)
	return err
}

func (p *PostgresStore) UpdateRequest(ctx context.Context, r *models.Request) error {
	_, err := p.db.ExecContext(ctx, `UPDATE requests SET carrier_id=$1, goods_description=$2, weight=$3,
goods_quantity=$4, from_location=$5, to_location=$6, special_instructions=$7, status=$8,
rejection_reason=$9, updated_at=$10, accepted_at=$11, picked_up_at=$12, delivered_at=$13 WHERE id=$14`,
		nullStr(r.CarrierID), r.GoodsDescription, r.Weight, r.GoodsQuantity, r.From, r.To,
		r.SpecialInstructions, string(r.Status), nullStr(r.RejectionReason),
		r.UpdatedAt, r.AcceptedAt, r.PickedUpAt, r.DeliveredAt, r.ID)
	return err
}

func (p *PostgresStore) GetRequest(ctx context.Context, id string) (*models.Request, bool, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM requests WHERE id=$1`, id)
	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return r, true, nil
}

func (p *PostgresStore) AppendHistory(ctx context.Context, h models.HistoryEntry) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO request_history(id, request_id, status, status_timestamp, notes, changed_by) VALUES($1,$2,$3,$4,$5,$6)`,
		h.ID, h.RequestID, string(h.Status), h.Timestamp, h.Notes, nullStr(h.ChangedBy))
	return err
}

func (p *PostgresStore) HistoryFor(ctx context.Context, requestID string) ([]models.HistoryEntry, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, request_id, status, status_timestamp, notes, changed_by FROM request_history
WHERE request_id=$1 ORDER BY status_timestamp`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.HistoryEntry
	for rows.Next() {
		var h models.HistoryEntry
		var status string
		var changedBy sql.NullString
		if err := rows.Scan(&h.ID, &h.RequestID, &status, &h.Timestamp, &h.Notes, &changedBy); err != nil {
			return nil, err
		}
		h.Status = models.Status(status)
		h.ChangedBy = changedBy.String
		out = append(out, h)
	}
	return out, rows.Err()
}

func (p *PostgresStore) ListBySender(ctx context.Context, senderID string, status models.Status) ([]*models.Request, error) {
	if status == "" {
		return p.queryRequests(ctx, `SELECT `+requestColumns+` FROM requests WHERE sender_id=$1 ORDER BY created_at`, senderID)
	}
	return p.queryRequests(ctx, `SELECT `+requestColumns+` FROM requests WHERE sender_id=$1 AND status=$2 ORDER BY created_at`, senderID, string(status))
}

func (p *PostgresStore) ListByCarrier(ctx context.Context, carrierID string, status models.Status) ([]*models.Request, error) {
	if status == "" {
		return p.queryRequests(ctx, `SELECT `+requestColumns+` FROM requests WHERE carrier_id=$1 ORDER BY created_at`, carrierID)
	}
	return p.queryRequests(ctx, `SELECT `+requestColumns+` FROM requests WHERE carrier_id=$1 AND status=$2 ORDER BY created_at`, carrierID, string(status))
}

func (p *PostgresStore) ListStalePending(ctx context.Context, olderThan, youngerThan time.Time) ([]*models.Request, error) {
	return p.queryRequests(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE status=$1 AND created_at < $2 AND created_at > $3 ORDER BY created_at`,
		string(models.StatusPending), olderThan, youngerThan)
}

func (p *PostgresStore) DeliveredBetween(ctx context.Context, from, to time.Time) ([]*models.Request, error) {
	return p.queryRequests(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE status=$1 AND delivered_at >= $2 AND delivered_at < $3 ORDER BY delivered_at`,
		string(models.StatusDelivered), from, to)
}

func (p *PostgresStore) queryRequests(ctx context.Context, q string, args ...any) ([]*models.Request, error) {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.Request, error) {
	var r models.Request
	var carrierID, rideID, rejection sql.NullString
	var status string
	err := row.Scan(&r.ID, &r.SenderID, &carrierID, &rideID, &r.GoodsDescription, &r.GoodsType,
		&r.Weight, &r.GoodsQuantity, &r.RequiredSpace, &r.From, &r.To,
		&r.FromLoc.Lat, &r.FromLoc.Lon, &r.ToLoc.Lat, &r.ToLoc.Lon,
		&r.Fare, &r.SpecialInstructions, &r.DeliveryDate, &status, &rejection,
		&r.CreatedAt, &r.UpdatedAt, &r.AcceptedAt, &r.PickedUpAt, &r.DeliveredAt)
	if err != nil {
		return nil, err
	}
	r.CarrierID = carrierID.String
	r.RideID = rideID.String
	r.RejectionReason = rejection.String
	r.Status = models.Status(status)
	return &r, nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
