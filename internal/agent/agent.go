// Package agent reads and updates delivery agent profiles: approval,
// availability, last reported position and the completed delivery count.
package agent

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MikeMC777/entregas-ecom/internal/store"
)

const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

var ErrNotFound = errors.New("delivery agent not found")

type Agent struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Phone               string     `json:"phone"`
	ApprovalStatus      string     `json:"approvalStatus"`
	VehicleType         string     `json:"vehicleType"`
	IsAvailable         bool       `json:"isAvailable"`
	CurrentLat          *float64   `json:"currentLat,omitempty"`
	CurrentLng          *float64   `json:"currentLng,omitempty"`
	LocationUpdatedAt   *time.Time `json:"locationUpdatedAt,omitempty"`
	CompletedDeliveries int        `json:"completedDeliveries"`
}

func (a *Agent) Approved() bool { return a.ApprovalStatus == ApprovalApproved }

type Repository interface {
	Get(ctx context.Context, id string) (*Agent, error)
	UpdateLocation(ctx context.Context, id string, lat, lng float64, at time.Time) error
	SetAvailability(ctx context.Context, id string, available bool) error
	RecordCompletion(ctx context.Context, q store.Querier, id string) error
}

type PGRepo struct{ db store.DB }

func NewPGRepo(db store.DB) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) Get(ctx context.Context, id string) (*Agent, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var a Agent
	err := r.db.QueryRow(ctx, `
		SELECT id, name, phone, approval_status, vehicle_type, is_available,
		       current_lat, current_lng, location_updated_at, completed_deliveries
		FROM delivery_agents
		WHERE id = $1
	`, id).Scan(&a.ID, &a.Name, &a.Phone, &a.ApprovalStatus, &a.VehicleType, &a.IsAvailable,
		&a.CurrentLat, &a.CurrentLng, &a.LocationUpdatedAt, &a.CompletedDeliveries)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *PGRepo) UpdateLocation(ctx context.Context, id string, lat, lng float64, at time.Time) error {
	return r.update(ctx, `
		UPDATE delivery_agents
		SET current_lat = $2, current_lng = $3, location_updated_at = $4
		WHERE id = $1
	`, id, lat, lng, at)
}

func (r *PGRepo) SetAvailability(ctx context.Context, id string, available bool) error {
	return r.update(ctx, `UPDATE delivery_agents SET is_available = $2 WHERE id = $1`, id, available)
}

// RecordCompletion runs inside the completion transaction.
func (r *PGRepo) RecordCompletion(ctx context.Context, q store.Querier, id string) error {
	tag, err := q.Exec(ctx, `
		UPDATE delivery_agents
		SET completed_deliveries = completed_deliveries + 1
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) update(ctx context.Context, sql string, args ...interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
