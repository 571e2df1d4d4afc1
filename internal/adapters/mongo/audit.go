package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/concert-reservations/internal/domain"
	"github.com/robertarktes/concert-reservations/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// AuditLogger writes the reservation lifecycle trail. Audit writes are
// best-effort and never fail the serving path.
type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID        uuid.UUID `bson:"_id"`
	Action    string    `bson:"action"`
	UserID    uuid.UUID `bson:"user_id"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditLogger) logEvent(ctx context.Context, action string, userID uuid.UUID, data map[string]interface{}) error {
	log := AuditLog{
		ID:        uuid.New(),
		Action:    action,
		UserID:    userID,
		Timestamp: time.Now(),
		Data:      bson.M(data),
	}
	_, err := a.coll.InsertOne(ctx, log)
	if err != nil {
		a.logger.Error("failed to insert audit log", err)
		return err
	}
	return nil
}

func (a *AuditLogger) ReservationHeld(ctx context.Context, res domain.Reservation) error {
	return a.logEvent(ctx, "reservation.held", res.UserID, map[string]interface{}{
		"reservation_id": res.ID,
		"seat_id":        res.SeatID,
		"expires_at":     res.ExpiresAt.Format(time.RFC3339),
	})
}

func (a *AuditLogger) ReservationExpired(ctx context.Context, res domain.Reservation) error {
	return a.logEvent(ctx, "reservation.expired", res.UserID, map[string]interface{}{
		"reservation_id": res.ID,
		"seat_id":        res.SeatID,
	})
}

func (a *AuditLogger) ReservationSettled(ctx context.Context, res domain.Reservation, price int64) error {
	return a.logEvent(ctx, "reservation.settled", res.UserID, map[string]interface{}{
		"reservation_id": res.ID,
		"seat_id":        res.SeatID,
		"price":          price,
	})
}
