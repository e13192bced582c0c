// Package mongo provides the MongoDB implementation of the audit trail
// query store. The trail is fed from the transition outbox and serves full
// history reconstruction independent of the cached status fields.
package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/adspend-finance-core/internal/domain/audit"
)

const (
	// AuditTrailCollectionName is the name of the audit trail collection
	AuditTrailCollectionName = "audit_trail"
)

// AuditTrailRepository implements audit.TrailRepository for MongoDB
type AuditTrailRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewAuditTrailRepository creates a new MongoDB audit trail repository
func NewAuditTrailRepository(logger *slog.Logger, db *mongo.Database) audit.TrailRepository {
	return &AuditTrailRepository{
		db:     db,
		logger: logger,
	}
}

// Create mirrors a transition log entry into the trail. The (entity, log id)
// pair is checked first so outbox redeliveries stay idempotent.
func (r *AuditTrailRepository) Create(ctx context.Context, entry *audit.Entry) error {
	collection := r.db.Collection(AuditTrailCollectionName)

	filter := bson.M{
		"entity_type": entry.EntityType,
		"entity_id":   entry.EntityID,
		"id":          entry.ID,
	}
	count, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		r.logger.Error("Failed to check for existing audit trail entry",
			"entity_id", entry.EntityID.String(),
			"error", err)
		return fmt.Errorf("failed to check for existing audit trail entry: %w", err)
	}
	if count > 0 {
		r.logger.Debug("Audit trail entry already mirrored",
			"entity_type", string(entry.EntityType),
			"entity_id", entry.EntityID.String(),
			"log_id", entry.ID)
		return nil
	}

	if _, err := collection.InsertOne(ctx, entry); err != nil {
		r.logger.Error("Failed to create audit trail entry",
			"entity_id", entry.EntityID.String(),
			"error", err)
		return fmt.Errorf("failed to create audit trail entry: %w", err)
	}

	return nil
}

// ListByEntity retrieves an entity's full transition history, oldest first
func (r *AuditTrailRepository) ListByEntity(ctx context.Context, entityType audit.EntityType, entityID uuid.UUID) ([]*audit.Entry, error) {
	collection := r.db.Collection(AuditTrailCollectionName)

	filter := bson.M{
		"entity_type": entityType,
		"entity_id":   entityID,
	}
	opts := options.Find().SetSort(bson.M{"occurred_at": 1})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to list audit trail entries",
			"entity_type", string(entityType),
			"entity_id", entityID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to list audit trail entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*audit.Entry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode audit trail entries: %w", err)
	}

	return entries, nil
}
