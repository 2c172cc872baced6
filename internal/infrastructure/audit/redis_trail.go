// Package audit appends domain events to a Redis stream so operators can
// reconstruct who did what to which assets, in order.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dcasset/backend/internal/domain/asset"
	"github.com/dcasset/backend/internal/domain/batch"
	"github.com/dcasset/backend/internal/domain/shared"
	"github.com/dcasset/backend/internal/domain/workorder"
	"github.com/dcasset/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// operationNames maps event types to audit operation labels
var operationNames = map[string]string{
	asset.EventAssetCreated:           "ASSET_REGISTER",
	asset.EventAvailabilityChanged:    "ASSET_AVAILABILITY_CHANGE",
	asset.EventStageChanged:           "ASSET_STAGE_CHANGE",
	workorder.EventWorkOrderCreated:   "WORK_ORDER_CREATE",
	workorder.EventWorkOrderExecuted:  "WORK_ORDER_EXECUTE",
	workorder.EventWorkOrderCompleted: "WORK_ORDER_COMPLETE",
	workorder.EventWorkOrderCancelled: "WORK_ORDER_CANCEL",
	batch.EventBatchJobStarted:        "BATCH_IMPORT_START",
	batch.EventBatchJobSettled:        "BATCH_IMPORT_SETTLE",
}

// RedisAuditTrail implements shared.EventHandler by appending every domain
// event to a capped Redis stream via XADD.
type RedisAuditTrail struct {
	client    *redis.Client
	stream    string
	maxStream int64
	logger    *zap.Logger
}

// NewRedisAuditTrail creates an audit trail with its own Redis connection
func NewRedisAuditTrail(redisCfg *config.RedisConfig, auditCfg *config.AuditConfig, logger *zap.Logger) (*RedisAuditTrail, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisCfg.RedisAddr(),
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisAuditTrailWithClient(client, auditCfg, logger), nil
}

// NewRedisAuditTrailWithClient creates an audit trail over an existing client.
// Useful for testing or when sharing a client across components.
func NewRedisAuditTrailWithClient(client *redis.Client, auditCfg *config.AuditConfig, logger *zap.Logger) *RedisAuditTrail {
	return &RedisAuditTrail{
		client:    client,
		stream:    auditCfg.Stream,
		maxStream: auditCfg.MaxStream,
		logger:    logger,
	}
}

// Handle appends the event to the audit stream
func (t *RedisAuditTrail) Handle(ctx context.Context, event shared.DomainEvent) error {
	entry, err := BuildEntry(event)
	if err != nil {
		return err
	}

	if err := t.client.XAdd(ctx, &redis.XAddArgs{
		Stream: t.stream,
		MaxLen: t.maxStream,
		Approx: true,
		Values: entry,
	}).Err(); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	t.logger.Debug("audit entry appended",
		zap.String("event_type", event.EventType()),
		zap.String("aggregate_id", event.AggregateID().String()),
	)
	return nil
}

// EventTypes returns an empty slice: the trail records every event
func (t *RedisAuditTrail) EventTypes() []string {
	return nil
}

// Close closes the Redis client
func (t *RedisAuditTrail) Close() error {
	return t.client.Close()
}

// BuildEntry flattens a domain event into the field map stored in the
// stream. The full event is kept as a JSON payload alongside the indexed
// fields.
func BuildEntry(event shared.DomainEvent) (map[string]interface{}, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize event: %w", err)
	}

	operation := operationNames[event.EventType()]
	if operation == "" {
		operation = event.EventType()
	}

	return map[string]interface{}{
		"event_id":       event.EventID().String(),
		"event_type":     event.EventType(),
		"operation":      operation,
		"aggregate_id":   event.AggregateID().String(),
		"aggregate_type": event.AggregateType(),
		"occurred_at":    event.OccurredAt().UTC().Format(time.RFC3339Nano),
		"payload":        string(payload),
	}, nil
}

// Ensure RedisAuditTrail implements EventHandler
var _ shared.EventHandler = (*RedisAuditTrail)(nil)
