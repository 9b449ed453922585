package lookupd

import (
	"context"
	"time"
)

// SagaOutcome classifies how a dual write finished.
type SagaOutcome int

const (
	// SagaSuccess means both stores accepted the write.
	SagaSuccess SagaOutcome = iota
	// SagaCompensatedFailure means the primary write failed and the index
	// was rolled back to its prior state.
	SagaCompensatedFailure
	// SagaUncompensatedFailure means the primary write failed and the
	// index rollback also failed, leaving the stores divergent until the
	// next reindex.
	SagaUncompensatedFailure
)

func (o SagaOutcome) String() string {
	switch o {
	case SagaSuccess:
		return "success"
	case SagaCompensatedFailure:
		return "compensated_failure"
	case SagaUncompensatedFailure:
		return "uncompensated_failure"
	default:
		return "unknown"
	}
}

// DualWriteCoordinator applies every mutation to both stores. The index is
// written first so a primary failure can be compensated by restoring the
// index; the reverse order would leave the source of truth ahead of its
// mirror with no record of the gap.
//
// Every committed saga publishes a success event on the matching
// notification topic. Failures surface as ErrTransactionFailed and are
// reported on the error topic tagged with the API action, e.g.
// "country.create". Soft and hard deletes both report as
// "<resource>.delete".
type DualWriteCoordinator struct {
	store   *PrimaryStore
	index   SearchIndex
	events  EventPublisher
	logger  Logger
	metrics Metrics
}

func NewDualWriteCoordinator(store *PrimaryStore, index SearchIndex, events EventPublisher, logger Logger, metrics Metrics) *DualWriteCoordinator {
	if events == nil {
		events = &NoOpEventPublisher{}
	}
	if logger == nil {
		logger = &NoOpLogger{}
	}
	if metrics == nil {
		metrics = &NoOpMetrics{}
	}
	return &DualWriteCoordinator{
		store:   store,
		index:   index,
		events:  events,
		logger:  logger,
		metrics: metrics,
	}
}

// Create writes a brand-new record to the index, then the primary. A primary
// failure is compensated by deleting the fresh index document. Success
// publishes the full sanitized record.
func (c *DualWriteCoordinator) Create(ctx context.Context, desc EntityDescriptor, rec Record) (SagaOutcome, error) {
	const op = "create"
	start := time.Now()

	if err := c.index.Index(ctx, desc.Index, rec); err != nil {
		return c.fail(ctx, desc, op, SagaCompensatedFailure, err, nil)
	}
	if err := c.store.Put(ctx, desc.Table, rec); err != nil {
		outcome := SagaCompensatedFailure
		rbErr := c.index.Remove(ctx, desc.Index, rec.ID())
		if rbErr != nil {
			outcome = SagaUncompensatedFailure
			c.logger.Error("index rollback failed after create",
				"resource", desc.Resource, "id", rec.ID(), "error", rbErr)
		}
		return c.fail(ctx, desc, op, outcome, err, rbErr)
	}

	payload := map[string]interface{}{"resource": desc.Resource}
	for k, v := range rec.Sanitized() {
		payload[k] = v
	}
	c.succeed(ctx, desc, op, start, CreateTopic, payload)
	return SagaSuccess, nil
}

// Update writes the new record state to the index, then the primary. The
// prior record snapshot is used to restore the index if the primary write
// fails. Success publishes the fields whose values changed.
func (c *DualWriteCoordinator) Update(ctx context.Context, desc EntityDescriptor, prior, next Record) (SagaOutcome, error) {
	return c.replace(ctx, desc, "update", prior, next)
}

// Remove soft-deletes a record through the same snapshot-restore saga as
// Update; next is the record with the soft-delete flag set.
func (c *DualWriteCoordinator) Remove(ctx context.Context, desc EntityDescriptor, prior, next Record) (SagaOutcome, error) {
	return c.replace(ctx, desc, "remove", prior, next)
}

func (c *DualWriteCoordinator) replace(ctx context.Context, desc EntityDescriptor, op string, prior, next Record) (SagaOutcome, error) {
	start := time.Now()

	if err := c.index.Index(ctx, desc.Index, next); err != nil {
		return c.fail(ctx, desc, op, SagaCompensatedFailure, err, nil)
	}
	if err := c.store.Put(ctx, desc.Table, next); err != nil {
		outcome := SagaCompensatedFailure
		rbErr := c.index.Index(ctx, desc.Index, prior)
		if rbErr != nil {
			outcome = SagaUncompensatedFailure
			c.logger.Error("index restore failed",
				"resource", desc.Resource, "id", next.ID(), "operation", op, "error", rbErr)
		}
		return c.fail(ctx, desc, op, outcome, err, rbErr)
	}

	if op == "remove" {
		c.succeed(ctx, desc, op, start, DeleteTopic, map[string]interface{}{
			"resource":     desc.Resource,
			"id":           next.ID(),
			"isSoftDelete": true,
		})
	} else {
		payload := map[string]interface{}{
			"resource": desc.Resource,
			"id":       next.ID(),
		}
		for _, f := range changedFields(desc, prior, next) {
			payload[f] = next[f]
		}
		c.succeed(ctx, desc, op, start, UpdateTopic, payload)
	}
	return SagaSuccess, nil
}

// Destroy permanently deletes the record from the index, then the primary.
// A primary failure restores the index document from the prior snapshot.
func (c *DualWriteCoordinator) Destroy(ctx context.Context, desc EntityDescriptor, prior Record) (SagaOutcome, error) {
	const op = "remove"
	start := time.Now()
	id := prior.ID()

	if err := c.index.Remove(ctx, desc.Index, id); err != nil {
		return c.fail(ctx, desc, op, SagaCompensatedFailure, err, nil)
	}
	if err := c.store.Delete(ctx, desc.Table, id); err != nil {
		outcome := SagaCompensatedFailure
		rbErr := c.index.Index(ctx, desc.Index, prior)
		if rbErr != nil {
			outcome = SagaUncompensatedFailure
			c.logger.Error("index restore failed after destroy",
				"resource", desc.Resource, "id", id, "error", rbErr)
		}
		return c.fail(ctx, desc, op, outcome, err, rbErr)
	}

	c.succeed(ctx, desc, op, start, DeleteTopic, map[string]interface{}{
		"resource":     desc.Resource,
		"id":           id,
		"isSoftDelete": false,
	})
	return SagaSuccess, nil
}

// apiAction is the operation name used on the event bus. Internally soft
// and hard delete run as "remove", but consumers see "<resource>.delete".
func apiAction(desc EntityDescriptor, op string) string {
	if op == "remove" {
		return desc.Resource + ".delete"
	}
	return desc.Resource + "." + op
}

// changedFields lists the business fields whose values differ between the
// two snapshots, in declaration order.
func changedFields(desc EntityDescriptor, prior, next Record) []string {
	var fields []string
	for _, f := range desc.BusinessFields() {
		pv, pok := prior[f]
		nv, nok := next[f]
		if pok != nok || pv != nv {
			fields = append(fields, f)
		}
	}
	return fields
}

func (c *DualWriteCoordinator) succeed(ctx context.Context, desc EntityDescriptor, op string, start time.Time, topic string, payload map[string]interface{}) {
	c.metrics.Increment(MetricSagaSuccess, "resource", desc.Resource, "operation", op)
	c.metrics.Timing(MetricSagaDuration, time.Since(start), "resource", desc.Resource, "operation", op)
	c.events.Publish(ctx, topic, payload)
}

func (c *DualWriteCoordinator) fail(ctx context.Context, desc EntityDescriptor, op string, outcome SagaOutcome, cause, rbErr error) (SagaOutcome, error) {
	action := apiAction(desc, op)
	switch outcome {
	case SagaUncompensatedFailure:
		c.metrics.Increment(MetricSagaUncompensated, "resource", desc.Resource, "operation", op)
	default:
		c.metrics.Increment(MetricSagaCompensated, "resource", desc.Resource, "operation", op)
	}
	c.logger.Error("dual write failed", "action", action, "outcome", outcome.String(), "error", cause)
	PublishError(ctx, c.events, action, cause)
	errCtx := map[string]interface{}{
		"action":  action,
		"outcome": outcome.String(),
		"cause":   cause.Error(),
	}
	if rbErr != nil {
		errCtx["rollbackCause"] = rbErr.Error()
	}
	return outcome, WithContext(WithMessage(ErrTransactionFailed, "Transaction failed"), errCtx)
}
