// Package events emits reconciliation lifecycle events
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/samuelblakek/invoice-automation/pkg/kafka"
	"github.com/samuelblakek/invoice-automation/pkg/ledger"
	"github.com/samuelblakek/invoice-automation/pkg/models"
	"github.com/samuelblakek/invoice-automation/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter publishes reconciliation events to Kafka. Event emission is
// best effort; a broker outage never fails a reconcile or settlement.
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// InvoiceReconciled emits an invoice.reconciled event
func (e *Emitter) InvoiceReconciled(ctx context.Context, result *models.ReconciliationResult) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.InvoiceReconciled")
	defer span.End()

	data := map[string]any{
		"schema_version": SchemaVersion,
		"outcomes":       result.Outcomes,
	}
	if result.Match != nil && result.Match.Matched() {
		data["strategy"] = result.Match.Strategy
		data["score"] = result.Match.Score
		data["row"] = result.Match.Row.Ref
	}
	dataJSON, _ := json.Marshal(data)

	event := &kafka.InvoiceEvent{
		EventType:     "invoice.reconciled",
		ResultID:      result.ID,
		InvoiceNumber: result.Invoice.InvoiceNumber,
		Supplier:      result.Invoice.Supplier,
		Disposition:   string(result.Disposition),
		Data:          dataJSON,
	}

	if err := e.producer.PublishInvoiceEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit invoice.reconciled event")
	}
}

// SettlementApplied emits a settlement.applied event
func (e *Emitter) SettlementApplied(ctx context.Context, result *models.ReconciliationResult, s ledger.Settlement) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.SettlementApplied")
	defer span.End()

	data := map[string]any{
		"schema_version": SchemaVersion,
		"amount":         s.Amount,
		"date":           s.Date,
		"cost_code":      s.CostCode,
		"row":            result.Match.Row.Ref,
	}
	dataJSON, _ := json.Marshal(data)

	event := &kafka.InvoiceEvent{
		EventType:     "settlement.applied",
		ResultID:      result.ID,
		InvoiceNumber: result.Invoice.InvoiceNumber,
		Supplier:      result.Invoice.Supplier,
		Disposition:   string(result.Disposition),
		Data:          dataJSON,
	}

	if err := e.producer.PublishInvoiceEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit settlement.applied event")
	}
}
