package roles

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	dbmodels "github.com/coachhubvn/coachhub-backend/pkg/db/models"
	"github.com/coachhubvn/coachhub-backend/pkg/enums"
	pkgerrors "github.com/coachhubvn/coachhub-backend/pkg/errors"
	"github.com/coachhubvn/coachhub-backend/pkg/logger"
	"github.com/coachhubvn/coachhub-backend/pkg/metrics"
	"github.com/coachhubvn/coachhub-backend/pkg/outbox"
	"github.com/coachhubvn/coachhub-backend/pkg/outbox/payloads"
)

const roleConsumerName = "role-worker"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type outcomeEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Consumer is the saga participant for role-assignment requests. Each request
// yields exactly one outcome event; the outbox row is unique per
// (event_type, aggregate) so duplicate deliveries resolve against the stored
// outcome instead of re-running the command.
type Consumer struct {
	db           txRunner
	repo         Repository
	svc          Service
	outbox       outcomeEmitter
	manager      idempotencyChecker
	subscription *pubsub.Subscriber
	logg         *logger.Logger
	metrics      *metrics.SagaMetrics
}

// ConsumerParams wires the role consumer dependencies. Subscription may be
// nil when the consumer is driven directly (tests, backfills).
type ConsumerParams struct {
	DB           txRunner
	Repo         Repository
	Service      Service
	Outbox       outcomeEmitter
	Idempotency  idempotencyChecker
	Subscription *pubsub.Subscriber
	Logger       *logger.Logger
	Metrics      *metrics.SagaMetrics
}

// NewConsumer validates the wiring and builds the saga participant.
func NewConsumer(params ConsumerParams) (*Consumer, error) {
	switch {
	case params.DB == nil:
		return nil, errors.New("tx runner is required")
	case params.Repo == nil:
		return nil, errors.New("role repository is required")
	case params.Service == nil:
		return nil, errors.New("role service is required")
	case params.Outbox == nil:
		return nil, errors.New("outbox service is required")
	case params.Idempotency == nil:
		return nil, errors.New("idempotency manager is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	}
	return &Consumer{
		db:           params.DB,
		repo:         params.Repo,
		svc:          params.Service,
		outbox:       params.Outbox,
		manager:      params.Idempotency,
		subscription: params.Subscription,
		logg:         params.Logger,
		metrics:      params.Metrics,
	}, nil
}

// Run processes role-assignment requests until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	if c.subscription == nil {
		return errors.New("role request subscription is required")
	}
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.Process(ctx, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// Process handles one delivery and reports whether it should be acked.
// Malformed payloads are acked after logging: redelivery cannot fix them and
// there is no correlation id to report a failure against.
func (c *Consumer) Process(ctx context.Context, data []byte) bool {
	event, eventID, err := decodeRequest(data)
	if err != nil {
		c.logg.Error(ctx, "undecodable role assignment request dropped", err)
		return true
	}

	logCtx := c.logg.WithFields(ctx, map[string]any{
		"correlation_id": event.CorrelationID.String(),
		"coach_id":       event.CoachID.String(),
		"requested_role": event.Role,
	})

	already, err := c.manager.CheckAndMarkProcessed(logCtx, roleConsumerName, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return false
	}
	if already {
		return c.replayOutcome(logCtx, event)
	}

	if err := c.execute(logCtx, event); err != nil {
		// Infra errors release the idempotency claim so redelivery can retry.
		// A persistently failing message stops looping when the subscription's
		// dead-letter policy moves it aside.
		_ = c.manager.Delete(logCtx, roleConsumerName, eventID)
		c.logg.Error(logCtx, "role assignment processing failed", err)
		return false
	}
	return true
}

// execute runs the saga step: record the saga, run the local command, and
// emit the outcome event, all in one transaction so the outcome and the state
// change commit together.
func (c *Consumer) execute(ctx context.Context, event payloads.RoleAssignmentRequestedEvent) error {
	// Unparseable role strings historically promote to coach; the outcome
	// event still echoes the raw string the requester sent.
	role := enums.ParseUserRoleOrCoach(event.Role)

	return c.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := c.repo.WithTx(tx)

		if err := repo.CreateSagaIfAbsent(ctx, &dbmodels.RoleAssignmentSaga{
			CorrelationID: event.CorrelationID,
			UserID:        event.CoachID,
			RequestedRole: event.Role,
			State:         enums.SagaStateRequested,
		}); err != nil {
			return fmt.Errorf("record saga: %w", err)
		}
		saga, err := repo.GetSaga(ctx, event.CorrelationID)
		if err != nil {
			return fmt.Errorf("load saga: %w", err)
		}
		if saga != nil && saga.State.IsTerminal() {
			return c.emitOutcome(ctx, tx, event, saga.State, saga.Reason)
		}

		if assignErr := c.svc.Assign(ctx, tx, event.CoachID, role); assignErr != nil {
			kinded := pkgerrors.As(assignErr)
			if kinded == nil || !isBusinessFailure(kinded.Code()) {
				return assignErr
			}
			reason := kinded.Message()
			if err := repo.UpdateSagaState(ctx, event.CorrelationID, enums.SagaStateFailed, &reason); err != nil {
				return fmt.Errorf("mark saga failed: %w", err)
			}
			return c.emitOutcome(ctx, tx, event, enums.SagaStateFailed, &reason)
		}

		if err := repo.UpdateSagaState(ctx, event.CorrelationID, enums.SagaStateAssigned, nil); err != nil {
			return fmt.Errorf("mark saga assigned: %w", err)
		}
		return c.emitOutcome(ctx, tx, event, enums.SagaStateAssigned, nil)
	})
}

// replayOutcome resolves a duplicate delivery against the stored outcome. The
// outbox publisher delivers that row at least once, so confirming it exists is
// enough; inserting a second row would trip the outbox unique index.
func (c *Consumer) replayOutcome(ctx context.Context, event payloads.RoleAssignmentRequestedEvent) bool {
	c.metrics.IncDuplicate()

	saga, err := c.repo.GetSaga(ctx, event.CorrelationID)
	if err != nil {
		c.logg.Error(ctx, "load saga for duplicate delivery failed", err)
		return false
	}
	if saga == nil || !saga.State.IsTerminal() {
		// The first delivery is still in flight; its transaction will emit
		// the outcome.
		c.logg.Info(ctx, "duplicate delivery before saga completion ignored")
		return true
	}

	err = c.db.WithTx(ctx, func(tx *gorm.DB) error {
		return c.emitOutcome(ctx, tx, event, saga.State, saga.Reason)
	})
	if err != nil {
		c.logg.Error(ctx, "re-emit outcome for duplicate delivery failed", err)
		return false
	}
	c.logg.Info(ctx, "duplicate delivery re-emitted stored outcome")
	return true
}

func (c *Consumer) emitOutcome(ctx context.Context, tx *gorm.DB, event payloads.RoleAssignmentRequestedEvent, state enums.SagaState, reason *string) error {
	if state == enums.SagaStateAssigned {
		c.metrics.IncOutcome(enums.SagaStateAssigned.String())
		return c.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRoleAssigned,
			AggregateType: enums.AggregateRoleAssignment,
			AggregateID:   event.CorrelationID,
			Data: payloads.RoleAssignedEvent{
				CorrelationID: event.CorrelationID,
				CoachID:       event.CoachID,
				Role:          event.Role,
			},
			Version: 1,
		})
	}

	failureReason := "role assignment failed"
	if reason != nil && *reason != "" {
		failureReason = *reason
	}
	c.metrics.IncOutcome(enums.SagaStateFailed.String())
	return c.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventRoleAssignFailed,
		AggregateType: enums.AggregateRoleAssignment,
		AggregateID:   event.CorrelationID,
		Data: payloads.RoleAssignFailedEvent{
			CorrelationID: event.CorrelationID,
			CoachID:       event.CoachID,
			Role:          event.Role,
			Reason:        failureReason,
		},
		Version: 1,
	})
}

// decodeRequest accepts either an enveloped payload or the bare event, since
// the requesting service may publish without the envelope wrapper.
func decodeRequest(data []byte) (payloads.RoleAssignmentRequestedEvent, uuid.UUID, error) {
	var event payloads.RoleAssignmentRequestedEvent

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err == nil && len(bytes.TrimSpace(envelope.Data)) > 0 {
		if err := json.Unmarshal(envelope.Data, &event); err != nil {
			return event, uuid.Nil, fmt.Errorf("decode enveloped request: %w", err)
		}
		if event.CorrelationID == uuid.Nil || event.CoachID == uuid.Nil {
			return event, uuid.Nil, errors.New("request missing correlation or coach id")
		}
		if eventID, err := uuid.Parse(envelope.EventID); err == nil {
			return event, eventID, nil
		}
		return event, event.CorrelationID, nil
	}

	if err := json.Unmarshal(data, &event); err != nil {
		return event, uuid.Nil, fmt.Errorf("decode request: %w", err)
	}
	if event.CorrelationID == uuid.Nil || event.CoachID == uuid.Nil {
		return event, uuid.Nil, errors.New("request missing correlation or coach id")
	}
	return event, event.CorrelationID, nil
}

func isBusinessFailure(code pkgerrors.Code) bool {
	switch code {
	case pkgerrors.CodeValidation, pkgerrors.CodeNotFound, pkgerrors.CodeConflict, pkgerrors.CodeStateConflict:
		return true
	default:
		return false
	}
}
