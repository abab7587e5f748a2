// Package worker consumes reconciliation jobs from Kafka. Delivery is
// at-least-once, so the handler is defensive: a distributed lease keeps two
// consumers off the same company and a guard drops jobs for companies that
// already carry accounts.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	companystore "github.com/desmedtandreas/companions-app-backend/internal/companies/store"
	"github.com/desmedtandreas/companions-app-backend/internal/financials/importer"
	"github.com/desmedtandreas/companions-app-backend/internal/financials/store"
	"github.com/desmedtandreas/companions-app-backend/internal/platform/kafka"
	"github.com/desmedtandreas/companions-app-backend/pkg/platform/sentinel"
	"github.com/desmedtandreas/companions-app-backend/pkg/vat"
)

// Job is the wire format on the import topic.
type Job struct {
	EnterpriseNumber string `json:"enterprise_number"`
}

// Runner is the slice of the importer the worker invokes.
type Runner interface {
	Run(ctx context.Context, raw string) (*importer.Result, error)
}

// Locker serializes runs per company across worker instances. Acquire
// returns false when someone else holds the lease.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string)
}

// NoopLocker grants every lease; used when Redis is not configured and a
// single worker instance runs.
type NoopLocker struct{}

func (NoopLocker) Acquire(context.Context, string, time.Duration) (bool, error) { return true, nil }
func (NoopLocker) Release(context.Context, string)                              {}

// Handler processes one job per message. Errors that would repeat on
// redelivery (bad payload, unknown company) are logged and committed away;
// only never-started work is left uncommitted.
type Handler struct {
	runner      Runner
	companies   companystore.CompanyStore
	accounts    store.AccountStore
	locker      Locker
	settleDelay time.Duration
	leaseTTL    time.Duration
	logger      *slog.Logger
}

func NewHandler(runner Runner, companies companystore.CompanyStore, accounts store.AccountStore, locker Locker, settleDelay, leaseTTL time.Duration, logger *slog.Logger) *Handler {
	if locker == nil {
		locker = NoopLocker{}
	}
	return &Handler{
		runner:      runner,
		companies:   companies,
		accounts:    accounts,
		locker:      locker,
		settleDelay: settleDelay,
		leaseTTL:    leaseTTL,
		logger:      logger,
	}
}

func (h *Handler) Handle(ctx context.Context, msg *kafka.Message) error {
	var job Job
	if err := json.Unmarshal(msg.Value, &job); err != nil {
		h.logger.ErrorContext(ctx, "dropping malformed job", slog.Any("error", err))
		return nil
	}
	number, err := vat.Parse(job.EnterpriseNumber)
	if err != nil {
		h.logger.ErrorContext(ctx, "dropping job with invalid number",
			slog.String("enterprise_number", job.EnterpriseNumber), slog.Any("error", err))
		return nil
	}

	// Let the enqueuing request's own writes land before the guard reads.
	if h.settleDelay > 0 {
		select {
		case <-time.After(h.settleDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	key := "reconcile:" + number.String()
	acquired, err := h.locker.Acquire(ctx, key, h.leaseTTL)
	if err != nil {
		return err
	}
	if !acquired {
		h.logger.InfoContext(ctx, "company already being reconciled, dropping job",
			slog.String("enterprise_number", number.String()))
		return nil
	}
	defer h.locker.Release(ctx, key)

	company, err := h.companies.FindByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			h.logger.WarnContext(ctx, "dropping job for unknown company",
				slog.String("enterprise_number", number.String()))
			return nil
		}
		return err
	}
	count, err := h.accounts.CountByCompany(ctx, company.ID)
	if err != nil {
		return err
	}
	if count > 0 {
		h.logger.InfoContext(ctx, "company already has annual accounts, dropping job",
			slog.String("enterprise_number", number.String()))
		return nil
	}

	if _, err := h.runner.Run(ctx, number.String()); err != nil {
		// Invalid input cannot succeed on redelivery; upstream trouble is
		// retried by the next enqueue, not by replaying this offset.
		h.logger.ErrorContext(ctx, "reconciliation failed",
			slog.String("enterprise_number", number.String()), slog.Any("error", err))
		return nil
	}
	return nil
}

// Enqueuer publishes import jobs keyed by enterprise number so all jobs for
// one company land on one partition.
type Enqueuer struct {
	publisher *kafka.Publisher
	topic     string
}

func NewEnqueuer(publisher *kafka.Publisher, topic string) *Enqueuer {
	return &Enqueuer{publisher: publisher, topic: topic}
}

func (e *Enqueuer) Enqueue(ctx context.Context, number vat.Number) error {
	payload, err := json.Marshal(Job{EnterpriseNumber: number.String()})
	if err != nil {
		return err
	}
	return e.publisher.Publish(ctx, e.topic, []byte(number.String()), payload)
}
