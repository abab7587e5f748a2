// Package nbb is a thin client for the NBB Central Balance Sheet Office.
// It knows the two read operations the reconciliation engine needs and how
// to classify their failures; retry and backoff live with the caller's
// execution context, never here.
package nbb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/desmedtandreas/companions-app-backend/internal/platform/config"
	"github.com/desmedtandreas/companions-app-backend/pkg/vat"
)

// ErrNotFound reports that the company or the deposit does not exist
// upstream. Callers decide whether that means "empty" (reference listing) or
// "skip this filing" (detail fetch).
var ErrNotFound = errors.New("nbb: not found")

// UpstreamError covers every other non-2xx response and transport failure.
// StatusCode is 0 when the request never reached the service.
type UpstreamError struct {
	Op         string
	StatusCode int
	RequestID  string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("nbb %s (request %s): %v", e.Op, e.RequestID, e.Err)
	}
	return fmt.Sprintf("nbb %s (request %s): status %d", e.Op, e.RequestID, e.StatusCode)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Reference points at one deposited filing.
type Reference struct {
	Number    string
	PeriodEnd *time.Time
}

// Rubric is a raw line item as deposited; Period distinguishes the current
// exercise ("N") from the restated prior one.
type Rubric struct {
	Code   string
	Value  decimal.Decimal
	Period string
}

// Representative is a natural person named on an administrator mandate.
type Representative struct {
	FirstName string
	LastName  string
}

// LegalAdministrator is a legal entity holding a mandate, acting through its
// representatives.
type LegalAdministrator struct {
	CompanyIdentifier string
	Representatives   []Representative
	MandateCode       string
}

// NaturalAdministrator is a natural person holding a mandate directly.
type NaturalAdministrator struct {
	Person      Representative
	MandateCode string
}

// ParticipationEntry is a raw shareholding interest; Percentage and
// StockCount are nil when the deposit omits them.
type ParticipationEntry struct {
	CompanyIdentifier string
	Nature            string
	Percentage        *decimal.Decimal
	StockCount        *int64
}

// Filing is the decoded accounting dataset of one reference.
type Filing struct {
	Rubrics               []Rubric
	LegalAdministrators   []LegalAdministrator
	NaturalAdministrators []NaturalAdministrator
	Participations        []ParticipationEntry
}

// Client performs single-shot, stateless calls. Every call carries a fresh
// X-Request-Id so upstream support can correlate.
type Client struct {
	baseURL   string
	key       string
	userAgent string
	http      *http.Client
	tracer    trace.Tracer
}

func NewClient(cfg config.NBBConfig) *Client {
	return &Client{
		baseURL:   cfg.BaseURL,
		key:       cfg.SubscriptionKey,
		userAgent: cfg.UserAgent,
		http:      &http.Client{Timeout: 30 * time.Second},
		tracer:    otel.Tracer("nbb"),
	}
}

// ListReferences returns every known filing reference for the company.
// A company unknown to the CBSO yields ErrNotFound.
func (c *Client) ListReferences(ctx context.Context, number vat.Number) ([]Reference, error) {
	var payload []referencePayload
	url := fmt.Sprintf("%s/legalEntity/%s/references", c.baseURL, number.String())
	if err := c.get(ctx, "ListReferences", url, "application/json", &payload); err != nil {
		return nil, err
	}

	out := make([]Reference, 0, len(payload))
	for _, p := range payload {
		// The listing occasionally carries entries without a reference
		// number; those cannot be fetched or keyed, so they are dropped.
		if p.ReferenceNumber == "" {
			continue
		}
		ref := Reference{Number: p.ReferenceNumber}
		if p.ExerciseDates.EndDate != "" {
			if end, err := time.Parse("2006-01-02", p.ExerciseDates.EndDate); err == nil {
				ref.PeriodEnd = &end
			}
		}
		out = append(out, ref)
	}
	return out, nil
}

// FetchFiling returns the full accounting dataset of one reference.
func (c *Client) FetchFiling(ctx context.Context, reference string) (*Filing, error) {
	var payload filingPayload
	url := fmt.Sprintf("%s/deposit/%s/accountingData", c.baseURL, reference)
	if err := c.get(ctx, "FetchFiling", url, "application/x.jsonxbrl", &payload); err != nil {
		return nil, err
	}
	return payload.toFiling(), nil
}

func (c *Client) get(ctx context.Context, op, url, accept string, out any) error {
	requestID := uuid.NewString()
	ctx, span := c.tracer.Start(ctx, "nbb."+op, trace.WithAttributes(
		attribute.String("nbb.request_id", requestID),
		attribute.String("http.url", url),
	))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("NBB-CBSO-Subscription-Key", c.key)
	req.Header.Set("X-Request-Id", requestID)
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		upErr := &UpstreamError{Op: op, RequestID: requestID, Err: err}
		span.SetStatus(codes.Error, upErr.Error())
		return upErr
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, op)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		upErr := &UpstreamError{Op: op, StatusCode: resp.StatusCode, RequestID: requestID}
		span.SetStatus(codes.Error, upErr.Error())
		return upErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		upErr := &UpstreamError{Op: op, StatusCode: resp.StatusCode, RequestID: requestID, Err: err}
		span.SetStatus(codes.Error, upErr.Error())
		return upErr
	}
	return nil
}
