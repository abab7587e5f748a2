package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/desmedtandreas/companions-app-backend/pkg/vat"
)

// Company is a registered enterprise. Identity is the normalized enterprise
// number; rows come from the KBO open-data loader, never from filing import,
// which only links to companies it already knows.
type Company struct {
	ID               uuid.UUID
	EnterpriseNumber vat.Number
	Name             string
	StatusCode       string
	LegalFormCode    string
	StartDate        *time.Time
	LastSyncedAt     *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Address is one typed address of a company; the KBO open data carries at
// most one row per (company, type).
type Address struct {
	ID          uuid.UUID
	CompanyID   uuid.UUID
	Type        string
	Street      string
	HouseNumber string
	PostalCode  string
	City        string
	Country     string
}

// CodeLabel maps a registry code to its human-readable label, per category
// (legal forms, mandate functions, juridical situations).
type CodeLabel struct {
	Category string
	Code     string
	Name     string
}
