package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Status is the lifecycle state of a garbage report
type Status string

// Report statuses
const (
	StatusPending   Status = "Pending"
	StatusVerified  Status = "Verified"
	StatusAssigned  Status = "Assigned"
	StatusCleaned   Status = "Cleaned"
	StatusApproved  Status = "Approved"
	StatusCompleted Status = "Completed"
	StatusRejected  Status = "Rejected"
)

// Statuses lists every status in lifecycle order, Rejected last
var Statuses = []Status{
	StatusPending,
	StatusVerified,
	StatusAssigned,
	StatusCleaned,
	StatusApproved,
	StatusCompleted,
	StatusRejected,
}

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// HasCleaner reports whether a report in this status must carry an assigned cleaner
func (s Status) HasCleaner() bool {
	switch s {
	case StatusAssigned, StatusCleaned, StatusApproved, StatusCompleted:
		return true
	default:
		return false
	}
}

// HasAfterMedia reports whether a report in this status must carry after-cleaning media
func (s Status) HasAfterMedia() bool {
	switch s {
	case StatusCleaned, StatusApproved, StatusCompleted:
		return true
	default:
		return false
	}
}

// Location is a WGS84 coordinate pair
type Location struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lng float64 `bson:"lng" json:"lng"`
}

// HistoryEntry is one append-only audit record of a status change
type HistoryEntry struct {
	Status    Status    `bson:"status" json:"status"`
	ActorID   string    `bson:"actorId" json:"actorId"`
	ActorRole Role      `bson:"actorRole" json:"actorRole"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	Note      string    `bson:"note,omitempty" json:"note,omitempty"`
}

// Report holds the structure for the reports collection in mongo
type Report struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ReporterID        string             `bson:"reporterId" json:"reporterId"`
	Description       string             `bson:"description" json:"description"`
	Location          Location           `bson:"location" json:"location"`
	BeforeMediaRef    string             `bson:"beforeMediaRef" json:"beforeMediaRef"`
	AfterMediaRef     string             `bson:"afterMediaRef,omitempty" json:"afterMediaRef,omitempty"`
	Status            Status             `bson:"status" json:"status"`
	AssignedCleanerID string             `bson:"assignedCleanerId,omitempty" json:"assignedCleanerId,omitempty"`
	AssignedAt        *time.Time         `bson:"assignedAt,omitempty" json:"assignedAt,omitempty"`
	RejectionReason   string             `bson:"rejectionReason,omitempty" json:"rejectionReason,omitempty"`
	History           []HistoryEntry     `bson:"history" json:"history"`
	Version           int64              `bson:"version" json:"version"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Clone returns a copy of the report whose history can be appended to without
// touching the original
func (r Report) Clone() Report {
	c := r
	c.History = make([]HistoryEntry, len(r.History), len(r.History)+1)
	copy(c.History, r.History)
	return c
}

// NewReport is the citizen supplied payload for create_report. Lat and Lng
// are pointers so a missing coordinate is told apart from 0.
type NewReport struct {
	Description    string   `json:"description" validate:"required,min=3,max=500"`
	Lat            *float64 `json:"lat" validate:"required,latitude"`
	Lng            *float64 `json:"lng" validate:"required,longitude"`
	BeforeMediaRef string   `json:"beforeMediaRef" validate:"required,max=500"`
}

// Normalize trims surrounding whitespace before validation
func (n *NewReport) Normalize() {
	n.Description = strings.TrimSpace(n.Description)
	n.BeforeMediaRef = strings.TrimSpace(n.BeforeMediaRef)
}
