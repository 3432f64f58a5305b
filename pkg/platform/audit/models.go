package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "amlstat/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance: submission
	// lifecycle transitions and changes to the organization registry.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers authentication outcomes and account changes.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity.
	CategoryOperations EventCategory = "operations"
)

// SubjectType names the kind of entity an event is about.
type SubjectType string

const (
	SubjectSubmission   SubjectType = "submission"
	SubjectOrganization SubjectType = "organization"
	SubjectUser         SubjectType = "user"
)

type AuditEvent string

const (
	// Submission lifecycle
	EventSubmissionCreated   AuditEvent = "submission_created"
	EventSubmissionUpdated   AuditEvent = "submission_updated"
	EventSubmissionSubmitted AuditEvent = "submission_submitted"
	EventSubmissionApproved  AuditEvent = "submission_approved"
	EventSubmissionRejected  AuditEvent = "submission_rejected"
	EventSubmissionDeleted   AuditEvent = "submission_deleted"

	// Organization registry
	EventOrganizationCreated     AuditEvent = "organization_created"
	EventOrganizationUpdated     AuditEvent = "organization_updated"
	EventOrganizationDeactivated AuditEvent = "organization_deactivated"
	EventOrganizationReactivated AuditEvent = "organization_reactivated"
	EventOrganizationDeleted     AuditEvent = "organization_deleted"

	// Accounts
	EventUserCreated     AuditEvent = "user_created"
	EventUserDeactivated AuditEvent = "user_deactivated"
	EventLoginSucceeded  AuditEvent = "login_succeeded"
	EventAuthFailed      AuditEvent = "auth_failed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventSubmissionCreated:   CategoryCompliance,
	EventSubmissionUpdated:   CategoryCompliance,
	EventSubmissionSubmitted: CategoryCompliance,
	EventSubmissionApproved:  CategoryCompliance,
	EventSubmissionRejected:  CategoryCompliance,
	EventSubmissionDeleted:   CategoryCompliance,

	EventOrganizationCreated:     CategoryCompliance,
	EventOrganizationDeleted:     CategoryCompliance,
	EventOrganizationDeactivated: CategoryCompliance,
	EventOrganizationReactivated: CategoryCompliance,
	EventOrganizationUpdated:     CategoryOperations,

	EventUserCreated:     CategorySecurity,
	EventUserDeactivated: CategorySecurity,
	EventAuthFailed:      CategorySecurity,
	EventLoginSucceeded:  CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Event is emitted from domain logic to capture key actions. It is
// transport-agnostic so the same value is stored, listed and relayed.
type Event struct {
	ID             id.AuditEventID   `json:"id"`
	Category       EventCategory     `json:"category"`
	Timestamp      time.Time         `json:"timestamp"`
	Action         AuditEvent        `json:"action"`
	SubjectType    SubjectType       `json:"subject_type"`
	SubjectID      string            `json:"subject_id"`
	OrganizationID id.OrganizationID `json:"organization_id,omitzero"`
	ActorID        id.UserID         `json:"actor_id,omitzero"`
	// Reason carries rejection reasons, approval comments or failure causes.
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	ClientIP  string `json:"client_ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// OutboxEntry is an event waiting to be relayed to the event stream.
type OutboxEntry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// Store persists audit events. Append joins the transaction carried by ctx
// when the implementation supports one.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subjectType SubjectType, subjectID string) ([]Event, error)
}

// Outbox hands unpublished entries to fn and marks them published only when
// fn succeeds.
type Outbox interface {
	Claim(ctx context.Context, limit int, fn func(ctx context.Context, entries []OutboxEntry) error) (int, error)
}
