package models

import (
	"fmt"
	"strings"
	"time"

	id "amlstat/pkg/domain"
	dErrors "amlstat/pkg/domain-errors"
)

const (
	MinYear       = 2000
	MaxYear       = 2100
	MaxReasonLen  = 2000
	MaxCommentLen = 2000
)

// Submission is one organization's statistics form for a (month, year)
// period.
//
// Invariants:
//   - At most one submission exists per (OrganizationID, Month, Year)
//   - Month is in 1..12 and Year in MinYear..MaxYear
//   - FilledIndicators, TotalIndicators and CompletionRate always describe
//     Indicators as stored
//   - Indicators change only while the status is draft or rejected
//
// Submission is treated as an immutable value: transitions return a modified
// copy and leave the receiver untouched.
type Submission struct {
	ID               id.SubmissionID   `json:"id"`
	OrganizationID   id.OrganizationID `json:"organization_id"`
	Month            int               `json:"month"`
	Year             int               `json:"year"`
	Status           Status            `json:"status"`
	Indicators       []Indicator       `json:"indicators"`
	FilledIndicators int               `json:"filled_indicators"`
	TotalIndicators  int               `json:"total_indicators"`
	CompletionRate   int               `json:"completion_rate"`
	CreatedBy        id.UserID         `json:"created_by"`
	SubmittedAt      *time.Time        `json:"submitted_at,omitempty"`
	SubmittedBy      *id.UserID        `json:"submitted_by,omitempty"`
	ApprovedAt       *time.Time        `json:"approved_at,omitempty"`
	ApprovedBy       *id.UserID        `json:"approved_by,omitempty"`
	ReviewedAt       *time.Time        `json:"reviewed_at,omitempty"`
	ReviewedBy       *id.UserID        `json:"reviewed_by,omitempty"`
	RejectionReason  *string           `json:"rejection_reason,omitempty"`
	Comments         *string           `json:"comments,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// ValidatePeriod checks the reporting month and year.
func ValidatePeriod(month, year int) error {
	if month < 1 || month > 12 {
		return dErrors.New(dErrors.CodeValidation, "month must be between 1 and 12")
	}
	if year < MinYear || year > MaxYear {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("year must be between %d and %d", MinYear, MaxYear))
	}
	return nil
}

// NewSubmission builds a draft with its completion derived from indicators.
func NewSubmission(
	submissionID id.SubmissionID,
	orgID id.OrganizationID,
	month, year int,
	indicators []Indicator,
	createdBy id.UserID,
	now time.Time,
) (Submission, error) {
	if orgID.IsNil() {
		return Submission{}, dErrors.New(dErrors.CodeValidation, "organization is required")
	}
	if err := ValidatePeriod(month, year); err != nil {
		return Submission{}, err
	}
	if err := ValidateIndicators(indicators); err != nil {
		return Submission{}, err
	}
	indicators = cloneIndicators(indicators)
	if indicators == nil {
		indicators = []Indicator{}
	}
	c := ComputeCompletion(indicators)
	return Submission{
		ID:               submissionID,
		OrganizationID:   orgID,
		Month:            month,
		Year:             year,
		Status:           StatusDraft,
		Indicators:       indicators,
		FilledIndicators: c.Filled,
		TotalIndicators:  c.Total,
		CompletionRate:   c.Rate,
		CreatedBy:        createdBy,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// Clone returns a deep copy.
func (s Submission) Clone() Submission {
	out := s
	out.Indicators = cloneIndicators(s.Indicators)
	out.SubmittedAt = cloneTime(s.SubmittedAt)
	out.SubmittedBy = cloneUser(s.SubmittedBy)
	out.ApprovedAt = cloneTime(s.ApprovedAt)
	out.ApprovedBy = cloneUser(s.ApprovedBy)
	out.ReviewedAt = cloneTime(s.ReviewedAt)
	out.ReviewedBy = cloneUser(s.ReviewedBy)
	out.RejectionReason = cloneValue(s.RejectionReason)
	out.Comments = cloneValue(s.Comments)
	return out
}

// WithIndicators replaces the answers, recomputes completion and returns the
// submission to draft. A rejection reason does not survive an edit.
func (s Submission) WithIndicators(indicators []Indicator, now time.Time) (Submission, error) {
	if !s.Status.IsEditable() {
		return Submission{}, dErrors.New(dErrors.CodeInvalidState,
			fmt.Sprintf("submission in status %s cannot be edited", s.Status))
	}
	if err := ValidateIndicators(indicators); err != nil {
		return Submission{}, err
	}
	next := s.Clone()
	next.Indicators = cloneIndicators(indicators)
	if next.Indicators == nil {
		next.Indicators = []Indicator{}
	}
	c := ComputeCompletion(next.Indicators)
	next.FilledIndicators = c.Filled
	next.TotalIndicators = c.Total
	next.CompletionRate = c.Rate
	next.Status = StatusDraft
	next.RejectionReason = nil
	next.UpdatedAt = now
	return next, nil
}

// Submit sends the form for review. The stored completion rate must reach
// SubmitThresholdPct.
func (s Submission) Submit(by id.UserID, now time.Time) (Submission, error) {
	if !s.Status.CanTransitionTo(StatusSubmitted) {
		return Submission{}, dErrors.New(dErrors.CodeInvalidState,
			fmt.Sprintf("submission in status %s cannot be submitted", s.Status))
	}
	if s.CompletionRate < SubmitThresholdPct {
		return Submission{}, dErrors.New(dErrors.CodeBelowThreshold,
			fmt.Sprintf("submission is %d%% complete; at least %d%% is required", s.CompletionRate, SubmitThresholdPct))
	}
	next := s.Clone()
	next.Status = StatusSubmitted
	next.SubmittedAt = &now
	next.SubmittedBy = &by
	next.UpdatedAt = now
	return next, nil
}

// Approve accepts a submitted form. Comments are optional.
func (s Submission) Approve(by id.UserID, comments string, now time.Time) (Submission, error) {
	comments = strings.TrimSpace(comments)
	if len(comments) > MaxCommentLen {
		return Submission{}, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("comments must be %d characters or less", MaxCommentLen))
	}
	if !s.Status.CanTransitionTo(StatusApproved) {
		return Submission{}, dErrors.New(dErrors.CodeInvalidState,
			fmt.Sprintf("submission in status %s cannot be approved", s.Status))
	}
	next := s.Clone()
	next.Status = StatusApproved
	next.ApprovedAt = &now
	next.ApprovedBy = &by
	if comments != "" {
		next.Comments = &comments
	}
	next.UpdatedAt = now
	return next, nil
}

// Reject returns a submitted form to its organization with a reason.
func (s Submission) Reject(by id.UserID, reason string, now time.Time) (Submission, error) {
	reason, err := NormalizeReason(reason)
	if err != nil {
		return Submission{}, err
	}
	if !s.Status.CanTransitionTo(StatusRejected) {
		return Submission{}, dErrors.New(dErrors.CodeInvalidState,
			fmt.Sprintf("submission in status %s cannot be rejected", s.Status))
	}
	next := s.Clone()
	next.Status = StatusRejected
	next.RejectionReason = &reason
	next.ReviewedAt = &now
	next.ReviewedBy = &by
	next.UpdatedAt = now
	return next, nil
}

// CanDelete reports whether the submission may be removed.
func (s Submission) CanDelete() error {
	if s.Status != StatusDraft {
		return dErrors.New(dErrors.CodeInvalidState,
			fmt.Sprintf("only draft submissions can be deleted; status is %s", s.Status))
	}
	return nil
}

// NormalizeReason trims a rejection reason and enforces its bounds.
func NormalizeReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", dErrors.New(dErrors.CodeValidation, "rejection reason is required")
	}
	if len(reason) > MaxReasonLen {
		return "", dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("rejection reason must be %d characters or less", MaxReasonLen))
	}
	return reason, nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneUser(u *id.UserID) *id.UserID {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
