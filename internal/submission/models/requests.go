package models

import (
	"strings"

	id "amlstat/pkg/domain"
	dErrors "amlstat/pkg/domain-errors"
)

// CreateSubmissionRequest opens a draft. OrganizationID defaults to the
// caller's organization; an empty Indicators list expands to the template.
type CreateSubmissionRequest struct {
	OrganizationID string      `json:"organization_id"`
	Month          int         `json:"month"`
	Year           int         `json:"year"`
	Indicators     []Indicator `json:"indicators"`
}

func (r *CreateSubmissionRequest) Normalize() {
	r.OrganizationID = strings.TrimSpace(r.OrganizationID)
	r.Indicators = NormalizeIndicators(r.Indicators)
	if len(r.Indicators) == 0 {
		r.Indicators = Template()
	}
}

func (r *CreateSubmissionRequest) Validate() error {
	if err := ValidatePeriod(r.Month, r.Year); err != nil {
		return err
	}
	return ValidateIndicators(r.Indicators)
}

type UpdateSubmissionRequest struct {
	Indicators []Indicator `json:"indicators"`
}

func (r *UpdateSubmissionRequest) Normalize() {
	r.Indicators = NormalizeIndicators(r.Indicators)
}

func (r *UpdateSubmissionRequest) Validate() error {
	if r.Indicators == nil {
		return dErrors.New(dErrors.CodeValidation, "indicators are required")
	}
	return ValidateIndicators(r.Indicators)
}

type ApproveRequest struct {
	Comments string `json:"comments"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

// ListFilter narrows a submission listing. Zero fields match everything.
type ListFilter struct {
	OrganizationID *id.OrganizationID
	Year           int
	Month          int
	Status         Status
}

// Matches reports whether s passes the filter.
func (f ListFilter) Matches(s Submission) bool {
	if f.OrganizationID != nil && s.OrganizationID != *f.OrganizationID {
		return false
	}
	if f.Year != 0 && s.Year != f.Year {
		return false
	}
	if f.Month != 0 && s.Month != f.Month {
		return false
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	return true
}

func (f ListFilter) Validate() error {
	if f.Month != 0 && (f.Month < 1 || f.Month > 12) {
		return dErrors.New(dErrors.CodeValidation, "month must be between 1 and 12")
	}
	if f.Status != "" && !f.Status.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown status "+string(f.Status))
	}
	return nil
}
