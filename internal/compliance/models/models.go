// Package models holds the read-side compliance views built from submissions.
package models

import (
	"time"

	orgmodels "amlstat/internal/organization/models"
	submodels "amlstat/internal/submission/models"
	id "amlstat/pkg/domain"
)

// StatusCounts tallies an organization's submissions by status.
type StatusCounts struct {
	Draft     int `json:"draft"`
	Submitted int `json:"submitted"`
	Approved  int `json:"approved"`
	Rejected  int `json:"rejected"`
}

func (c *StatusCounts) Add(status submodels.Status) {
	switch status {
	case submodels.StatusDraft:
		c.Draft++
	case submodels.StatusSubmitted:
		c.Submitted++
	case submodels.StatusApproved:
		c.Approved++
	case submodels.StatusRejected:
		c.Rejected++
	}
}

// MonthStatus is one cell of the monthly compliance matrix.
type MonthStatus struct {
	Month          int               `json:"month"`
	HasSubmission  bool              `json:"has_submission"`
	SubmissionID   *id.SubmissionID  `json:"submission_id,omitempty"`
	Status         *submodels.Status `json:"status,omitempty"`
	CompletionRate int               `json:"completion_rate"`
}

// FinancialMetrics are the indicator sums over approved submissions.
type FinancialMetrics struct {
	TotalSTRs                float64 `json:"total_strs"`
	FlaggedTransactionAmount float64 `json:"flagged_transaction_amount"`
	Inspections              float64 `json:"inspections"`
	EnforcementActions       float64 `json:"enforcement_actions"`
	Cases                    float64 `json:"cases"`
	Convictions              float64 `json:"convictions"`
	AssetsFrozen             float64 `json:"assets_frozen"`
	AssetsSeized             float64 `json:"assets_seized"`
}

// Add accumulates other into m.
func (m *FinancialMetrics) Add(other FinancialMetrics) {
	m.TotalSTRs += other.TotalSTRs
	m.FlaggedTransactionAmount += other.FlaggedTransactionAmount
	m.Inspections += other.Inspections
	m.EnforcementActions += other.EnforcementActions
	m.Cases += other.Cases
	m.Convictions += other.Convictions
	m.AssetsFrozen += other.AssetsFrozen
	m.AssetsSeized += other.AssetsSeized
}

type MonthlyFinancials struct {
	Month int `json:"month"`
	FinancialMetrics
}

// OrganizationCompliance is the per-organization view for one year.
type OrganizationCompliance struct {
	OrganizationID    id.OrganizationID   `json:"organization_id"`
	Code              string              `json:"code"`
	Name              string              `json:"name"`
	Type              orgmodels.Type      `json:"type"`
	Year              int                 `json:"year"`
	TotalSubmissions  int                 `json:"total_submissions"`
	StatusCounts      StatusCounts        `json:"status_counts"`
	ComplianceScore   int                 `json:"compliance_score"`
	Months            []MonthStatus       `json:"months"`
	Financials        FinancialMetrics    `json:"financials"`
	MonthlyFinancials []MonthlyFinancials `json:"monthly_financials"`
}

// Overview is the system-wide view over active organizations for one year.
type Overview struct {
	Year                  int                      `json:"year"`
	OrganizationCount     int                      `json:"organization_count"`
	AverageComplianceRate int                      `json:"average_compliance_rate"`
	Totals                FinancialMetrics         `json:"totals"`
	MonthlyTotals         []MonthlyFinancials      `json:"monthly_totals"`
	Organizations         []OrganizationCompliance `json:"organizations"`
	GeneratedAt           time.Time                `json:"generated_at"`
}
