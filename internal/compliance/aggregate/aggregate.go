// Package aggregate computes compliance views from submissions. It performs
// no I/O; callers load the organizations and submissions.
package aggregate

import (
	"time"

	"amlstat/internal/compliance/models"
	orgmodels "amlstat/internal/organization/models"
	submodels "amlstat/internal/submission/models"
	id "amlstat/pkg/domain"
)

const monthsPerYear = 12

// Organization builds the view of org for year from subs. Submissions for
// other organizations or years are ignored.
func Organization(org *orgmodels.Organization, year int, subs []submodels.Submission) models.OrganizationCompliance {
	view := models.OrganizationCompliance{
		OrganizationID:    org.ID,
		Code:              org.Code,
		Name:              org.Name,
		Type:              org.Type,
		Year:              year,
		Months:            emptyMonths(),
		MonthlyFinancials: emptyMonthlyFinancials(),
	}

	for _, sub := range subs {
		if sub.OrganizationID != org.ID || sub.Year != year {
			continue
		}
		view.TotalSubmissions++
		view.StatusCounts.Add(sub.Status)

		if sub.Month >= 1 && sub.Month <= monthsPerYear {
			cell := &view.Months[sub.Month-1]
			subID, status := sub.ID, sub.Status
			cell.HasSubmission = true
			cell.SubmissionID = &subID
			cell.Status = &status
			cell.CompletionRate = sub.CompletionRate
		}

		if sub.Status != submodels.StatusApproved {
			continue
		}
		fin := Financials(sub.Indicators)
		view.Financials.Add(fin)
		if sub.Month >= 1 && sub.Month <= monthsPerYear {
			view.MonthlyFinancials[sub.Month-1].Add(fin)
		}
	}

	view.ComplianceScore = submodels.RoundPercent(view.StatusCounts.Approved, view.TotalSubmissions)
	return view
}

// Overview builds the system view for year over the active organizations in
// orgs, grouping subs by organization in a single pass.
func Overview(year int, orgs []*orgmodels.Organization, subs []submodels.Submission, now time.Time) models.Overview {
	byOrg := make(map[id.OrganizationID][]submodels.Submission, len(orgs))
	for _, sub := range subs {
		if sub.Year == year {
			byOrg[sub.OrganizationID] = append(byOrg[sub.OrganizationID], sub)
		}
	}

	overview := models.Overview{
		Year:          year,
		MonthlyTotals: emptyMonthlyFinancials(),
		Organizations: make([]models.OrganizationCompliance, 0, len(orgs)),
		GeneratedAt:   now,
	}
	scoreSum := 0
	for _, org := range orgs {
		if !org.IsActive() {
			continue
		}
		view := Organization(org, year, byOrg[org.ID])
		overview.Organizations = append(overview.Organizations, view)
		overview.Totals.Add(view.Financials)
		for i := range view.MonthlyFinancials {
			overview.MonthlyTotals[i].Add(view.MonthlyFinancials[i].FinancialMetrics)
		}
		scoreSum += view.ComplianceScore
	}
	overview.OrganizationCount = len(overview.Organizations)
	overview.AverageComplianceRate = roundedMean(scoreSum, overview.OrganizationCount)
	return overview
}

// Financials sums the mapped indicator codes of one submission. Unknown
// codes are ignored.
func Financials(indicators []submodels.Indicator) models.FinancialMetrics {
	var m models.FinancialMetrics
	for _, ind := range indicators {
		if ind.Value == nil {
			continue
		}
		target := metricFor(&m, ind.Code)
		if target == nil {
			continue
		}
		*target += ParseLenient(*ind.Value)
	}
	return m
}

func metricFor(m *models.FinancialMetrics, code string) *float64 {
	switch code {
	case submodels.CodeTotalSTRs:
		return &m.TotalSTRs
	case submodels.CodeFlaggedAmount:
		return &m.FlaggedTransactionAmount
	case submodels.CodeInspections:
		return &m.Inspections
	case submodels.CodeEnforcementActions:
		return &m.EnforcementActions
	case submodels.CodeCases:
		return &m.Cases
	case submodels.CodeConvictions:
		return &m.Convictions
	case submodels.CodeAssetsFrozen:
		return &m.AssetsFrozen
	case submodels.CodeAssetsSeized:
		return &m.AssetsSeized
	}
	return nil
}

// roundedMean is sum/n rounded half up; 0 when n is 0. Scores are
// non-negative so integer rounding matches Math.round.
func roundedMean(sum, n int) int {
	if n <= 0 {
		return 0
	}
	return (2*sum + n) / (2 * n)
}

func emptyMonths() []models.MonthStatus {
	months := make([]models.MonthStatus, monthsPerYear)
	for i := range months {
		months[i].Month = i + 1
	}
	return months
}

func emptyMonthlyFinancials() []models.MonthlyFinancials {
	months := make([]models.MonthlyFinancials, monthsPerYear)
	for i := range months {
		months[i].Month = i + 1
	}
	return months
}
