package models

// Indicator codes with a financial meaning in compliance roll-ups.
const (
	CodeTotalSTRs          = "1.1"
	CodeFlaggedAmount      = "1.6"
	CodeInspections        = "3.1"
	CodeEnforcementActions = "3.3"
	CodeCases              = "6.1"
	CodeConvictions        = "6.3"
	CodeAssetsFrozen       = "6.4"
	CodeAssetsSeized       = "6.5"
)

var catalog = []Indicator{
	{Code: "1.1", Label: "Number of suspicious transaction reports (STRs) filed"},
	{Code: "1.2", Label: "Number of cash transaction reports (CTRs) filed"},
	{Code: "1.3", Label: "STRs related to terrorist financing"},
	{Code: "1.4", Label: "STRs disseminated to law enforcement"},
	{Code: "1.5", Label: "Number of transactions flagged by monitoring"},
	{Code: "1.6", Label: "Total amount of flagged transactions"},

	{Code: "2.1", Label: "New customers onboarded"},
	{Code: "2.2", Label: "Enhanced due diligence reviews performed"},
	{Code: "2.3", Label: "Active politically exposed person relationships"},
	{Code: "2.4", Label: "Relationships terminated for CDD failures"},

	{Code: "3.1", Label: "AML/CFT inspections conducted"},
	{Code: "3.2", Label: "Deficiencies identified during inspections"},
	{Code: "3.3", Label: "Enforcement actions taken"},
	{Code: "3.4", Label: "Total value of monetary penalties imposed"},

	{Code: "4.1", Label: "Staff trained on AML/CFT"},
	{Code: "4.2", Label: "AML/CFT training sessions held"},

	{Code: "5.1", Label: "Mutual legal assistance requests received"},
	{Code: "5.2", Label: "Mutual legal assistance requests sent"},

	{Code: "6.1", Label: "Money laundering cases investigated"},
	{Code: "6.2", Label: "Prosecutions initiated"},
	{Code: "6.3", Label: "Convictions obtained"},
	{Code: "6.4", Label: "Value of assets frozen"},
	{Code: "6.5", Label: "Value of assets seized"},
}

// Template returns a fresh copy of the standard indicator form with every
// value unanswered.
func Template() []Indicator {
	return cloneIndicators(catalog)
}
