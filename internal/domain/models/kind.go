package models

// Kind identifies an auxiliary TWSE document shape.
type Kind string

const (
	// KindInstitutional is the T86 per-stock institutional investors report.
	KindInstitutional Kind = "institutional"
	// KindDaytrade is the TWTB4U day-trading report.
	KindDaytrade Kind = "daytrade"
	// KindMarketFlows is the BFI82U market-wide institutional funds report.
	KindMarketFlows Kind = "market_flows"
)

// Standard column labels shared across packages.
const (
	ColumnDate = "date"
	ColumnCode = "code"
	ColumnName = "name"
)
