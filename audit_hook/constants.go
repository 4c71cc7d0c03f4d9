package audithook

// Action constants for audit events.
const (
	// Group actions
	ActionGroupCreated = "group.created"
	ActionMembersAdded = "group.members_added"

	// Entry actions
	ActionExpenseRecorded    = "expense.recorded"
	ActionSettlementRecorded = "settlement.recorded"

	// Simplification actions
	ActionSimplificationAppended = "simplification.appended"
	ActionSimplificationFailed   = "simplification.failed"
)

// Resource constants for audit events.
const (
	ResourceGroup          = "group"
	ResourceExpense        = "expense"
	ResourceSettlement     = "settlement"
	ResourceSimplification = "simplification"
)

// Category constants for audit events.
const (
	CategoryMembership = "membership"
	CategoryLedger     = "ledger"
	CategoryDebt       = "debt"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
