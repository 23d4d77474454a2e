package audithook

// Action constants for audit events.
const (
	// Pricing actions
	ActionPriceUpdated = "price.updated"

	// Allocation actions
	ActionTokensAllocated  = "tokens.allocated"
	ActionTokensLocked     = "tokens.locked"
	ActionDonationRecorded = "donation.recorded"

	// Withdrawal actions
	ActionTokensClaimed    = "tokens.claimed"
	ActionOwnerWithdrawal  = "owner.withdrawal"
	ActionDonationsFlushed = "donations.flushed"
	ActionTokensDeposited  = "tokens.deposited"

	// Administration actions
	ActionThresholdUpdated          = "threshold.updated"
	ActionIncrementThresholdUpdated = "increment_threshold.updated"
	ActionCharityUpdated            = "charity.updated"
	ActionRoleGranted               = "role.granted"
	ActionRoleRevoked               = "role.revoked"

	// Rejections
	ActionOperationRejected = "operation.rejected"
)

// Resource constants for audit events.
const (
	ResourceSale    = "sale"
	ResourceLock    = "lock"
	ResourceToken   = "token"
	ResourceCharity = "charity"
	ResourceRole    = "role"
)

// Category constants for audit events.
const (
	CategoryPricing    = "pricing"
	CategoryAllocation = "allocation"
	CategoryVesting    = "vesting"
	CategoryTreasury   = "treasury"
	CategoryAccess     = "access"
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
