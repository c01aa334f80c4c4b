package deadman

import "errors"

var (
	// ErrInvalidSwitchID indicates the switch identifier is empty or too long.
	ErrInvalidSwitchID = errors.New("deadman: invalid switch id")

	// ErrInvalidBeneficiaryCount indicates zero or too many beneficiaries.
	ErrInvalidBeneficiaryCount = errors.New("deadman: invalid beneficiary count")

	// ErrInvalidShareDistribution indicates shares do not sum to 10000 basis points.
	ErrInvalidShareDistribution = errors.New("deadman: invalid share distribution")

	// ErrInvalidTimeout indicates a non-positive or unrepresentable timeout.
	ErrInvalidTimeout = errors.New("deadman: invalid timeout")

	// ErrInvalidAssetAllocation indicates an allocation with no assets or a zero amount.
	ErrInvalidAssetAllocation = errors.New("deadman: invalid asset allocation")

	// ErrInvalidTokenType indicates a malformed asset or one that does not match the switch.
	ErrInvalidTokenType = errors.New("deadman: invalid token type")

	// ErrSwitchNotActive indicates the switch is no longer active.
	ErrSwitchNotActive = errors.New("deadman: switch not active")

	// ErrSwitchAlreadyExpired indicates a heartbeat arrived after the deadline.
	ErrSwitchAlreadyExpired = errors.New("deadman: switch already expired")

	// ErrDeadlineNotPassed indicates expiry was requested before the deadline.
	ErrDeadlineNotPassed = errors.New("deadman: heartbeat deadline not passed")

	// ErrSwitchNotExpired indicates distribution on a switch that has not expired.
	ErrSwitchNotExpired = errors.New("deadman: switch not expired")

	// ErrSwitchNotCanceled indicates withdrawal on a switch that was not canceled.
	ErrSwitchNotCanceled = errors.New("deadman: switch not canceled")

	// ErrInsufficientFunds indicates nothing is left to distribute or withdraw.
	ErrInsufficientFunds = errors.New("deadman: insufficient funds")

	// ErrBeneficiaryNotFound indicates the address is not a beneficiary of the switch.
	ErrBeneficiaryNotFound = errors.New("deadman: beneficiary not found")

	// ErrWrongPayoutModel indicates the operation does not apply to the switch's payout model.
	ErrWrongPayoutModel = errors.New("deadman: wrong payout model")

	// ErrInvalidAmount indicates a zero payout amount.
	ErrInvalidAmount = errors.New("deadman: invalid amount")

	// ErrAllocationExceeded indicates a payout larger than what remains allocated.
	ErrAllocationExceeded = errors.New("deadman: allocation exceeded")

	// ErrUnauthorized indicates the signer is not allowed to perform the operation.
	ErrUnauthorized = errors.New("deadman: unauthorized")

	// ErrSwitchNotFound indicates no record exists for the requested switch.
	ErrSwitchNotFound = errors.New("deadman: switch not found")

	// ErrSwitchExists indicates a record already exists for (owner, switch id).
	ErrSwitchExists = errors.New("deadman: switch already exists")

	// ErrInvalidRecordData indicates the stored switch bytes are malformed.
	ErrInvalidRecordData = errors.New("deadman: invalid record data")
)

// Class groups errors by how a caller should react to them.
type Class uint8

const (
	ClassUnknown Class = iota
	// ClassValidation errors come from bad input and are raised before any mutation.
	ClassValidation
	// ClassState errors mean the switch is in the wrong status for the operation.
	ClassState
	// ClassAuthorization errors mean the caller may not perform the operation.
	ClassAuthorization
	// ClassResource errors concern balances, beneficiaries and assets.
	ClassResource
)

func (c Class) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassState:
		return "state"
	case ClassAuthorization:
		return "authorization"
	case ClassResource:
		return "resource"
	default:
		return "unknown"
	}
}

var classes = []struct {
	err   error
	class Class
}{
	{ErrInvalidSwitchID, ClassValidation},
	{ErrInvalidBeneficiaryCount, ClassValidation},
	{ErrInvalidShareDistribution, ClassValidation},
	{ErrInvalidTimeout, ClassValidation},
	{ErrInvalidAssetAllocation, ClassValidation},
	{ErrInvalidAmount, ClassValidation},
	{ErrSwitchNotActive, ClassState},
	{ErrSwitchAlreadyExpired, ClassState},
	{ErrDeadlineNotPassed, ClassState},
	{ErrSwitchNotExpired, ClassState},
	{ErrSwitchNotCanceled, ClassState},
	{ErrWrongPayoutModel, ClassState},
	{ErrUnauthorized, ClassAuthorization},
	{ErrInsufficientFunds, ClassResource},
	{ErrBeneficiaryNotFound, ClassResource},
	{ErrInvalidTokenType, ClassResource},
	{ErrAllocationExceeded, ClassResource},
	{ErrSwitchNotFound, ClassResource},
	{ErrSwitchExists, ClassResource},
}

// Classify maps err onto its error class. Wrapped errors are unwrapped.
func Classify(err error) Class {
	if err == nil {
		return ClassUnknown
	}
	for _, c := range classes {
		if errors.Is(err, c.err) {
			return c.class
		}
	}
	return ClassUnknown
}
