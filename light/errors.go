package light

import (
	"errors"
	"fmt"
	"time"

	"github.com/lumenchain/lumen/light/provider"
	"github.com/lumenchain/lumen/types"
)

// ErrOldHeaderExpired means the old (trusted) header has expired according to
// the given trustingPeriod and current time. If so, the light client must be
// reset subjectively.
type ErrOldHeaderExpired struct {
	At  time.Time
	Now time.Time
}

func (e ErrOldHeaderExpired) Error() string {
	return fmt.Sprintf("old header has expired at %v (now: %v)", e.At, e.Now)
}

// ErrNonMonotonicHeader means the new header has a height or time lower than
// or equal to that of the header it is being verified against.
type ErrNonMonotonicHeader struct {
	Got     *types.SignedHeader
	Trusted *types.SignedHeader
}

func (e ErrNonMonotonicHeader) Error() string {
	if e.Got.Height <= e.Trusted.Height {
		return fmt.Sprintf("expected new header height %d to be greater than one of old header %d",
			e.Got.Height, e.Trusted.Height)
	}
	return fmt.Sprintf("expected new header time %v to be after old header time %v",
		e.Got.Time, e.Trusted.Time)
}

// ErrHeaderFromFuture means the new header has a time further than the local
// clock plus the allowed drift.
type ErrHeaderFromFuture struct {
	HeaderTime time.Time
	Now        time.Time
	Drift      time.Duration
}

func (e ErrHeaderFromFuture) Error() string {
	return fmt.Sprintf("new header has a time from the future %v (now: %v; drift: %v)",
		e.HeaderTime, e.Now, e.Drift)
}

// ErrValidatorSetMismatch means the validator set committed to by the trusted
// header differs from the one presented alongside the new header.
type ErrValidatorSetMismatch struct {
	TrustedHash []byte
	GotHash     []byte
}

func (e ErrValidatorSetMismatch) Error() string {
	return fmt.Sprintf("expected old header next validators (%X) to match those from new header (%X)",
		e.TrustedHash, e.GotHash)
}

// ErrInsufficientCommitPower means the commit does not carry signatures from
// more than 2/3 of the validator set that produced the header.
type ErrInsufficientCommitPower struct {
	Reason types.ErrNotEnoughVotingPowerSigned
}

func (e ErrInsufficientCommitPower) Error() string {
	return fmt.Sprintf("invalid commit -- insufficient voting power: %v", e.Reason)
}

func (e ErrInsufficientCommitPower) Unwrap() error {
	return e.Reason
}

// ErrNewValSetCantBeTrusted means the new validator set cannot be trusted
// because < 1/3rd (+trustLevel+) of the old validator set has signed.
type ErrNewValSetCantBeTrusted struct {
	Reason types.ErrNotEnoughVotingPowerSigned
}

func (e ErrNewValSetCantBeTrusted) Error() string {
	return fmt.Sprintf("cant trust new val set: %v", e.Reason)
}

func (e ErrNewValSetCantBeTrusted) Unwrap() error {
	return e.Reason
}

// ErrInvalidHeader means the header either failed the basic validation or
// carries a malformed commit.
type ErrInvalidHeader struct {
	Reason error
}

func (e ErrInvalidHeader) Error() string {
	return fmt.Sprintf("invalid header: %v", e.Reason)
}

func (e ErrInvalidHeader) Unwrap() error {
	return e.Reason
}

// ErrConnectivityFailure means a provider failed to return a light block for
// reasons unrelated to the block's validity (timeouts, missing data, dropped
// connections).
type ErrConnectivityFailure struct {
	Height int64
	Reason error
}

func (e ErrConnectivityFailure) Error() string {
	return fmt.Sprintf("failed to obtain the light block at height #%d: %v", e.Height, e.Reason)
}

func (e ErrConnectivityFailure) Unwrap() error {
	return e.Reason
}

// ErrCanceled means the operation was aborted because the caller's context
// finished before it completed.
type ErrCanceled struct {
	Reason error
}

func (e ErrCanceled) Error() string {
	return fmt.Sprintf("canceled: %v", e.Reason)
}

func (e ErrCanceled) Unwrap() error {
	return e.Reason
}

// ErrConflictingHeaders is thrown when two conflicting headers are discovered.
type ErrConflictingHeaders struct {
	Block        *types.LightBlock
	Witness      provider.Provider
	WitnessIndex int
}

func (e ErrConflictingHeaders) Error() string {
	return fmt.Sprintf(
		"header hash (%X) from witness (%v) does not match primary",
		e.Block.Hash(), e.Witness)
}

// ErrVerificationFailed means either sequential or skipping verification has
// failed to verify from header #1 to header #2 due to some reason.
type ErrVerificationFailed struct {
	From   int64
	To     int64
	Reason error
}

// Unwrap returns underlying reason.
func (e ErrVerificationFailed) Unwrap() error {
	return e.Reason
}

func (e ErrVerificationFailed) Error() string {
	return fmt.Sprintf("verify from #%d to #%d failed: %v", e.From, e.To, e.Reason)
}

// ErrFailedHeaderCrossReferencing is returned when the detector was not able
// to cross reference the header with any of the connected witnesses.
var ErrFailedHeaderCrossReferencing = errors.New("all witnesses have either not responded, don't have the " +
	"blocks or sent invalid blocks. You should look to change your witnesses " +
	"or review the light client's logs for more information")

// ErrNoWitnesses means that there are not enough witnesses connected to
// continue running the light client.
var ErrNoWitnesses = errors.New("no witnesses connected. please reset light client")

// errConflictingHeaders carries a witness's divergent light block between the
// comparison goroutines and the detector.
type errConflictingHeaders struct {
	Block        *types.LightBlock
	WitnessIndex int
}

func (e errConflictingHeaders) Error() string {
	return fmt.Sprintf("header hash (%X) from witness does not match primary", e.Block.Hash())
}

type badWitnessCode int

const (
	noResponse badWitnessCode = iota + 1
	invalidLightBlock
)

// errBadWitness is returned when the witness either does not respond or
// responds with an invalid header.
type errBadWitness struct {
	Reason       error
	Code         badWitnessCode
	WitnessIndex int
}

func (e errBadWitness) Error() string {
	switch e.Code {
	case noResponse:
		return fmt.Sprintf("failed to get a header/vals from witness: %v", e.Reason)
	case invalidLightBlock:
		return fmt.Sprintf("witness sent us an invalid light block: %v", e.Reason)
	default:
		return fmt.Sprintf("unknown code: %d", e.Code)
	}
}

func (e errBadWitness) Unwrap() error {
	return e.Reason
}
