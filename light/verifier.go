package light

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	tmmath "github.com/lumenchain/lumen/libs/math"
	"github.com/lumenchain/lumen/types"
)

var (
	// DefaultTrustLevel - new header can be trusted if at least one correct
	// validator signed it.
	DefaultTrustLevel = tmmath.Fraction{Numerator: 1, Denominator: 3}
)

// VerifyNonAdjacent verifies non-adjacent untrusted light block against
// trusted light block. It ensures that:
//
//	a) trusted block can still be trusted (if not, ErrOldHeaderExpired is returned)
//	b) untrusted block is valid (if not, a typed error naming the failed check
//	   is returned)
//	c) more than 2/3 of the untrusted block's own validators have signed its
//	   commit (if not, ErrInsufficientCommitPower is returned)
//	d) trustLevel ([1/3, 1]) of the trusted block's next validators signed the
//	   untrusted commit (if not, ErrNewValSetCantBeTrusted is returned)
//	e) blocks are non-adjacent.
//
// maxClockDrift defines how much the untrusted header's time can drift into
// the future.
func VerifyNonAdjacent(
	trusted *types.LightBlock, // height=X
	untrusted *types.LightBlock, // height=Y, Y > X+1
	trustingPeriod time.Duration,
	now time.Time,
	maxClockDrift time.Duration,
	trustLevel tmmath.Fraction) error {

	if untrusted.Height == trusted.Height+1 {
		return errors.New("headers must be non adjacent in height")
	}

	if HeaderExpired(trusted.SignedHeader, trustingPeriod, now) {
		return ErrOldHeaderExpired{trusted.Time.Add(trustingPeriod), now}
	}

	if err := verifyNewHeaderAndVals(untrusted, trusted.SignedHeader, now, maxClockDrift); err != nil {
		return err
	}

	// Ensure that +2/3 of the new block's own validators signed correctly.
	if err := untrusted.ValidatorSet.VerifyCommitLight(trusted.ChainID, untrusted.Commit.BlockID,
		untrusted.Height, untrusted.Commit); err != nil {
		switch e := err.(type) {
		case types.ErrNotEnoughVotingPowerSigned:
			return ErrInsufficientCommitPower{e}
		default:
			return ErrInvalidHeader{e}
		}
	}

	// Ensure that +`trustLevel` (default 1/3) or more of the last trusted
	// validators signed correctly.
	err := trusted.NextValidatorSet.VerifyCommitLightTrusting(trusted.ChainID, untrusted.Commit, trustLevel)
	if err != nil {
		switch e := err.(type) {
		case types.ErrNotEnoughVotingPowerSigned:
			return ErrNewValSetCantBeTrusted{e}
		default:
			return e
		}
	}

	return nil
}

// VerifyAdjacent verifies directly adjacent untrusted light block against
// trusted light block. It ensures that:
//
//	a) trusted block can still be trusted (if not, ErrOldHeaderExpired is returned)
//	b) untrusted block is valid (if not, a typed error naming the failed check
//	   is returned)
//	c) the untrusted header's validators hash equals the trusted header's next
//	   validators hash (if not, ErrValidatorSetMismatch is returned)
//	d) more than 2/3 of the new validators have signed the commit
//	   (if not, ErrInsufficientCommitPower is returned)
//	e) blocks are adjacent.
//
// No trust-threshold tally is performed on the adjacent path: the validator
// hash linkage alone carries the trust forward.
//
// maxClockDrift defines how much the untrusted header's time can drift into
// the future.
func VerifyAdjacent(
	trusted *types.LightBlock, // height=X
	untrusted *types.LightBlock, // height=X+1
	trustingPeriod time.Duration,
	now time.Time,
	maxClockDrift time.Duration) error {

	if untrusted.Height != trusted.Height+1 {
		return errors.New("headers must be adjacent in height")
	}

	if HeaderExpired(trusted.SignedHeader, trustingPeriod, now) {
		return ErrOldHeaderExpired{trusted.Time.Add(trustingPeriod), now}
	}

	if err := verifyNewHeaderAndVals(untrusted, trusted.SignedHeader, now, maxClockDrift); err != nil {
		return err
	}

	// Check the validator hashes are the same
	if !bytes.Equal(untrusted.ValidatorsHash, trusted.NextValidatorsHash) {
		return ErrValidatorSetMismatch{
			TrustedHash: trusted.NextValidatorsHash,
			GotHash:     untrusted.ValidatorsHash,
		}
	}

	// Ensure that +2/3 of new validators signed correctly.
	if err := untrusted.ValidatorSet.VerifyCommitLight(trusted.ChainID, untrusted.Commit.BlockID,
		untrusted.Height, untrusted.Commit); err != nil {
		switch e := err.(type) {
		case types.ErrNotEnoughVotingPowerSigned:
			return ErrInsufficientCommitPower{e}
		default:
			return ErrInvalidHeader{e}
		}
	}

	return nil
}

// Verify combines both VerifyAdjacent and VerifyNonAdjacent functions.
func Verify(
	trusted *types.LightBlock, // height=X
	untrusted *types.LightBlock, // height=Y
	trustingPeriod time.Duration,
	now time.Time,
	maxClockDrift time.Duration,
	trustLevel tmmath.Fraction) error {

	if untrusted.Height != trusted.Height+1 {
		return VerifyNonAdjacent(trusted, untrusted, trustingPeriod, now, maxClockDrift, trustLevel)
	}

	return VerifyAdjacent(trusted, untrusted, trustingPeriod, now, maxClockDrift)
}

func verifyNewHeaderAndVals(
	untrusted *types.LightBlock,
	trustedHeader *types.SignedHeader,
	now time.Time,
	maxClockDrift time.Duration) error {

	if err := untrusted.ValidateBasic(trustedHeader.ChainID); err != nil {
		return ErrInvalidHeader{fmt.Errorf("untrusted.ValidateBasic failed: %w", err)}
	}

	if untrusted.Height <= trustedHeader.Height || !untrusted.Time.After(trustedHeader.Time) {
		return ErrNonMonotonicHeader{Got: untrusted.SignedHeader, Trusted: trustedHeader}
	}

	if !untrusted.Time.Before(now.Add(maxClockDrift)) {
		return ErrHeaderFromFuture{HeaderTime: untrusted.Time, Now: now, Drift: maxClockDrift}
	}

	if !bytes.Equal(untrusted.ValidatorsHash, untrusted.ValidatorSet.Hash()) {
		return ErrInvalidHeader{fmt.Errorf(
			"expected new header validators (%X) to match those that were supplied (%X) at height %d",
			untrusted.ValidatorsHash,
			untrusted.ValidatorSet.Hash(),
			untrusted.Height)}
	}

	return nil
}

// ValidateTrustLevel checks that trustLevel is within the allowed range [1/3,
// 1]. If not, it returns an error. 1/3 is the minimum amount of trust needed
// which does not break the security model.
func ValidateTrustLevel(lvl tmmath.Fraction) error {
	if lvl.Numerator*3 < lvl.Denominator || // < 1/3
		lvl.Numerator > lvl.Denominator || // > 1
		lvl.Denominator == 0 {
		return fmt.Errorf("trustLevel must be within [1/3, 1], given %v", lvl)
	}
	return nil
}

// HeaderExpired returns true if the given header is outside the trusting
// period. A header whose age equals the trusting period exactly is still
// usable.
func HeaderExpired(h *types.SignedHeader, trustingPeriod time.Duration, now time.Time) bool {
	expirationTime := h.Time.Add(trustingPeriod)
	return expirationTime.Before(now)
}

// VerifyBackwards verifies an untrusted header with a height one less than
// that of an adjacent trusted header. It ensures that:
//
//	a) untrusted header is valid
//	b) untrusted header has a time before the trusted header
//	c) that the LastBlockID hash of the trusted header is the same as the hash
//	   of the untrusted header
//
// For any of these cases ErrInvalidHeader is returned.
func VerifyBackwards(untrustedHeader, trustedHeader *types.Header) error {
	if err := untrustedHeader.ValidateBasic(); err != nil {
		return ErrInvalidHeader{err}
	}

	if untrustedHeader.ChainID != trustedHeader.ChainID {
		return ErrInvalidHeader{errors.New("header belongs to another chain")}
	}

	if !untrustedHeader.Time.Before(trustedHeader.Time) {
		return ErrInvalidHeader{
			fmt.Errorf("expected older header time %v to be before new header time %v",
				untrustedHeader.Time,
				trustedHeader.Time)}
	}

	if !bytes.Equal(untrustedHeader.Hash(), trustedHeader.LastBlockID.Hash) {
		return ErrInvalidHeader{
			fmt.Errorf("older header hash %X does not match trusted header's last block %X",
				untrustedHeader.Hash(),
				trustedHeader.LastBlockID.Hash)}
	}

	return nil
}
