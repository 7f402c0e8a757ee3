package light_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lumenchain/lumen/libs/math"
	"github.com/lumenchain/lumen/light"
	"github.com/lumenchain/lumen/types"
)

const (
	maxClockDrift = 10 * time.Second
)

func TestVerifyAdjacentHeaders(t *testing.T) {
	const (
		chainID    = "TestVerifyAdjacentHeaders"
		lastHeight = 1
		nextHeight = 2
	)

	var (
		keys = genPrivKeys(4)
		// 20, 30, 40, 50 - the first 3 don't have 2/3, the last 3 do!
		vals     = keys.ToValidators(20, 10)
		bTime, _ = time.Parse(time.RFC3339, "2006-01-02T15:04:05Z")
		trusted  = keys.GenLightBlock(t, chainID, lastHeight, bTime,
			vals, vals, hash("app_hash"), hash("cons_hash"), hash("results_hash"), 0, len(keys))
	)

	testCases := []struct {
		newBlock       *types.LightBlock
		trustingPeriod time.Duration
		now            time.Time
		expErr         error
		expErrText     string
	}{
		// same header -> error
		0: {
			trusted,
			3 * time.Hour,
			bTime.Add(2 * time.Hour),
			nil,
			"headers must be adjacent in height",
		},
		// different chainID -> error
		1: {
			keys.GenLightBlock(t, "different-chainID", nextHeight, bTime.Add(1*time.Hour),
				vals, vals, hash("app_hash"), hash("cons_hash"), hash("results_hash"), 0, len(keys)),
			3 * time.Hour,
			bTime.Add(2 * time.Hour),
			nil,
			"header belongs to another chain",
		},
		// new block -> no error
		2: {
			keys.GenLightBlock(t, chainID, nextHeight, bTime.Add(1*time.Hour),
				vals, vals, hash("app_hash"), hash("cons_hash"), hash("results_hash"), 0, len(keys)),
			3 * time.Hour,
			bTime.Add(2 * time.Hour),
			nil,
			"",
		},
		// 3/3 signed, but current time is passed the trusting period -> error
		3: {
			keys.GenLightBlock(t, chainID, nextHeight, bTime.Add(1*time.Hour),
				vals, vals, hash("app_hash"), hash("cons_hash"), hash("results_hash"), 0, len(keys)),
			1 * time.Hour,
			bTime.Add(1 * time.Hour).Add(1 * time.Second),
			light.ErrOldHeaderExpired{bTime.Add(1 * time.Hour), bTime.Add(1 * time.Hour).Add(1 * time.Second)},
			"old header has expired",
		},
		// 3/3 signed, current time is exactly at the end of the trusting period -> no error
		4: {
			keys.GenLightBlock(t, chainID, nextHeight, bTime.Add(30*time.Minute),
				vals, vals, hash("app_hash"), hash("cons_hash"), hash("results_hash"), 0, len(keys)),
			1 * time.Hour,
			bTime.Add(1 * time.Hour),
			nil,
			"",
		},
		// new block with the same height -> error
		5: {
			keys.GenLightBlock(t, chainID, lastHeight, bTime.Add(1*time.Hour),
				vals, vals, hash("app_hash"), hash("cons_hash"), hash("results_hash"), 0, len(keys)),
			3 * time.Hour,
			bTime.Add(2 * time.Hour),
			nil,
			"headers must be adjacent in height",
		},
		// new block with a time before the trusted header's time -> error
		6: {
			keys.GenLightBlock(t, chainID, nextHeight, bTime.Add(-1*time.Hour),
				vals, vals, hash("app_hash"), hash("cons_hash"), hash("results_hash"), 0, len(keys)),
			3 * time.Hour,
			bTime.Add(2 * time.Hour),
			nil,
			"to be after old header time",
		},
		// new block with a time from the future -> error
		7: {
			keys.GenLightBlock(t, chainID, nextHeight, bTime.Add(3*time.Hour),
				vals, vals, hash("app_hash"), hash("cons_hash"), hash("results_hash"), 0, len(keys)),
			3 * time.Hour,
			bTime.Add(2 * time.Hour),
			nil,
			"new header has a time from the future",
		},
		// new block with a time within the clock drift of now -> no error
		8: {
			keys.GenLightBlock(t, chainID, nextHeight, bTime.Add(2*time.Hour).Add(maxClockDrift-1*time.Second),
				vals, vals, hash("app_hash"), hash("cons_hash"), hash("results_hash"), 0, len(keys)),
			3 * time.Hour,
			bTime.Add(2 * time.Hour),
			nil,
			"",
		},
		// mismatched validator set -> error
		9: {
			keys.GenLightBlock(t, chainID, nextHeight, bTime.Add(1*time.Hour),
				keys.ToValidators(10, 1), vals, hash("app_hash"), hash("cons_hash"), hash("results_hash"), 0, len(keys)),
			3 * time.Hour,
			bTime.Add(2 * time.Hour),
			nil,
			"to match those from new header",
		},
		// insufficient signers (1 out of 4) -> error
		10: {
			keys.GenLightBlock(t, chainID, nextHeight, bTime.Add(1*time.Hour),
				vals, vals, hash("app_hash"), hash("cons_hash"), hash("results_hash"), 0, 1),
			3 * time.Hour,
			bTime.Add(2 * time.Hour),
			nil,
			"insufficient voting power",
		},
		// insufficient signers (3 out of 4 but last 3 have 2/3 of the power) -> no error
		11: {
			keys.GenLightBlock(t, chainID, nextHeight, bTime.Add(1*time.Hour),
				vals, vals, hash("app_hash"), hash("cons_hash"), hash("results_hash"), 1, len(keys)),
			3 * time.Hour,
			bTime.Add(2 * time.Hour),
			nil,
			"",
		},
	}

	for i, tc := range testCases {
		tc := tc
		t.Run(fmt.Sprintf("#%d", i), func(t *testing.T) {
			err := light.VerifyAdjacent(trusted, tc.newBlock, tc.trustingPeriod, tc.now, maxClockDrift)
			switch {
			case tc.expErr != nil && assert.Error(t, err):
				assert.Equal(t, tc.expErr, err)
			case tc.expErrText != "":
				assert.Contains(t, err.Error(), tc.expErrText)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestVerifyNonAdjacentHeaders(t *testing.T) {
	const (
		chainID    = "TestVerifyNonAdjacentHeaders"
		lastHeight = 1
	)

	var (
		keys = genPrivKeys(4)
		// 20, 30, 40, 50 - the first 3 don't have 2/3, the last 3 do!
		vals     = keys.ToValidators(20, 10)
		bTime, _ = time.Parse(time.RFC3339, "2006-01-02T15:04:05Z")
		trusted  = keys.GenLightBlock(t, chainID, lastHeight, bTime,
			vals, vals, hash("app_hash"), hash("cons_hash"), hash("results_hash"), 0, len(keys))

		// 30, 40, 50
		twoThirds     = keys[1:]
		twoThirdsVals = twoThirds.ToValidators(30, 10)

		// 50
		oneThird     = keys[len(keys)-1:]
		oneThirdVals = oneThird.ToValidators(50, 0)

		// 20
		lessThanOneThird     = keys[0:1]
		lessThanOneThirdVals = lessThanOneThird.ToValidators(20, 0)

		// completely different set
		strangerKeys = genPrivKeys(4)
		strangerVals = strangerKeys.ToValidators(20, 10)
	)

	testCases := []struct {
		newBlock       *types.LightBlock
		trustingPeriod time.Duration
		now            time.Time
		expErr         error
		expErrText     string
	}{
		// 3/3 new vals signed, 3/3 old vals present -> no error
		0: {
			keys.GenLightBlock(t, chainID, 3, bTime.Add(1*time.Hour),
				vals, vals, hash("app_hash"), hash("cons_hash"), hash("results_hash"), 0, len(keys)),
			3 * time.Hour,
			bTime.Add(2 * time.Hour),
			nil,
			"",
		},
		// 2/3 new vals signed, 3/3 old vals present -> no error
		1: {
			keys.GenLightBlock(t, chainID, 4, bTime.Add(1*time.Hour),
				vals, vals, hash("app_hash"), hash("cons_hash"), hash("results_hash"), 1, len(keys)),
			3 * time.Hour,
			bTime.Add(2 * time.Hour),
			nil,
			"",
		},
		// 1/3 new vals signed -> insufficient commit power error
		2: {
			keys.GenLightBlock(t, chainID, 4, bTime.Add(1*time.Hour),
				vals, vals, hash("app_hash"), hash("cons_hash"), hash("results_hash"), len(keys)-1, len(keys)),
			3 * time.Hour,
			bTime.Add(2 * time.Hour),
			nil,
			"insufficient voting power",
		},
		// vals are completely different -> not enough trust error
		3: {
			strangerKeys.GenLightBlock(t, chainID, 3, bTime.Add(1*time.Hour),
				strangerVals, strangerVals, hash("app_hash"), hash("cons_hash"), hash("results_hash"), 0, len(strangerKeys)),
			3 * time.Hour,
			bTime.Add(2 * time.Hour),
			nil,
			"cant trust new val set",
		},
		// 3/3 signed, but current time is passed the trusting period -> error
		4: {
			keys.GenLightBlock(t, chainID, 3, bTime.Add(1*time.Hour),
				vals, vals, hash("app_hash"), hash("cons_hash"), hash("results_hash"), 0, len(keys)),
			1 * time.Hour,
			bTime.Add(1 * time.Hour).Add(1 * time.Second),
			light.ErrOldHeaderExpired{bTime.Add(1 * time.Hour), bTime.Add(1 * time.Hour).Add(1 * time.Second)},
			"old header has expired",
		},
	}

	for i, tc := range testCases {
		tc := tc
		t.Run(fmt.Sprintf("#%d", i), func(t *testing.T) {
			err := light.VerifyNonAdjacent(trusted, tc.newBlock,
				tc.trustingPeriod, tc.now, maxClockDrift, light.DefaultTrustLevel)
			switch {
			case tc.expErr != nil && assert.Error(t, err):
				assert.Equal(t, tc.expErr, err)
			case tc.expErrText != "":
				assert.Contains(t, err.Error(), tc.expErrText)
			default:
				assert.NoError(t, err)
			}
		})
	}

	// Overlap via a 2/3 subset of the old set carries enough trust.
	t.Run("two thirds of the old set signs", func(t *testing.T) {
		newBlock := twoThirds.GenLightBlock(t, chainID, 5, bTime.Add(1*time.Hour),
			twoThirdsVals, twoThirdsVals, hash("app_hash"), hash("cons_hash"), hash("results_hash"), 0, len(twoThirds))

		err := light.VerifyNonAdjacent(trusted, newBlock, 3*time.Hour,
			bTime.Add(2*time.Hour), maxClockDrift, light.DefaultTrustLevel)
		assert.NoError(t, err)
	})

	// A single old validator carrying 1/3+ of the power is still enough.
	t.Run("one third of the old set signs", func(t *testing.T) {
		newBlock := oneThird.GenLightBlock(t, chainID, 5, bTime.Add(1*time.Hour),
			oneThirdVals, oneThirdVals, hash("app_hash"), hash("cons_hash"), hash("results_hash"), 0, len(oneThird))

		err := light.VerifyNonAdjacent(trusted, newBlock, 3*time.Hour,
			bTime.Add(2*time.Hour), maxClockDrift, light.DefaultTrustLevel)
		assert.NoError(t, err)
	})

	// Less than 1/3 of the old power cannot carry the trust forward.
	t.Run("less than one third of the old set signs", func(t *testing.T) {
		newBlock := lessThanOneThird.GenLightBlock(t, chainID, 5, bTime.Add(1*time.Hour),
			lessThanOneThirdVals, lessThanOneThirdVals, hash("app_hash"), hash("cons_hash"), hash("results_hash"),
			0, len(lessThanOneThird))

		err := light.VerifyNonAdjacent(trusted, newBlock, 3*time.Hour,
			bTime.Add(2*time.Hour), maxClockDrift, light.DefaultTrustLevel)
		if assert.Error(t, err) {
			assert.IsType(t, light.ErrNewValSetCantBeTrusted{}, err)
		}
	})
}

// The 2/3 own-set check must run before the overlap tally: a commit too weak
// on both counts reports insufficient commit power, not insufficient trust.
func TestVerifyNonAdjacentCommitPowerCheckedFirst(t *testing.T) {
	const chainID = "TestVerifyNonAdjacentCommitPowerCheckedFirst"

	var (
		keys     = genPrivKeys(4)
		vals     = keys.ToValidators(20, 10)
		bTime, _ = time.Parse(time.RFC3339, "2006-01-02T15:04:05Z")
		trusted  = keys.GenLightBlock(t, chainID, 1, bTime,
			vals, vals, hash("app_hash"), hash("cons_hash"), hash("results_hash"), 0, len(keys))

		otherKeys = genPrivKeys(4)
		otherVals = otherKeys.ToValidators(20, 10)
	)

	// signed only by the weakest of a disjoint set: fails both the 2/3 own-set
	// check and the overlap check
	newBlock := otherKeys.GenLightBlock(t, chainID, 3, bTime.Add(1*time.Hour),
		otherVals, otherVals, hash("app_hash"), hash("cons_hash"), hash("results_hash"), 0, 1)

	err := light.VerifyNonAdjacent(trusted, newBlock, 3*time.Hour,
		bTime.Add(2*time.Hour), maxClockDrift, light.DefaultTrustLevel)
	if assert.Error(t, err) {
		assert.IsType(t, light.ErrInsufficientCommitPower{}, err)
	}
}

func TestVerifyReturnsErrorIfTrustLevelIsInvalid(t *testing.T) {
	testCases := []struct {
		lvl   math.Fraction
		valid bool
	}{
		// valid
		0: {math.Fraction{Numerator: 1, Denominator: 1}, true},
		1: {math.Fraction{Numerator: 1, Denominator: 3}, true},
		2: {math.Fraction{Numerator: 2, Denominator: 3}, true},
		3: {math.Fraction{Numerator: 3, Denominator: 3}, true},
		4: {math.Fraction{Numerator: 4, Denominator: 5}, true},

		// invalid
		5: {math.Fraction{Numerator: 6, Denominator: 5}, false},
		6: {math.Fraction{Numerator: 0, Denominator: 1}, false},
		7: {math.Fraction{Numerator: 0, Denominator: 0}, false},
		8: {math.Fraction{Numerator: 1, Denominator: 0}, false},
		9: {math.Fraction{Numerator: 1, Denominator: 5}, false},
	}

	for i, tc := range testCases {
		tc := tc
		t.Run(fmt.Sprintf("#%d", i), func(t *testing.T) {
			err := light.ValidateTrustLevel(tc.lvl)
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestHeaderExpired(t *testing.T) {
	const chainID = "TestHeaderExpired"

	var (
		keys     = genPrivKeys(4)
		vals     = keys.ToValidators(20, 10)
		bTime, _ = time.Parse(time.RFC3339, "2006-01-02T15:04:05Z")
		header   = keys.GenSignedHeader(t, chainID, 1, bTime,
			vals, vals, hash("app_hash"), hash("cons_hash"), hash("results_hash"), 0, len(keys))
	)

	assert.False(t, light.HeaderExpired(header, time.Hour, bTime.Add(30*time.Minute)))
	// boundary: age equal to the trusting period is still usable
	assert.False(t, light.HeaderExpired(header, time.Hour, bTime.Add(time.Hour)))
	assert.True(t, light.HeaderExpired(header, time.Hour, bTime.Add(time.Hour).Add(time.Nanosecond)))
}

func TestVerifyBackwards(t *testing.T) {
	const chainID = "TestVerifyBackwards"

	var (
		keys     = genPrivKeys(4)
		vals     = keys.ToValidators(20, 10)
		bTime, _ = time.Parse(time.RFC3339, "2006-01-02T15:04:05Z")
		older    = keys.GenSignedHeader(t, chainID, 1, bTime,
			vals, vals, hash("app_hash"), hash("cons_hash"), hash("results_hash"), 0, len(keys))
		newer = keys.GenSignedHeaderLastBlockID(t, chainID, 2, bTime.Add(time.Minute),
			vals, vals, hash("app_hash"), hash("cons_hash"), hash("results_hash"), 0, len(keys),
			types.BlockID{Hash: older.Hash()})
	)

	assert.NoError(t, light.VerifyBackwards(older.Header, newer.Header))

	// header link must match
	unlinked := keys.GenSignedHeader(t, chainID, 1, bTime.Add(30*time.Second),
		vals, vals, hash("app_hash"), hash("cons_hash"), hash("results_hash"), 0, len(keys))
	err := light.VerifyBackwards(unlinked.Header, newer.Header)
	if assert.Error(t, err) {
		assert.IsType(t, light.ErrInvalidHeader{}, err)
	}

	// older header must have an earlier time
	future := keys.GenSignedHeader(t, chainID, 1, bTime.Add(time.Hour),
		vals, vals, hash("app_hash"), hash("cons_hash"), hash("results_hash"), 0, len(keys))
	err = light.VerifyBackwards(future.Header, newer.Header)
	if assert.Error(t, err) {
		assert.IsType(t, light.ErrInvalidHeader{}, err)
	}
}
