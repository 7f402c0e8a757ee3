package types

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenchain/lumen/crypto"
	"github.com/lumenchain/lumen/crypto/ed25519"
	tmmath "github.com/lumenchain/lumen/libs/math"
)

func randValidator(power int64) (*Validator, crypto.PrivKey) {
	privKey := ed25519.GenPrivKey()
	return NewValidator(privKey.PubKey(), power), privKey
}

func randValidatorSet(n int, power int64) (*ValidatorSet, []crypto.PrivKey) {
	vals := make([]*Validator, n)
	privKeys := make([]crypto.PrivKey, n)
	for i := 0; i < n; i++ {
		vals[i], privKeys[i] = randValidator(power)
	}
	valSet := NewValidatorSet(vals)
	sort.Sort(sortedPrivKeys{valSet, privKeys})
	return valSet, privKeys
}

// sortedPrivKeys orders the private keys to match the set's address order.
type sortedPrivKeys struct {
	valSet *ValidatorSet
	keys   []crypto.PrivKey
}

func (s sortedPrivKeys) Len() int { return len(s.keys) }
func (s sortedPrivKeys) Less(i, j int) bool {
	idxI, _ := s.valSet.GetByAddress(s.keys[i].PubKey().Address())
	idxJ, _ := s.valSet.GetByAddress(s.keys[j].PubKey().Address())
	return idxI < idxJ
}
func (s sortedPrivKeys) Swap(i, j int) {
	s.keys[i], s.keys[j] = s.keys[j], s.keys[i]
}

func makeCommit(t *testing.T, chainID string, blockID BlockID, height int64,
	valSet *ValidatorSet, privKeys []crypto.PrivKey, signing []bool) *Commit {
	t.Helper()

	sigs := make([]CommitSig, len(privKeys))
	for i, key := range privKeys {
		if !signing[i] {
			sigs[i] = NewCommitSigAbsent()
			continue
		}
		vote := &Vote{
			Type:             PrecommitType,
			Height:           height,
			Round:            0,
			BlockID:          blockID,
			Timestamp:        time.Now(),
			ValidatorAddress: key.PubKey().Address(),
			ValidatorIndex:   int32(i),
		}
		sig, err := key.Sign(VoteSignBytes(chainID, vote))
		require.NoError(t, err)
		vote.Signature = sig
		sigs[i] = vote.CommitSig()
	}

	return &Commit{Height: height, Round: 0, BlockID: blockID, Signatures: sigs}
}

func allSigning(n int) []bool {
	s := make([]bool, n)
	for i := range s {
		s[i] = true
	}
	return s
}

func TestValidatorSetBasic(t *testing.T) {
	// empty or nil validator lists are allowed
	vset := NewValidatorSet([]*Validator{})
	assert.EqualValues(t, 0, vset.Size())
	assert.EqualValues(t, 0, vset.TotalVotingPower())
	assert.False(t, vset.HasAddress([]byte("some val")))
	idx, val := vset.GetByAddress([]byte("some val"))
	assert.EqualValues(t, -1, idx)
	assert.Nil(t, val)

	val, _ = randValidator(100)
	vset = NewValidatorSet([]*Validator{val})
	assert.True(t, vset.HasAddress(val.Address))
	idx, _ = vset.GetByAddress(val.Address)
	assert.EqualValues(t, 0, idx)
	addr, gotVal := vset.GetByIndex(0)
	assert.Equal(t, []byte(val.Address), addr)
	assert.Equal(t, val, gotVal)
	assert.EqualValues(t, 1, vset.Size())
	assert.EqualValues(t, 100, vset.TotalVotingPower())
	assert.NotNil(t, vset.Hash())
}

func TestValidatorSetValidateBasic(t *testing.T) {
	val, _ := randValidator(100)
	badVal := &Validator{}

	testCases := []struct {
		vals ValidatorSet
		err  bool
		msg  string
	}{
		{ValidatorSet{}, true, "validator set is nil or empty"},
		{ValidatorSet{Validators: []*Validator{}}, true, "validator set is nil or empty"},
		{ValidatorSet{Validators: []*Validator{val}}, false, ""},
		{ValidatorSet{Validators: []*Validator{badVal}}, true, "invalid validator"},
	}

	for _, tc := range testCases {
		err := tc.vals.ValidateBasic()
		if tc.err {
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tc.msg)
			}
		} else {
			assert.NoError(t, err)
		}
	}
}

func TestValidatorSetHashIsOrderInsensitiveToInput(t *testing.T) {
	val1, _ := randValidator(10)
	val2, _ := randValidator(20)
	val3, _ := randValidator(30)

	setA := NewValidatorSet([]*Validator{val1, val2, val3})
	setB := NewValidatorSet([]*Validator{val3, val1, val2})
	assert.Equal(t, setA.Hash(), setB.Hash())

	// different power changes the hash
	setC := NewValidatorSet([]*Validator{val1.Copy(), val2.Copy(), NewValidator(val3.PubKey, 40)})
	assert.NotEqual(t, setA.Hash(), setC.Hash())
}

func TestValidatorSetRejectsDuplicateAddresses(t *testing.T) {
	val, _ := randValidator(10)
	assert.Panics(t, func() {
		NewValidatorSet([]*Validator{val, val.Copy()})
	})
}

func TestVerifyCommitLight(t *testing.T) {
	const (
		chainID = "test-chain"
		height  = int64(5)
	)
	blockID := BlockID{Hash: crypto.Checksum([]byte("blockhash")),
		PartSetHeader: PartSetHeader{Total: 1, Hash: crypto.Checksum([]byte("partshash"))}}

	valSet, privKeys := randValidatorSet(4, 10)

	// all sign -> ok
	commit := makeCommit(t, chainID, blockID, height, valSet, privKeys, allSigning(4))
	assert.NoError(t, valSet.VerifyCommitLight(chainID, blockID, height, commit))

	// 3 of 4 sign (30 of 40 power) -> ok
	signing := []bool{true, true, true, false}
	commit = makeCommit(t, chainID, blockID, height, valSet, privKeys, signing)
	assert.NoError(t, valSet.VerifyCommitLight(chainID, blockID, height, commit))

	// 2 of 4 sign (20 of 40 power) -> insufficient
	signing = []bool{true, true, false, false}
	commit = makeCommit(t, chainID, blockID, height, valSet, privKeys, signing)
	err := valSet.VerifyCommitLight(chainID, blockID, height, commit)
	if assert.Error(t, err) {
		assert.True(t, IsErrNotEnoughVotingPowerSigned(err))
	}

	// wrong chainID -> invalid signatures
	commit = makeCommit(t, "other-chain", blockID, height, valSet, privKeys, allSigning(4))
	assert.Error(t, valSet.VerifyCommitLight(chainID, blockID, height, commit))

	// mismatched height -> error
	commit = makeCommit(t, chainID, blockID, height, valSet, privKeys, allSigning(4))
	assert.Error(t, valSet.VerifyCommitLight(chainID, blockID, height+1, commit))

	// mismatched blockID -> error
	otherBlockID := BlockID{Hash: crypto.Checksum([]byte("other")),
		PartSetHeader: PartSetHeader{Total: 1, Hash: crypto.Checksum([]byte("partshash"))}}
	assert.Error(t, valSet.VerifyCommitLight(chainID, otherBlockID, height, commit))
}

func TestVerifyCommitLightTrusting(t *testing.T) {
	const (
		chainID = "test-chain"
		height  = int64(5)
	)
	blockID := BlockID{Hash: crypto.Checksum([]byte("blockhash")),
		PartSetHeader: PartSetHeader{Total: 1, Hash: crypto.Checksum([]byte("partshash"))}}

	originalValSet, _ := randValidatorSet(3, 10)
	newValSet, newKeys := randValidatorSet(4, 10)
	commit := makeCommit(t, chainID, blockID, height, newValSet, newKeys, allSigning(4))

	testCases := []struct {
		valSet     *ValidatorSet
		trustLevel tmmath.Fraction
		err        bool
	}{
		// the original set did not sign at all
		0: {originalValSet, tmmath.Fraction{Numerator: 1, Denominator: 3}, true},
		// the new set fully signed its own commit
		1: {newValSet, tmmath.Fraction{Numerator: 1, Denominator: 3}, false},
		2: {newValSet, tmmath.Fraction{Numerator: 3, Denominator: 3}, false},
	}

	for i, tc := range testCases {
		tc := tc
		t.Run(fmt.Sprintf("#%d", i), func(t *testing.T) {
			err := tc.valSet.VerifyCommitLightTrusting(chainID, commit, tc.trustLevel)
			if tc.err {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestVerifyCommitLightTrustingPartialOverlap(t *testing.T) {
	const (
		chainID = "test-chain"
		height  = int64(5)
	)
	blockID := BlockID{Hash: crypto.Checksum([]byte("blockhash")),
		PartSetHeader: PartSetHeader{Total: 1, Hash: crypto.Checksum([]byte("partshash"))}}

	// new set keeps 2 of the old set's 4 validators
	oldValSet, oldKeys := randValidatorSet(4, 10)

	keptKeys := oldKeys[:2]
	newVals := make([]*Validator, 0, 4)
	newKeysList := make([]crypto.PrivKey, 0, 4)
	for _, k := range keptKeys {
		newVals = append(newVals, NewValidator(k.PubKey(), 10))
		newKeysList = append(newKeysList, k)
	}
	for i := 0; i < 2; i++ {
		v, k := randValidator(10)
		newVals = append(newVals, v)
		newKeysList = append(newKeysList, k)
	}
	newValSet := NewValidatorSet(newVals)
	sort.Sort(sortedPrivKeys{newValSet, newKeysList})

	commit := makeCommit(t, chainID, blockID, height, newValSet, newKeysList, allSigning(4))

	// 20 of 40 old power signed: enough for 1/3, not for 2/3
	assert.NoError(t, oldValSet.VerifyCommitLightTrusting(chainID, commit,
		tmmath.Fraction{Numerator: 1, Denominator: 3}))
	err := oldValSet.VerifyCommitLightTrusting(chainID, commit,
		tmmath.Fraction{Numerator: 2, Denominator: 3})
	if assert.Error(t, err) {
		assert.True(t, IsErrNotEnoughVotingPowerSigned(err))
	}
}
