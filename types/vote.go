package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lumenchain/lumen/crypto"
)

// SignedMsgType is a type of signed message in the consensus.
type SignedMsgType byte

const (
	UnknownType SignedMsgType = 0
	// Votes
	PrevoteType   SignedMsgType = 1
	PrecommitType SignedMsgType = 2
)

// IsVoteTypeValid returns true if t is a valid vote type.
func IsVoteTypeValid(t SignedMsgType) bool {
	switch t {
	case PrevoteType, PrecommitType:
		return true
	default:
		return false
	}
}

var (
	ErrVoteInvalidValidatorAddress = errors.New("invalid validator address")
	ErrVoteInvalidSignature        = errors.New("invalid signature")
	ErrVoteInvalidBlockHash        = errors.New("invalid block hash")
)

// Vote represents a prevote or precommit vote from validators for
// consensus.
type Vote struct {
	Type             SignedMsgType  `json:"type"`
	Height           int64          `json:"height,string"`
	Round            int32          `json:"round"`
	BlockID          BlockID        `json:"block_id"` // zero if vote is nil.
	Timestamp        time.Time      `json:"timestamp"`
	ValidatorAddress crypto.Address `json:"validator_address"`
	ValidatorIndex   int32          `json:"validator_index"`
	Signature        []byte         `json:"signature"`
}

// CommitSig converts the Vote to a CommitSig.
func (vote *Vote) CommitSig() CommitSig {
	if vote == nil {
		return NewCommitSigAbsent()
	}

	var blockIDFlag BlockIDFlag
	switch {
	case vote.BlockID.IsComplete():
		blockIDFlag = BlockIDFlagCommit
	case vote.BlockID.IsZero():
		blockIDFlag = BlockIDFlagNil
	default:
		panic(fmt.Sprintf("Invalid vote %v - expected BlockID to be either empty or complete", vote))
	}

	return CommitSig{
		BlockIDFlag:      blockIDFlag,
		ValidatorAddress: vote.ValidatorAddress,
		Timestamp:        vote.Timestamp,
		Signature:        vote.Signature,
	}
}

// VoteSignBytes returns the canonical bytes of a Vote, which a validator
// signs over. The returned encoding does not include the validator's own
// address or index, and is therefore the same for every signer of a given
// block.
func VoteSignBytes(chainID string, vote *Vote) []byte {
	bz, err := json.Marshal(CanonicalizeVote(chainID, vote))
	if err != nil {
		panic(err)
	}
	return bz
}

// Verify checks whether the signature is corresponding to the given pubkey.
func (vote *Vote) Verify(chainID string, pubKey crypto.PubKey) error {
	if !bytes.Equal(pubKey.Address(), vote.ValidatorAddress) {
		return ErrVoteInvalidValidatorAddress
	}
	if !pubKey.VerifySignature(VoteSignBytes(chainID, vote), vote.Signature) {
		return ErrVoteInvalidSignature
	}
	return nil
}

// ValidateBasic checks whether the vote is well-formed. It does not, however,
// check the signature against the corresponding public key.
func (vote *Vote) ValidateBasic() error {
	if !IsVoteTypeValid(vote.Type) {
		return errors.New("invalid Type")
	}

	if vote.Height <= 0 {
		return errors.New("negative or zero Height")
	}

	if vote.Round < 0 {
		return errors.New("negative Round")
	}

	// NOTE: Timestamp validation is subtle and handled elsewhere.

	if err := vote.BlockID.ValidateBasic(); err != nil {
		return fmt.Errorf("wrong BlockID: %w", err)
	}

	// BlockID.ValidateBasic would not err if we for instance have an empty
	// hash but a non-empty PartsSetHeader:
	if !vote.BlockID.IsZero() && !vote.BlockID.IsComplete() {
		return fmt.Errorf("blockID must be either empty or complete, got: %v", vote.BlockID)
	}

	if len(vote.ValidatorAddress) != crypto.AddressSize {
		return fmt.Errorf("expected ValidatorAddress size to be %d bytes, got %d bytes",
			crypto.AddressSize,
			len(vote.ValidatorAddress),
		)
	}

	if vote.ValidatorIndex < 0 {
		return errors.New("negative ValidatorIndex")
	}

	if len(vote.Signature) == 0 {
		return errors.New("signature is missing")
	}

	if len(vote.Signature) > MaxSignatureSize {
		return fmt.Errorf("signature is too big (max: %d)", MaxSignatureSize)
	}

	return nil
}

func (vote *Vote) String() string {
	if vote == nil {
		return "nil-Vote"
	}

	return fmt.Sprintf("Vote{%v:%X %v/%02d/%v(%v) %X @ %s}",
		vote.ValidatorIndex,
		vote.ValidatorAddress,
		vote.Height,
		vote.Round,
		vote.Type,
		vote.BlockID.Hash,
		vote.Signature,
		CanonicalTime(vote.Timestamp),
	)
}
