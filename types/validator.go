package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lumenchain/lumen/crypto"
	"github.com/lumenchain/lumen/crypto/ed25519"
	tmbytes "github.com/lumenchain/lumen/libs/bytes"
)

// Validator holds the identity, public key and voting power of a single
// member of a validator set.
// NOTE: The ProposerPriority is not included in Validator.Hash();
// make sure to update that method if changes are made here
type Validator struct {
	Address     crypto.Address
	PubKey      crypto.PubKey
	VotingPower int64

	ProposerPriority int64
}

// NewValidator returns a new validator with the given pubkey and voting
// power.
func NewValidator(pubKey crypto.PubKey, votingPower int64) *Validator {
	return &Validator{
		Address:          pubKey.Address(),
		PubKey:           pubKey,
		VotingPower:      votingPower,
		ProposerPriority: 0,
	}
}

// ValidateBasic performs basic validation.
func (v *Validator) ValidateBasic() error {
	if v == nil {
		return errors.New("nil validator")
	}
	if v.PubKey == nil {
		return errors.New("validator does not have a public key")
	}

	if v.VotingPower < 0 {
		return errors.New("validator has negative voting power")
	}

	if len(v.Address) != crypto.AddressSize {
		return fmt.Errorf("validator address is the wrong size: %v", v.Address)
	}

	return nil
}

// Copy creates a new copy of the validator so we can mutate ProposerPriority.
// Panics if the validator is nil.
func (v *Validator) Copy() *Validator {
	vCopy := *v
	return &vCopy
}

// Bytes computes the unique encoding of a validator with a given voting
// power. These are the bytes that gets hashed in consensus. It excludes the
// address as its redundant with the pubkey. This also excludes
// ProposerPriority which changes every round.
func (v *Validator) Bytes() []byte {
	bz, err := json.Marshal(struct {
		PubKey      tmbytes.HexBytes `json:"pub_key"`
		VotingPower int64            `json:"voting_power,string"`
	}{
		PubKey:      v.PubKey.Bytes(),
		VotingPower: v.VotingPower,
	})
	if err != nil {
		panic(err)
	}
	return bz
}

// String returns a string representation of String.
//
// 1. address
// 2. public key
// 3. voting power
// 4. proposer priority
func (v *Validator) String() string {
	if v == nil {
		return "nil-Validator"
	}
	return fmt.Sprintf("Validator{%v %v VP:%v A:%v}",
		v.Address,
		v.PubKey,
		v.VotingPower,
		v.ProposerPriority)
}

// ValidatorListString returns a prettified validator list for logging
// purposes.
func ValidatorListString(vals []*Validator) string {
	chunks := make([]string, len(vals))
	for i, val := range vals {
		chunks[i] = fmt.Sprintf("%s:%d", val.Address, val.VotingPower)
	}

	return strings.Join(chunks, ",")
}

type validatorJSON struct {
	Address          crypto.Address   `json:"address"`
	PubKey           tmbytes.HexBytes `json:"pub_key"`
	VotingPower      int64            `json:"voting_power,string"`
	ProposerPriority int64            `json:"proposer_priority,string"`
}

// MarshalJSON encodes the validator with its ed25519 public key as raw hex
// bytes.
func (v Validator) MarshalJSON() ([]byte, error) {
	val := validatorJSON{
		Address:          v.Address,
		VotingPower:      v.VotingPower,
		ProposerPriority: v.ProposerPriority,
	}
	if v.PubKey != nil {
		val.PubKey = v.PubKey.Bytes()
	}
	return json.Marshal(val)
}

func (v *Validator) UnmarshalJSON(data []byte) error {
	var val validatorJSON
	if err := json.Unmarshal(data, &val); err != nil {
		return err
	}
	if len(val.PubKey) != ed25519.PubKeySize {
		return fmt.Errorf("invalid ed25519 public key size %d", len(val.PubKey))
	}
	v.PubKey = ed25519.PubKey(val.PubKey)
	v.Address = val.Address
	if len(v.Address) == 0 {
		v.Address = v.PubKey.Address()
	} else if !bytes.Equal(v.PubKey.Address(), v.Address) {
		return errors.New("validator address does not match its public key")
	}
	v.VotingPower = val.VotingPower
	v.ProposerPriority = val.ProposerPriority
	return nil
}
