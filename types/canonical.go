package types

import (
	"encoding/json"
	"time"

	tmbytes "github.com/lumenchain/lumen/libs/bytes"
)

// TimeFormat is used for generating the sigs
const TimeFormat = time.RFC3339Nano

// Canonical JSON is the deterministic encoding signed by validators: struct
// fields are emitted in alphabetical order, byte slices as uppercase hex and
// times as UTC RFC3339Nano strings. Messages that include a chain id can
// only be applied to one chain.

type CanonicalBlockID struct {
	Hash          tmbytes.HexBytes       `json:"hash"`
	PartSetHeader CanonicalPartSetHeader `json:"parts"`
}

type CanonicalPartSetHeader struct {
	Hash  tmbytes.HexBytes `json:"hash"`
	Total uint32           `json:"total"`
}

type CanonicalVote struct {
	BlockID   CanonicalBlockID `json:"block_id"`
	ChainID   string           `json:"chain_id"`
	Height    int64            `json:"height"`
	Round     int32            `json:"round"`
	Timestamp string           `json:"timestamp"`
	Type      SignedMsgType    `json:"type"`
}

func CanonicalizeBlockID(bid BlockID) CanonicalBlockID {
	return CanonicalBlockID{
		Hash:          bid.Hash,
		PartSetHeader: CanonicalizePartSetHeader(bid.PartSetHeader),
	}
}

func CanonicalizePartSetHeader(psh PartSetHeader) CanonicalPartSetHeader {
	return CanonicalPartSetHeader{
		Hash:  psh.Hash,
		Total: psh.Total,
	}
}

func CanonicalizeVote(chainID string, vote *Vote) CanonicalVote {
	return CanonicalVote{
		BlockID:   CanonicalizeBlockID(vote.BlockID),
		ChainID:   chainID,
		Height:    vote.Height,
		Round:     vote.Round,
		Timestamp: CanonicalTime(vote.Timestamp),
		Type:      vote.Type,
	}
}

// CanonicalTime can be used to stringify time in a canonical way.
func CanonicalTime(t time.Time) string {
	// Note that sending time over JSON is quite strict, and can easily lose
	// precision or be misinterpreted if not normalized to UTC first.
	return t.Round(0).UTC().Format(TimeFormat)
}

// cdcEncode returns the canonical JSON bytes of the given item, or nil for
// zero-length byte slices and empty strings, so that unpopulated fields hash
// consistently.
func cdcEncode(item interface{}) []byte {
	switch item := item.(type) {
	case string:
		if item == "" {
			return nil
		}
	case []byte:
		if len(item) == 0 {
			return nil
		}
	case tmbytes.HexBytes:
		if len(item) == 0 {
			return nil
		}
	}

	bz, err := json.Marshal(item)
	if err != nil {
		panic(err)
	}
	return bz
}
