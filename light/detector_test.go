package light_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbm "github.com/tendermint/tm-db"

	"github.com/lumenchain/lumen/libs/log"
	"github.com/lumenchain/lumen/light"
	"github.com/lumenchain/lumen/light/provider"
	dbs "github.com/lumenchain/lumen/light/store/db"
	"github.com/lumenchain/lumen/types"
)

func TestClientDetectsForkedWitness(t *testing.T) {
	// primary and witness share height 1 and diverge afterwards
	headers, vals, keymap := genLightBlocksWithKeys(t, chainID, 3, 4, 0, bTime)

	forkedHeaders := map[int64]*types.SignedHeader{1: headers[1]}
	lastHeader := headers[1]
	for height := int64(2); height <= 3; height++ {
		keys := keymap[height]
		forkedHeaders[height] = keys.GenSignedHeaderLastBlockID(t, chainID, height,
			bTime.Add(time.Duration(height)*time.Minute),
			vals[height], vals[height+1], hash("forked_app_hash"), hash("cons_hash"),
			hash("results_hash"), 0, len(keys), types.BlockID{Hash: lastHeader.Hash()})
		lastHeader = forkedHeaders[height]
	}

	primary := mockNodeFromHeadersAndVals(chainID, headers, vals)
	forkedWitness := mockNodeFromHeadersAndVals(chainID, forkedHeaders, vals)

	c, err := light.NewClient(
		context.Background(),
		chainID,
		trustOptionsFor(headers, 1, 4*time.Hour),
		primary,
		[]provider.Provider{forkedWitness},
		dbs.New(dbm.NewMemDB(), chainID),
		light.Logger(log.TestingLogger()),
	)
	require.NoError(t, err)

	// the witness presents a verifiable header that conflicts with the
	// primary's: the chain has forked and the client must halt
	_, err = c.VerifyLightBlockAtHeight(context.Background(), 3, bTime.Add(1*time.Hour))
	require.Error(t, err)
	var confErr light.ErrConflictingHeaders
	if assert.True(t, errors.As(err, &confErr), "expected ErrConflictingHeaders, got %v", err) {
		assert.Equal(t, forkedHeaders[3].Hash(), confErr.Block.Hash())
	}
}

func TestClientCrossReferencingFailsWhenNoWitnessHasTheBlock(t *testing.T) {
	headers, vals, _ := genLightBlocksWithKeys(t, chainID, 3, 4, 0, bTime)

	// the witness knows only the trusted height, not the target
	partialHeaders := map[int64]*types.SignedHeader{1: headers[1]}
	partialVals := map[int64]*types.ValidatorSet{1: vals[1], 2: vals[2]}

	primary := mockNodeFromHeadersAndVals(chainID, headers, vals)
	witness := mockNodeFromHeadersAndVals(chainID, partialHeaders, partialVals)

	c, err := light.NewClient(
		context.Background(),
		chainID,
		trustOptionsFor(headers, 1, 4*time.Hour),
		primary,
		[]provider.Provider{witness},
		dbs.New(dbm.NewMemDB(), chainID),
		light.Logger(log.TestingLogger()),
	)
	require.NoError(t, err)

	_, err = c.VerifyLightBlockAtHeight(context.Background(), 3, bTime.Add(1*time.Hour))
	assert.ErrorIs(t, err, light.ErrFailedHeaderCrossReferencing)
}

func TestClientAgreeingWitnessPassesDetector(t *testing.T) {
	headers, vals, _ := genLightBlocksWithKeys(t, chainID, 3, 4, 1, bTime)

	primary := mockNodeFromHeadersAndVals(chainID, headers, vals)
	witness := mockNodeFromHeadersAndVals(chainID, headers, vals)

	c, err := light.NewClient(
		context.Background(),
		chainID,
		trustOptionsFor(headers, 1, 4*time.Hour),
		primary,
		[]provider.Provider{witness},
		dbs.New(dbm.NewMemDB(), chainID),
		light.Logger(log.TestingLogger()),
	)
	require.NoError(t, err)

	lb, err := c.VerifyLightBlockAtHeight(context.Background(), 3, bTime.Add(1*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, headers[3].Hash(), lb.Hash())
}
