package light

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/creachadair/taskgroup"

	"github.com/lumenchain/lumen/light/provider"
	"github.com/lumenchain/lumen/types"
)

// The detector component of the light client detects forks presented by the
// primary or the witnesses. It cross-references every newly verified header
// with the witness set and, when a witness diverges, verifies the witness's
// chain against the primary's trace to tell a faulty witness apart from a
// genuine conflict.

// detectDivergence is a second wall of defense for the light client.
//
// It takes the target verified header and compares it with the headers of a
// set of witness providers that the light client is connected to. If a
// conflicting header is returned it verifies the conflicting header against
// the verified trace that was produced from the primary. If the witness's
// header withstands that verification, the chain has forked and
// ErrConflictingHeaders is returned.
//
// If there are no conflicting headers, the light client deems the verified
// target header trusted and saves it to the trusted store.
func (c *Client) detectDivergence(ctx context.Context, primaryTrace []*types.LightBlock, now time.Time) error {
	if primaryTrace == nil || len(primaryTrace) < 2 {
		return errors.New("nil or single block primary trace")
	}
	var (
		headerMatched      bool
		lastVerifiedHeader = primaryTrace[len(primaryTrace)-1].SignedHeader
		witnessesToRemove  = make([]int, 0)
	)
	c.logger.Debug("running detector against trace", "endBlockHeight", lastVerifiedHeader.Height,
		"endBlockHash", lastVerifiedHeader.Hash(), "length", len(primaryTrace))

	c.providerMutex.Lock()
	defer c.providerMutex.Unlock()

	if len(c.witnesses) == 0 {
		return ErrNoWitnesses
	}

	// launch one goroutine per witness to retrieve the light block of the target height
	// and compare it with the header from the primary
	errc := make(chan error, len(c.witnesses))
	g := taskgroup.New(nil)
	for i, witness := range c.witnesses {
		i, witness := i, witness
		g.Go(func() error {
			c.compareNewHeaderWithWitness(ctx, errc, lastVerifiedHeader, witness, i)
			return nil
		})
	}
	defer func() { _ = g.Wait() }()

	// handle errors from the header comparisons as they come in
	for i := 0; i < cap(errc); i++ {
		err := <-errc

		switch e := err.(type) {
		case nil: // at least one header matched
			headerMatched = true
		case errConflictingHeaders:
			// We have conflicting headers. This could possibly imply a fork of the
			// chain. First we need to verify the witness's header using the same
			// verification the primary's trace went through: if the witness's
			// header checks out against the trace's trusted blocks, the divergence
			// is genuine and the client must halt.
			supportingWitness := c.witnesses[e.WitnessIndex]
			_, _, examErr := c.examineConflictingHeaderAgainstTrace(
				ctx,
				primaryTrace,
				e.Block.SignedHeader,
				supportingWitness,
				now,
			)
			if examErr != nil {
				c.logger.Info("error validating witness's divergent header", "witness", supportingWitness, "err", examErr)
				witnessesToRemove = append(witnessesToRemove, e.WitnessIndex)
				continue
			}

			c.logger.Error("chain fork detected: verified witness header conflicts with primary",
				"primary", c.primary, "witness", supportingWitness, "height", e.Block.Height)
			return ErrConflictingHeaders{
				Block:        e.Block,
				Witness:      supportingWitness,
				WitnessIndex: e.WitnessIndex,
			}

		case errBadWitness:
			c.logger.Info("witness returned an error during header comparison",
				"witness", c.witnesses[e.WitnessIndex], "err", err)
			// if witness sent us an invalid header, then remove it. If it didn't
			// respond or couldn't find the block, then we ignore it and move on to
			// the next witness
			if _, ok := e.Reason.(provider.ErrBadLightBlock); ok {
				c.logger.Info("witness sent us invalid header / vals -> removing it",
					"witness", c.witnesses[e.WitnessIndex])
				witnessesToRemove = append(witnessesToRemove, e.WitnessIndex)
			}
		}
	}

	if len(witnessesToRemove) > 0 {
		if err := c.removeWitnesses(witnessesToRemove); err != nil {
			return err
		}
	}

	// 1. If we had at least one witness that returned the same header then we
	// conclude that we can trust the header
	if headerMatched {
		return nil
	}

	// 2. Else all witnesses have either not responded, don't have the block or sent invalid blocks.
	return ErrFailedHeaderCrossReferencing
}

// compareNewHeaderWithWitness takes the verified header from the primary and compares it with a
// header from a specified witness. The function can return one of three errors:
//
//  1. errConflictingHeaders -> the chain may have forked
//  2. errBadWitness -> the witness has either not responded, doesn't have the header or has given us an invalid one
//     Note: In the case of an invalid header we remove the witness
//  3. nil -> the hashes of the two headers match
func (c *Client) compareNewHeaderWithWitness(ctx context.Context, errc chan error, h *types.SignedHeader,
	witness provider.Provider, witnessIndex int) {

	lightBlock, err := witness.LightBlock(ctx, h.Height)
	if err != nil {
		errc <- errBadWitness{Reason: err, Code: noResponse, WitnessIndex: witnessIndex}
		return
	}

	if !bytes.Equal(h.Hash(), lightBlock.Hash()) {
		errc <- errConflictingHeaders{Block: lightBlock, WitnessIndex: witnessIndex}
		return
	}

	c.logger.Debug("matching header received by witness", "height", h.Height, "witness", witnessIndex)
	errc <- nil
}

// examineConflictingHeaderAgainstTrace takes a trace from one provider and a divergent header that
// it has received from another and performs verifySkipping at the heights of each of the intermediate
// headers in the trace until it reaches the divergentHeader. 1 of 2 things can happen.
//
//  1. The light client verifies a header that is different to the intermediate header in the trace. This
//     is the bifurcation point: the divergence is genuine.
//  2. The source stops responding, doesn't have the block or sends an invalid header in which case we
//     return the error and remove the witness.
func (c *Client) examineConflictingHeaderAgainstTrace(
	ctx context.Context,
	trace []*types.LightBlock,
	divergentHeader *types.SignedHeader,
	source provider.Provider, now time.Time) ([]*types.LightBlock, *types.LightBlock, error) {

	var previouslyVerifiedBlock *types.LightBlock

	for idx, traceBlock := range trace {
		// The first block in the trace MUST be the same as the light block that the source produces
		// else we cannot continue with verification.
		sourceBlock, err := source.LightBlock(ctx, traceBlock.Height)
		if err != nil {
			return nil, nil, err
		}

		if idx == 0 {
			if shash, thash := sourceBlock.Hash(), traceBlock.Hash(); !bytes.Equal(shash, thash) {
				return nil, nil, fmt.Errorf("trusted block is different to the source's first block (%X = %X)",
					thash, shash)
			}
			previouslyVerifiedBlock = sourceBlock
			continue
		}

		// we check that the source provider can verify a block at the same height of the
		// intermediate height
		sourceTrace, err := c.verifySkipping(ctx, source, previouslyVerifiedBlock, sourceBlock, now)
		if err != nil {
			return nil, nil, fmt.Errorf("verification of conflicting header failed: %w", err)
		}
		// check if the headers verified by the source have diverged from the trace
		if shash, thash := sourceBlock.Hash(), traceBlock.Hash(); !bytes.Equal(shash, thash) {
			// Bifurcation point found!
			return sourceTrace, traceBlock, nil
		}

		// headers are still the same. update the previouslyVerifiedBlock
		previouslyVerifiedBlock = sourceBlock
	}

	// We have reached the end of the trace without observing a divergence. The last header is thus different
	// from the divergent header that the source originally sent us, so we return an error.
	return nil, nil, fmt.Errorf("source provided different header to the original header it provided (%X != %X)",
		previouslyVerifiedBlock.Hash(), divergentHeader.Hash())
}
