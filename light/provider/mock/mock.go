package mock

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lumenchain/lumen/light/provider"
	"github.com/lumenchain/lumen/types"
)

// Mock is a deterministic in-memory provider backed by a fixed map of light
// blocks. It is safe for concurrent use.
type Mock struct {
	chainID string

	mtx          sync.Mutex
	blocks       map[int64]*types.LightBlock
	latestHeight int64
}

var _ provider.Provider = (*Mock)(nil)

// New creates a mock provider with the given set of light blocks keyed by
// height.
func New(chainID string, blocks map[int64]*types.LightBlock) *Mock {
	var latest int64
	for h := range blocks {
		if h > latest {
			latest = h
		}
	}
	return &Mock{
		chainID:      chainID,
		blocks:       blocks,
		latestHeight: latest,
	}
}

// ChainID returns the blockchain ID.
func (p *Mock) ChainID() string {
	return p.chainID
}

func (p *Mock) String() string {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	heights := make([]int64, 0, len(p.blocks))
	for h := range p.blocks {
		heights = append(heights, h)
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })

	var sb strings.Builder
	for _, h := range heights {
		fmt.Fprintf(&sb, " %d:%X", h, p.blocks[h].Hash())
	}
	return fmt.Sprintf("Mock{%s}", sb.String())
}

func (p *Mock) LightBlock(ctx context.Context, height int64) (*types.LightBlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mtx.Lock()
	defer p.mtx.Unlock()

	if height == 0 {
		height = p.latestHeight
	}
	if height > p.latestHeight {
		return nil, provider.ErrHeightTooHigh
	}
	lb, ok := p.blocks[height]
	if !ok {
		return nil, provider.ErrLightBlockNotFound
	}
	return lb, nil
}

// AddLightBlock makes a new light block available from the provider. It
// must be for a height greater than every block supplied so far.
func (p *Mock) AddLightBlock(lb *types.LightBlock) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if err := lb.ValidateBasic(p.chainID); err != nil {
		panic(fmt.Sprintf("unable to add light block, err: %v", err))
	}
	p.blocks[lb.Height] = lb
	if lb.Height > p.latestHeight {
		p.latestHeight = lb.Height
	}
}
