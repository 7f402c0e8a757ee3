package mock

import (
	"context"

	"github.com/lumenchain/lumen/light/provider"
	"github.com/lumenchain/lumen/types"
)

// Dead is a provider that always fails to respond. It is used to exercise
// connectivity-failure handling.
type Dead struct {
	chainID string
}

var _ provider.Provider = (*Dead)(nil)

func NewDead(chainID string) *Dead {
	return &Dead{chainID: chainID}
}

func (p *Dead) ChainID() string { return p.chainID }

func (p *Dead) String() string { return "deadMock" }

func (p *Dead) LightBlock(_ context.Context, _ int64) (*types.LightBlock, error) {
	return nil, provider.ErrNoResponse
}
