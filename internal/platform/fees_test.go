package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"weatheredge/pkg/types"
)

func TestKalshiEntryFee(t *testing.T) {
	assert.InDelta(t, 0.07*0.5*0.5, kalshiEntryFee(0.50), 1e-12)
	assert.InDelta(t, 0.07*0.75*0.25, kalshiEntryFee(0.75), 1e-12)
	assert.Equal(t, 0.0, kalshiEntryFee(0))
	assert.Equal(t, 0.0, kalshiEntryFee(1))
}

func TestNoQuoteComplement(t *testing.T) {
	m := types.Market{BestBid: 0.60, BestAsk: 0.66}
	bid, ask := NoQuote(m)
	assert.InDelta(t, 0.34, bid, 1e-12)
	assert.InDelta(t, 0.40, ask, 1e-12)

	// Unquoted side stays zero instead of becoming 1.
	bid, ask = NoQuote(types.Market{})
	assert.Equal(t, 0.0, bid)
	assert.Equal(t, 0.0, ask)
}
