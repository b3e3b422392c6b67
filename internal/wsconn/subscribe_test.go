package wsconn

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shl888/feedcore/internal/venue"
)

func TestBuildSubscribeFrames_BinanceBatchesOfFifty(t *testing.T) {
	symbols := make([]string, 30) // 30 symbols -> 60 streams -> 2 batches of 50/10
	for i := range symbols {
		symbols[i] = "SYM"
	}
	id := 0
	frames := buildSubscribeFrames(venue.Binance, symbols, 50, &id)
	require.Len(t, frames, 2)

	var first binanceSubscribeMsg
	require.NoError(t, json.Unmarshal(frames[0], &first))
	assert.Equal(t, "SUBSCRIBE", first.Method)
	assert.Len(t, first.Params, 50)
	assert.Equal(t, 1, first.ID)

	var second binanceSubscribeMsg
	require.NoError(t, json.Unmarshal(frames[1], &second))
	assert.Len(t, second.Params, 10)
	assert.Equal(t, 2, second.ID)
}

func TestBuildSubscribeFrames_OKXIncludesBothChannels(t *testing.T) {
	symbols := []string{"BTC-USDT-SWAP"}
	id := 0
	frames := buildSubscribeFrames(venue.OKX, symbols, 50, &id)
	require.Len(t, frames, 1)

	var msg okxSubscribeMsg
	require.NoError(t, json.Unmarshal(frames[0], &msg))
	assert.Equal(t, "subscribe", msg.Op)
	require.Len(t, msg.Args, 2)
	channels := []string{msg.Args[0].Channel, msg.Args[1].Channel}
	assert.ElementsMatch(t, []string{"tickers", "funding-rate"}, channels)
}

func TestBuildUnsubscribeFrames_UsesUnsubscribeVerbs(t *testing.T) {
	id := 0
	binanceFrames := buildUnsubscribeFrames(venue.Binance, []string{"BTCUSDT"}, 50, &id)
	require.Len(t, binanceFrames, 1)
	var bmsg binanceSubscribeMsg
	require.NoError(t, json.Unmarshal(binanceFrames[0], &bmsg))
	assert.Equal(t, "UNSUBSCRIBE", bmsg.Method)

	id = 0
	okxFrames := buildUnsubscribeFrames(venue.OKX, []string{"BTC-USDT-SWAP"}, 50, &id)
	require.Len(t, okxFrames, 1)
	var omsg okxSubscribeMsg
	require.NoError(t, json.Unmarshal(okxFrames[0], &omsg))
	assert.Equal(t, "unsubscribe", omsg.Op)
}
