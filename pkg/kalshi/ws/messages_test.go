package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvelopeSubscribed(t *testing.T) {
	frame := []byte(`{"id":1,"type":"subscribed","msg":{"channel":"ticker","sid":7}}`)

	env, err := ParseEnvelope(frame)
	require.NoError(t, err)
	assert.Equal(t, TypeSubscribed, env.Type)
	assert.Equal(t, int64(1), env.ID)

	var sub SubscribedMsg
	require.NoError(t, json.Unmarshal(env.Msg, &sub))
	assert.Equal(t, ChannelTicker, sub.Channel)
	assert.Equal(t, int64(7), sub.SID)
}

func TestParseQuoteConvertsCents(t *testing.T) {
	msg := json.RawMessage(`{
		"market_ticker":"KXHIGHLAX-26AUG24-B70",
		"price":43,"yes_bid":41,"yes_ask":44,
		"volume":1200,"open_interest":900,"ts":1756000000
	}`)

	q, err := ParseQuote(msg)
	require.NoError(t, err)
	assert.Equal(t, "KXHIGHLAX-26AUG24-B70", q.MarketTicker)
	assert.InDelta(t, 0.41, q.YesBid, 1e-9)
	assert.InDelta(t, 0.44, q.YesAsk, 1e-9)
	assert.InDelta(t, 0.43, q.LastPrice, 1e-9)
	assert.Equal(t, 1200, q.Volume)
	assert.Equal(t, int64(1756000000), q.UnixTS)
}

func TestParseErrorMsg(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"id":2,"type":"error","msg":{"code":6,"msg":"Already subscribed"}}`))
	require.NoError(t, err)
	require.Equal(t, TypeError, env.Type)

	e, err := ParseErrorMsg(env.Msg)
	require.NoError(t, err)
	assert.Equal(t, 6, e.Code)
	assert.Contains(t, e.Error(), "Already subscribed")
}

func TestRequestMarshalShape(t *testing.T) {
	params, err := json.Marshal(SubscribeParams{
		Channels:      []string{ChannelTicker},
		MarketTickers: []string{"KXHIGHLAX-26AUG24-B70"},
	})
	require.NoError(t, err)

	data, err := json.Marshal(Request{ID: 3, Cmd: CommandSubscribe, Params: params})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "subscribe", decoded["cmd"])
	assert.Equal(t, float64(3), decoded["id"])
	inner := decoded["params"].(map[string]any)
	assert.Equal(t, []any{"ticker"}, inner["channels"])
}

func TestParseEnvelopeRejectsGarbage(t *testing.T) {
	_, err := ParseEnvelope([]byte("not json"))
	assert.Error(t, err)
}
