package transport

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameKeepsFieldOrder(t *testing.T) {
	f := Single("state", "online").
		Add("sw", "on").
		Add("level", 200).
		Add("color", json.RawMessage(`[12,200,5]`))

	b, err := json.Marshal(f)
	require.NoError(t, err)
	assert.Equal(t, `{"state":"online","sw":"on","level":200,"color":[12,200,5]}`, string(b))
	assert.Equal(t, []string{"state", "sw", "level", "color"}, f.Keys())
}

func TestFrameEmpty(t *testing.T) {
	b, err := json.Marshal(Frame{})
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(b))
}

func TestFrameEscapesKeys(t *testing.T) {
	b, err := json.Marshal(Single(`a"b`, "x"))
	require.NoError(t, err)
	assert.Equal(t, `{"a\"b":"x"}`, string(b))
}

func TestFrameBadValue(t *testing.T) {
	_, err := json.Marshal(Single("ch", make(chan int)))
	assert.Error(t, err)
}

func TestFrameGet(t *testing.T) {
	f := Single("version", "1.2.0")
	v, ok := f.Get("version")
	assert.True(t, ok)
	assert.Equal(t, "1.2.0", v)

	_, ok = f.Get("state")
	assert.False(t, ok)
}

func TestFakeInboundQueue(t *testing.T) {
	f := NewFake(`{"a":1}`, `{"b":2}`)

	require.True(t, f.CheckAvailable())
	assert.Equal(t, `{"a":1}`, f.RawMessage())
	// Current message stays until the next one is taken.
	assert.Equal(t, `{"a":1}`, f.RawMessage())

	require.True(t, f.CheckAvailable())
	assert.Equal(t, `{"b":2}`, f.RawMessage())
	assert.False(t, f.CheckAvailable())
}

func TestFakeConnectScript(t *testing.T) {
	f := &Fake{ConnectResults: []bool{false, true}}
	assert.False(t, f.Connect())
	assert.True(t, f.Connect())
	assert.True(t, f.Connect())
	assert.True(t, f.Connected())
}

func TestFakeSendError(t *testing.T) {
	f := NewFake()
	f.SendError = errors.New("link down")

	assert.Error(t, f.Send(Single("k", "v")))
	_, ok := f.Last()
	assert.False(t, ok)
}

func TestFakeOnSendReply(t *testing.T) {
	f := NewFake()
	f.OnSend = func(fr Frame) {
		if v, ok := fr.Get("ahrs"); ok && v == "on" {
			f.Push(`{"ahrs":[1,2,3]}`)
		}
	}
	require.NoError(t, f.Send(Single("ahrs", "on")))
	assert.True(t, f.CheckAvailable())
}
