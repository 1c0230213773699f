package inpage

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperifyio/ptsnap/internal/bridge"
	"github.com/hyperifyio/ptsnap/internal/dom"
	"github.com/hyperifyio/ptsnap/internal/protocol"
)

func TestLoopSerializesCommandsAndInputs(t *testing.T) {
	c, rec := setup(t)
	loop := NewLoop(c)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- loop.Run(ctx) }()

	resp, err := loop.Command(ctx, protocol.Command{Type: protocol.CmdStartSelection})
	require.NoError(t, err)
	assert.True(t, resp.OK)

	var in Input
	require.NoError(t, loop.Do(ctx, func(c *Component) {
		in, err = WireInput{Type: "click", Target: "#ad"}.Resolve(c.Document())
	}))
	require.NoError(t, err)
	d, err := loop.Input(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, suppress, d)
	assert.Len(t, rec.events, 4)

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
	_, err = loop.Command(context.Background(), protocol.Command{Type: protocol.CmdExtract})
	assert.ErrorIs(t, err, bridge.ErrNoReceiver)
}

func TestWireInputResolve(t *testing.T) {
	c, _ := setup(t)
	doc := c.Document()
	var w WireInput
	require.NoError(t, json.Unmarshal([]byte(`{"type":"pointermove","x":5,"y":6,"boxes":{"#ad":{"x":0,"y":0,"width":10,"height":10}}}`), &w))
	in, err := w.Resolve(doc)
	require.NoError(t, err)
	assert.Equal(t, PointerMove{X: 5, Y: 6}, in)
	box, ok := doc.Box(doc.GetElementByID("ad"))
	require.True(t, ok)
	assert.Equal(t, dom.Rect{Width: 10, Height: 10}, box)

	in, err = WireInput{Type: "contextmenu", Target: "#adcopy"}.Resolve(doc)
	require.NoError(t, err)
	cm := in.(ContextMenu)
	assert.Equal(t, "span", cm.Path[0].TagName())

	in, err = WireInput{Type: "keydown", Key: "Escape"}.Resolve(doc)
	require.NoError(t, err)
	assert.Equal(t, KeyDown{Key: "Escape"}, in)

	in, err = WireInput{Type: "resize"}.Resolve(doc)
	require.NoError(t, err)
	assert.Equal(t, ScrollOrResize{Resize: true}, in)

	_, err = WireInput{Type: "click", Target: "#nope"}.Resolve(doc)
	assert.Error(t, err)
	_, err = WireInput{Type: "wheel"}.Resolve(doc)
	assert.Error(t, err)
}

func TestDispatchCommandInput(t *testing.T) {
	c, rec := setup(t)
	assert.Equal(t, Disposition{}, c.Dispatch(Command{Type: protocol.CmdExtract}))
	assert.Equal(t, []string{protocol.EvPageText}, rec.types())
}
