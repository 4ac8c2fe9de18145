package action

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/widget-sync/internal/automation"
)

type recorder struct {
	links []automation.Link
	err   error
}

func (r *recorder) Fire(_ context.Context, l automation.Link) error {
	r.links = append(r.links, l)
	return r.err
}

func TestRouterDispatchesByType(t *testing.T) {
	gpio, mqtt := &recorder{}, &recorder{}
	r := NewRouter().Handle("gpio", gpio).Default(mqtt)

	require.NoError(t, r.Fire(context.Background(), automation.Link{DeviceID: "17", Type: "gpio"}))
	require.NoError(t, r.Fire(context.Background(), automation.Link{DeviceID: "lamp", Type: "toggle"}))

	assert.Len(t, gpio.links, 1)
	require.Len(t, mqtt.links, 1)
	assert.Equal(t, "lamp", mqtt.links[0].DeviceID)
}

func TestRouterUnknownType(t *testing.T) {
	r := NewRouter().Handle("gpio", &recorder{})

	err := r.Fire(context.Background(), automation.Link{Type: "toggle"})
	assert.True(t, errors.Is(err, ErrUnknownAction))
}

func TestRouterPropagatesError(t *testing.T) {
	boom := errors.New("line busy")
	r := NewRouter().Handle("gpio", &recorder{err: boom})

	err := r.Fire(context.Background(), automation.Link{Type: "gpio"})
	assert.ErrorIs(t, err, boom)
}
