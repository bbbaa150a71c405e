package driverrt

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doismellburning/audiocloud-domain/internal/fixedinstance"
)

func TestSerialBackend_SetParameterWritesALineToThePort(t *testing.T) {
	ptmx, pts, err := pty.Open()
	require.NoError(t, err)
	defer ptmx.Close()
	defer pts.Close()

	b := NewSerialBackend(pts)
	require.NoError(t, b.SetParameter(context.Background(), "gain", 2, 0.5))

	line := make([]byte, 64)
	_ = ptmx.SetReadDeadline(time.Now().Add(time.Second))
	n, err := ptmx.Read(line)
	require.NoError(t, err)
	assert.Contains(t, string(line[:n]), "SET gain 2 0.5")
}

func TestSerialBackend_PollParsesDeviceReportedLines(t *testing.T) {
	ptmx, pts, err := pty.Open()
	require.NoError(t, err)
	defer ptmx.Close()
	defer pts.Close()

	b := NewSerialBackend(pts)

	fmt.Fprintf(ptmx, "PARAM gain 0.75\nPOWERED 1 UP\n")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	events, err := b.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventParameterChanged, events[0].Kind)
	assert.Equal(t, "gain", events[0].Parameter)
	assert.Equal(t, 0.75, events[0].Value)
	assert.Equal(t, EventPowerChanged, events[1].Kind)
	assert.True(t, events[1].PowerUp)
}

func TestSerialBackend_SetPlayStateWritesTransportCommand(t *testing.T) {
	ptmx, pts, err := pty.Open()
	require.NoError(t, err)
	defer ptmx.Close()
	defer pts.Close()

	b := NewSerialBackend(pts)
	require.NoError(t, b.SetPlayState(context.Background(), fixedinstance.DesiredPlayState{
		Kind:   fixedinstance.DesiredPlaying,
		PlayID: "p1",
	}))

	line := make([]byte, 64)
	_ = ptmx.SetReadDeadline(time.Now().Add(time.Second))
	n, err := ptmx.Read(line)
	require.NoError(t, err)
	assert.Contains(t, string(line[:n]), "PLAY")
	assert.Contains(t, string(line[:n]), "p1")
}
