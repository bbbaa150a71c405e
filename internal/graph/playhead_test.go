package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlayHead_ClampsAtEndWhenNotLooping(t *testing.T) {
	p := PlayHead{
		BufferSize: 512,
		PlayRegion: PlayRegion{Start: 0, End: 96000, Looping: false},
		Position:   96000,
	}

	next := p.AdvancePosition()

	assert.Equal(t, uint64(96000), next.Position)
	assert.Equal(t, uint64(1), next.Generation, "generation still advances even when position is clamped")
}

func TestPlayHead_WrapsWhenLooping(t *testing.T) {
	p := PlayHead{
		BufferSize: 512,
		PlayRegion: PlayRegion{Start: 1000, End: 96000, Looping: true},
		Position:   96000,
	}

	next := p.AdvancePosition()

	assert.Equal(t, uint64(1000), next.Position)
}

func TestPlayHead_S1_LastPartialBuffer(t *testing.T) {
	// S1: 48kHz stereo 2.0s WAV (96000 samples), buffer_size=512.
	// 96000 / 512 = 187.5 -> 187 full buffers (95744 samples), then one
	// partial buffer carrying the remaining 256 real samples before silence.
	p := PlayHead{
		SampleRate: 48000,
		BufferSize: 512,
		PlayRegion: PlayRegion{Start: 0, End: 96000, Looping: false},
	}

	for i := 0; i < 187; i++ {
		assert.Equal(t, 512, p.PlayingSegmentSize())
		p = p.AdvancePosition()
	}

	assert.Equal(t, uint64(187*512), p.Position)
	assert.Equal(t, 256, p.PlayingSegmentSize())

	p = p.AdvancePosition()
	assert.Equal(t, uint64(188), p.Generation)
	assert.Equal(t, uint64(96000), p.Position)
	assert.Equal(t, 0, p.PlayingSegmentSize())
}

func TestPlayHead_WithPlayRegionBumpsPlayIDAndGeneration(t *testing.T) {
	p := PlayHead{PlayID: 3, Generation: 10}

	next := p.WithPlayRegion(PlayRegion{End: 1000})

	assert.Equal(t, uint64(4), next.PlayID)
	assert.Equal(t, uint64(11), next.Generation)
}
