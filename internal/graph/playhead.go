package graph

// PlayRegion bounds a play session: [Start, End) samples, optionally
// looping back to Start once End is reached.
type PlayRegion struct {
	Start   uint64
	End     uint64
	Looping bool
}

// PlayHead is the current playback cursor plus the play-session identity
// and generation, spec.md §3.
type PlayHead struct {
	SampleRate uint32
	BufferSize uint32
	PlayRegion PlayRegion
	PlayID     uint64
	Generation uint64
	Position   uint64
}

// AdvancePosition moves the play head forward by exactly one buffer,
// spec.md §3: "position advances by buffer_size per cycle".
func (p PlayHead) AdvancePosition() PlayHead {
	return p.AdvancePositionBy(int(p.BufferSize))
}

// AdvancePositionBy moves the play head forward by n samples, wrapping at
// play_region.End only if Looping, otherwise clamping - spec.md §8
// Boundary Behaviours. Generation always increases, even when the
// position is clamped at End.
func (p PlayHead) AdvancePositionBy(n int) PlayHead {
	p.Generation++

	end := p.PlayRegion.End
	positionEnd := p.Position + uint64(n)

	switch {
	case p.PlayRegion.Looping && p.Position >= end:
		p.Position = p.PlayRegion.Start
	case positionEnd > end && p.PlayRegion.Looping:
		p.Position = p.PlayRegion.Start + (positionEnd - end)
	case positionEnd > end:
		p.Position = end
	default:
		p.Position = positionEnd
	}

	return p
}

// WithPlayRegion installs a new play region, bumping play_id and resetting
// generation to the next value (not to zero) - see SPEC_FULL.md
// supplement 2a, grounded on original_source's PlayHead::with_play_region.
func (p PlayHead) WithPlayRegion(region PlayRegion) PlayHead {
	p.Generation++
	p.PlayID++
	p.PlayRegion = region
	return p
}

// PlayingSegmentSize is the number of real (non-silence) samples left to
// produce before the play region ends, clamped to [0, BufferSize] - the
// exact boundary arithmetic from SPEC_FULL.md supplement 2, used by S1.
func (p PlayHead) PlayingSegmentSize() int {
	if p.Position >= p.PlayRegion.End {
		return 0
	}
	remaining := p.PlayRegion.End - p.Position
	if remaining > uint64(p.BufferSize) {
		return int(p.BufferSize)
	}
	return int(remaining)
}
