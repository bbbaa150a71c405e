package task

import "time"

// StreamingPacket is one chunk of compressed audio plus the peak
// meters collected while producing it, grounded on
// tasks/messages.rs::NotifyStreamingPacket / StreamingPacket.
type StreamingPacket struct {
	PlayID      string
	Serial      uint64
	Audio       [][]byte
	PeakMeters  map[string]float64
	GeneratedAt time.Time
}

// PacketFlusher accumulates compressed audio frames and peak meters
// for one play session and decides when to cut a packet, grounded on
// tasks/mod.rs's `max_packet_age_ms` / `max_packet_audio_frames`
// TaskOpts and task/handle_engine_events.rs's `maybe_send_packet`.
type PacketFlusher struct {
	maxAge    time.Duration
	maxFrames int

	playID     string
	serial     uint64
	audio      [][]byte
	peakMeters map[string]float64
	openedAt   time.Time
}

// NewPacketFlusher returns a flusher for one play session with the
// given flush thresholds.
func NewPacketFlusher(maxAge time.Duration, maxFrames int) *PacketFlusher {
	return &PacketFlusher{maxAge: maxAge, maxFrames: maxFrames}
}

// Reset starts a fresh play session, discarding any partially
// accumulated packet.
func (f *PacketFlusher) Reset(playID string) {
	f.playID = playID
	f.serial = 0
	f.audio = nil
	f.peakMeters = nil
	f.openedAt = time.Time{}
}

// PushAudio appends a compressed audio frame to the packet in
// progress.
func (f *PacketFlusher) PushAudio(frame []byte) {
	if f.openedAt.IsZero() {
		f.openedAt = time.Now()
	}
	f.audio = append(f.audio, frame)
}

// MergePeakMeters folds the latest per-node peak readings into the
// packet in progress, keeping the loudest value seen per node since
// the last flush.
func (f *PacketFlusher) MergePeakMeters(meters map[string]float64) {
	if f.peakMeters == nil {
		f.peakMeters = make(map[string]float64, len(meters))
	}
	for node, peak := range meters {
		if cur, ok := f.peakMeters[node]; !ok || peak > cur {
			f.peakMeters[node] = peak
		}
	}
}

// MaybeFlush returns a packet and true if either threshold has been
// crossed since the packet was opened; otherwise it returns false and
// leaves the accumulated state untouched.
func (f *PacketFlusher) MaybeFlush() (StreamingPacket, bool) {
	if f.openedAt.IsZero() {
		return StreamingPacket{}, false
	}
	aged := time.Since(f.openedAt) >= f.maxAge
	full := len(f.audio) >= f.maxFrames
	if !aged && !full {
		return StreamingPacket{}, false
	}
	return f.flush(), true
}

func (f *PacketFlusher) flush() StreamingPacket {
	pkt := StreamingPacket{
		PlayID:      f.playID,
		Serial:      f.serial,
		Audio:       f.audio,
		PeakMeters:  f.peakMeters,
		GeneratedAt: time.Now(),
	}
	f.serial++
	f.audio = nil
	f.peakMeters = nil
	f.openedAt = time.Time{}
	return pkt
}
