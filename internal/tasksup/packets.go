package tasksup

import (
	"sync"
	"time"

	"github.com/doismellburning/audiocloud-domain/internal/task"
	"github.com/doismellburning/audiocloud-domain/internal/timeutil"
)

// packetCache is the nested play_id -> serial -> Timestamped<Packet>
// redelivery cache, grounded on
// tasks/supervisor/packets.rs::update_packet_cache's two-level
// structure and eviction sweep.
type packetCache struct {
	mu     sync.Mutex
	byPlay map[string]map[uint64]timeutil.Timestamped[task.StreamingPacket]
}

func newPacketCache() *packetCache {
	return &packetCache{byPlay: make(map[string]map[uint64]timeutil.Timestamped[task.StreamingPacket])}
}

func (c *packetCache) store(pkt task.StreamingPacket) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bucket, ok := c.byPlay[pkt.PlayID]
	if !ok {
		bucket = make(map[uint64]timeutil.Timestamped[task.StreamingPacket])
		c.byPlay[pkt.PlayID] = bucket
	}
	bucket[pkt.Serial] = timeutil.Now(pkt)
}

func (c *packetCache) get(playID string, serial uint64) (task.StreamingPacket, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bucket, ok := c.byPlay[playID]
	if !ok {
		return task.StreamingPacket{}, false
	}
	entry, ok := bucket[serial]
	if !ok {
		return task.StreamingPacket{}, false
	}
	return entry.Value(), true
}

// evictOlderThan drops every cached packet older than retention, then
// drops any play_id bucket left empty - grounded on
// update_packet_cache's retain-then-retain-empty-buckets sweep.
func (c *packetCache) evictOlderThan(retention time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for playID, bucket := range c.byPlay {
		for serial, entry := range bucket {
			if entry.Elapsed() >= retention {
				delete(bucket, serial)
			}
		}
		if len(bucket) == 0 {
			delete(c.byPlay, playID)
		}
	}
}
