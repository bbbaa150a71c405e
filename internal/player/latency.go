package player

import "github.com/doismellburning/audiocloud-domain/internal/graph"

// RecomputeLatencies runs the two-pass latency-compensation relaxation
// over every connection in g - SPEC_FULL.md supplement 3, grounded on
// original_source's rust/audio-engine/src/connection.rs::update_latency.
//
// Pass one walks the graph in dependency order and computes each node's
// accumulated latency: its own processing latency plus the worst-case
// accumulated latency of whichever upstream path is slowest to reach
// it. Pass two sets every connection's delay so that every input
// feeding a given node arrives sample-aligned with the slowest path
// into that node, regardless of how many hops each path took to get
// there. nodeLatency reports a node's own (non-cumulative) processing
// latency in samples.
//
// Any connection whose delay shrank past what it has buffered reports
// ConnectionsNeedReset; RecomputeLatencies returns the set of such
// edges so the caller can decide how to recover (the Player calls
// SetLatency(0) on each of them and ignores the outcome).
func RecomputeLatencies(g *graph.Graph, nodeLatency func(graph.NodeID) int) []graph.EdgeKey {
	order := topoOrder(g)

	accumulated := make(map[graph.NodeID]int, len(order))
	for _, id := range order {
		maxUpstream := 0
		for _, req := range g.NodeRequirements(id) {
			if accumulated[req] > maxUpstream {
				maxUpstream = accumulated[req]
			}
		}
		accumulated[id] = maxUpstream + nodeLatency(id)
	}

	var needsReset []graph.EdgeKey
	for key, conn := range g.Connections() {
		targetLevel := accumulated[key.To.Node] - nodeLatency(key.To.Node)
		delay := targetLevel - accumulated[key.From.Node]
		if delay < 0 {
			delay = 0
		}
		if conn.SetLatency(delay) == graph.ConnectionsNeedReset {
			needsReset = append(needsReset, key)
		}
	}
	return needsReset
}

// topoOrder returns g's nodes in dependency order (every node's
// NodeRequirements appear before it). g is assumed acyclic, which
// Connect already enforces on every mutation.
func topoOrder(g *graph.Graph) []graph.NodeID {
	visited := map[graph.NodeID]bool{}
	var order []graph.NodeID
	var visit func(graph.NodeID)
	visit = func(id graph.NodeID) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, req := range g.NodeRequirements(id) {
			visit(req)
		}
		order = append(order, id)
	}
	for _, id := range g.NodeIDs() {
		visit(id)
	}
	return order
}
