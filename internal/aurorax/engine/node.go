package engine

import (
	"github.com/aurora-x/aurora-x/internal/aurorax/energy"
	"github.com/aurora-x/aurora-x/internal/aurorax/organism"
)

// Node owns the per-node state the Engine's single-threaded loop mutates:
// its energy store, its outbound symbol buffer, and its received-packet
// dedup set (spec §3 ownership, §5 "strictly owned, no locking required").
type Node struct {
	Energy *energy.Store

	outbound []organism.Packet
	nextSeq  uint64

	seen    map[uint64]struct{}
	inbound []organism.Packet
}

// NewNode creates a Node with its own energy store.
func NewNode(capacityJ, initialFraction float64) *Node {
	return &Node{
		Energy: energy.New(capacityJ, initialFraction),
		seen:    make(map[uint64]struct{}),
	}
}

// Enqueue assigns each packet a fresh globally-unique seq and appends it to
// the node's outbound buffer.
func (n *Node) Enqueue(packets []organism.Packet) {
	for _, p := range packets {
		n.nextSeq++
		p.Seq = n.nextSeq
		n.outbound = append(n.outbound, p)
	}
}

// popOutbound removes and returns the single next queued outbound packet,
// used by the send loop to pair one transmit attempt with one symbol.
func (n *Node) popOutbound() (organism.Packet, bool) {
	if len(n.outbound) == 0 {
		return organism.Packet{}, false
	}
	p := n.outbound[0]
	n.outbound = n.outbound[1:]
	return p, true
}

// requeueOutbound puts a packet whose transmit attempt failed back at the
// tail of the outbound buffer for a later retry.
func (n *Node) requeueOutbound(p organism.Packet) {
	n.outbound = append(n.outbound, p)
}

// Receive accepts an incoming packet if its seq has not been seen before
// (spec §8 invariant: seq unique in the dedup set). Returns false if it
// was a duplicate.
func (n *Node) Receive(p organism.Packet) bool {
	if _, ok := n.seen[p.Seq]; ok {
		return false
	}
	n.seen[p.Seq] = struct{}{}
	n.inbound = append(n.inbound, p)
	return true
}

// Inbound returns the full set of accepted (deduplicated) packets received
// so far.
func (n *Node) Inbound() []organism.Packet {
	return n.inbound
}
