package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aurora-x/aurora-x/internal/aurorax/organism"
)

func TestReceiveDedupsBySeq(t *testing.T) {
	n := NewNode(10, 1.0)
	pkt := organism.Packet{Seq: 1, TokenID: "tok"}

	assert.True(t, n.Receive(pkt))
	assert.False(t, n.Receive(pkt))
	assert.Len(t, n.Inbound(), 1)
}

func TestEnqueueAssignsUniqueSeqs(t *testing.T) {
	n := NewNode(10, 1.0)
	n.Enqueue([]organism.Packet{{}, {}, {}})

	seen := map[uint64]bool{}
	for i := 0; i < 3; i++ {
		p, ok := n.popOutbound()
		assert.True(t, ok)
		assert.False(t, seen[p.Seq])
		seen[p.Seq] = true
	}
	assert.Len(t, seen, 3)
}
