// Package churn defines the two closed sets of event types exchanged
// between the Network and its Sections, plus a content hash used to seed
// deterministic pseudo-randomness from an event's content.
package churn

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/Bren2010/ageingsim/network/node"
	"github.com/Bren2010/ageingsim/network/prefix"
)

// NetworkEvent is something the Network delivers to a Section: a join, a
// loss, a relocation in or out, a prefix change, or the start of a merge.
// It is a closed, tagged variant; handlers must switch exhaustively over
// the concrete types below.
type NetworkEvent interface {
	isNetworkEvent()
	// Hash returns a content hash of the event, used solely as a
	// deterministic pseudo-random seed -- never for anything
	// security-sensitive.
	Hash() uint64
	// CountsForAgeing reports whether this event should increment a
	// section's ageing counter. True for everything except StartMerge,
	// Gone, and a Live event explicitly marked as non-counting (the
	// Live events synthesized while draining a merge).
	CountsForAgeing() bool
}

const (
	tagLive byte = iota
	tagLost
	tagGone
	tagRelocated
	tagPrefixChange
	tagStartMerge
)

func hashOf(tag byte, parts ...uint64) uint64 {
	buf := make([]byte, 1+8*len(parts))
	buf[0] = tag
	for i, p := range parts {
		binary.BigEndian.PutUint64(buf[1+8*i:], p)
	}
	return xxhash.Sum64(buf)
}

// Live reports that a node has joined (or is already a member, when emitted
// internally while assembling a merge). Counts is false for the synthetic
// Live events generated while a section is consuming its merge preamble.
type Live struct {
	Node   node.Node
	Counts bool
}

func (Live) isNetworkEvent() {}
func (e Live) Hash() uint64 {
	c := uint64(0)
	if e.Counts {
		c = 1
	}
	return hashOf(tagLive, uint64(e.Node.Name), uint64(e.Node.Age), c)
}
func (e Live) CountsForAgeing() bool { return e.Counts }

// Lost reports that a node with the given name has dropped.
type Lost struct {
	Name prefix.Name
}

func (Lost) isNetworkEvent()       {}
func (e Lost) Hash() uint64        { return hashOf(tagLost, uint64(e.Name)) }
func (e Lost) CountsForAgeing() bool { return true }

// Gone removes a node from a section's membership without generating a
// drop -- used to transfer ownership of a node during a merge.
type Gone struct {
	Node node.Node
}

func (Gone) isNetworkEvent() {}
func (e Gone) Hash() uint64 {
	return hashOf(tagGone, uint64(e.Node.Name), uint64(e.Node.Age))
}
func (e Gone) CountsForAgeing() bool { return false }

// Relocated removes a node because it is moving to another section, with
// no drop emitted.
type Relocated struct {
	Node node.Node
}

func (Relocated) isNetworkEvent() {}
func (e Relocated) Hash() uint64 {
	return hashOf(tagRelocated, uint64(e.Node.Name), uint64(e.Node.Age))
}
func (e Relocated) CountsForAgeing() bool { return true }

// PrefixChange tells a section to adopt a new prefix, used on both split
// and merge.
type PrefixChange struct {
	NewPrefix prefix.Prefix
}

func (PrefixChange) isNetworkEvent() {}
func (e PrefixChange) Hash() uint64 {
	return hashOf(tagPrefixChange, e.NewPrefix.Bits(), uint64(e.NewPrefix.Len()))
}
func (e PrefixChange) CountsForAgeing() bool { return true }

// StartMerge tells a section that it is now participating in a merge
// targeting the given (shorter) prefix.
type StartMerge struct {
	Target prefix.Prefix
}

func (StartMerge) isNetworkEvent() {}
func (e StartMerge) Hash() uint64 {
	return hashOf(tagStartMerge, e.Target.Bits(), uint64(e.Target.Len()))
}
func (e StartMerge) CountsForAgeing() bool { return false }

// SectionEvent is something a Section reports back to the Network after
// handling a NetworkEvent. Also a closed, tagged variant.
type SectionEvent interface {
	isSectionEvent()
}

// NodeDropped reports that node left the network outright (as opposed to
// being relocated or merged away).
type NodeDropped struct{ Node node.Node }

func (NodeDropped) isSectionEvent() {}

// NodeRejected reports that node was refused membership, e.g. because the
// section is at its young-elder cap.
type NodeRejected struct{ Node node.Node }

func (NodeRejected) isSectionEvent() {}

// NeedRelocate reports that node has come due for relocation to another
// section, per the power-of-two ageing counter rule.
type NeedRelocate struct{ Node node.Node }

func (NeedRelocate) isSectionEvent() {}

// RequestMerge reports that the section has fallen below the minimum size
// and wants to merge with its sibling.
type RequestMerge struct{}

func (RequestMerge) isSectionEvent() {}

// RequestSplit reports that the section has grown enough that it should be
// partitioned into two children.
type RequestSplit struct{}

func (RequestSplit) isSectionEvent() {}
