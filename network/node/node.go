// Package node implements the simulated peer: its identity, its age, and the
// age-driven weighting used when deciding which node to drop.
package node

import (
	"fmt"
	"math/rand"

	"github.com/Bren2010/ageingsim/network/prefix"
)

// AdultAge is the age at which a node is considered an adult rather than an
// infant or a young elder.
const AdultAge uint8 = 4

// maxAge is the saturation point for Age; relocation never increments past
// it.
const maxAge uint8 = 255

// DropDist selects how a node's age maps to its probability of being chosen
// for a random drop.
type DropDist int

const (
	// Exp halves a node's drop probability for every point of age.
	Exp DropDist = iota
	// Rev makes drop probability inversely proportional to age.
	Rev
)

// ParseDropDist parses the --drop-dist flag/config value. It accepts the
// long and short spellings the original tool did.
func ParseDropDist(s string) (DropDist, error) {
	switch s {
	case "exp", "exponential", "":
		return Exp, nil
	case "rev", "reverse-proportional":
		return Rev, nil
	default:
		return 0, fmt.Errorf("node: unknown drop distribution %q (want exp or rev)", s)
	}
}

func (d DropDist) String() string {
	if d == Rev {
		return "rev"
	}
	return "exp"
}

// Node is a single simulated peer.
type Node struct {
	Name prefix.Name
	Age  uint8
}

// New creates a node with a uniformly random name and the given initial age.
func New(r *rand.Rand, initAge uint8) Node {
	return Node{Name: prefix.Name(r.Uint64()), Age: initAge}
}

// IsAdult reports whether the node has aged past the adult threshold.
func (n Node) IsAdult() bool { return n.Age >= AdultAge }

// DropWeight returns the relative probability of this node being chosen by
// the age-weighted drop scan, under the given distribution. It is purely
// informational/testable; the actual scan uses AcceptDrop so it can work as
// a single pass rather than needing the full weight table.
func (n Node) DropWeight(dist DropDist) float64 {
	switch dist {
	case Rev:
		return 1 / float64(n.Age)
	default:
		if n.Age >= 64 {
			return 0
		}
		return 1 / float64(uint64(1)<<n.Age)
	}
}

// AcceptDrop draws a single pseudo-random value from r, mixes in seed (the
// content hash of the Lost event this candidate would produce), and reports
// whether this node should be accepted as the drop candidate during an
// age-weighted scan. Older nodes are accepted with exponentially smaller
// probability (Exp) or with probability inversely proportional to age (Rev),
// matching DropWeight.
func (n Node) AcceptDrop(r *rand.Rand, dist DropDist, seed uint64) bool {
	draw := r.Uint64() ^ seed
	switch dist {
	case Rev:
		if n.Age == 0 {
			return true
		}
		return draw%uint64(n.Age) == 0
	default:
		if n.Age >= 64 {
			return false
		}
		return draw%(uint64(1)<<n.Age) == 0
	}
}

// Relocate rewrites the node's name so that it matches newPrefix, drawing
// fresh random bits below the prefix's length, and increments its age
// (saturating at 255). The simulation's node identity after relocation is
// this new-name, age-incremented node, not the one that left.
func (n *Node) Relocate(r *rand.Rand, newPrefix prefix.Prefix) {
	n.Name = newPrefix.RandomMatchingName(r)
	if n.Age < maxAge {
		n.Age++
	}
}

// Rejoined resets the node's age to initAge after it rejoins the network
// having previously left it.
func (n *Node) Rejoined(initAge uint8) {
	n.Age = initAge
}
