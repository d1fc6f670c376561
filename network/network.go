// Package network ties Sections together into a single simulated network:
// it dispatches NetworkEvents to the Section(s) they target, reacts to the
// SectionEvents that come back (relocation, merge, split), coordinates
// multi-section merges, and drives the three random-churn operations the
// simulation loop calls each step.
package network

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/Bren2010/ageingsim/network/churn"
	"github.com/Bren2010/ageingsim/network/node"
	"github.com/Bren2010/ageingsim/network/params"
	"github.com/Bren2010/ageingsim/network/prefix"
	"github.com/Bren2010/ageingsim/network/section"
)

// maxEventsPerStep bounds the cascade a single ProcessEvents call may drain,
// so a misconfiguration that causes events to multiply forever fails loudly
// instead of hanging.
const maxEventsPerStep = 1_000_000

// pendingMerge tracks which sections still owe a PrefixChange before a merge
// targeting a given (shorter) prefix can be finalized.
type pendingMerge struct {
	target  prefix.Prefix
	waiting map[prefix.Prefix]bool
}

func newPendingMerge(target prefix.Prefix, participants []prefix.Prefix) *pendingMerge {
	waiting := make(map[prefix.Prefix]bool, len(participants))
	for _, p := range participants {
		waiting[p] = true
	}
	return &pendingMerge{target: target, waiting: waiting}
}

func (pm *pendingMerge) markDone(p prefix.Prefix) {
	if _, ok := pm.waiting[p]; ok {
		pm.waiting[p] = false
	}
}

func (pm *pendingMerge) ready() bool {
	for _, waiting := range pm.waiting {
		if waiting {
			return false
		}
	}
	return true
}

func (pm *pendingMerge) participants() []prefix.Prefix {
	out := make([]prefix.Prefix, 0, len(pm.waiting))
	for p := range pm.waiting {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Snapshot captures the network's section structure at one point in time.
type Snapshot struct {
	TotalNodes           int
	SectionCount         int
	CompleteSectionCount int
}

// Output accumulates the counters the driver loop reports in its summaries.
type Output struct {
	Adds        uint64
	Drops       uint64
	Rejoins     uint64
	Rejections  uint64
	Relocations uint64
	Churn       uint64
	DropsByAge  map[uint8]uint64
	Snapshots   []Snapshot
}

// Network owns every Section plus the nodes that have left the network but
// might still rejoin, the events in flight between sections, and the
// in-progress merges waiting on all their participants.
type Network struct {
	sections      map[prefix.Prefix]*section.Section
	leftNodes     []node.Node
	eventQueue    map[prefix.Prefix][]churn.NetworkEvent
	pendingMerges map[prefix.Prefix]*pendingMerge
	params        *params.Params
	rng           *rand.Rand
	output        Output
}

// New creates a network with a single section covering the whole name space.
func New(p *params.Params, rng *rand.Rand) *Network {
	return &Network{
		sections:      map[prefix.Prefix]*section.Section{prefix.Empty(): section.New(prefix.Empty())},
		eventQueue:    make(map[prefix.Prefix][]churn.NetworkEvent),
		pendingMerges: make(map[prefix.Prefix]*pendingMerge),
		params:        p,
		rng:           rng,
		output:        Output{DropsByAge: make(map[uint8]uint64)},
	}
}

// Output returns the accumulated churn counters and recorded snapshots.
func (n *Network) Output() Output { return n.output }

// SectionCount returns the number of sections currently in the network.
func (n *Network) SectionCount() int { return len(n.sections) }

// Rand returns the network's pseudo-random source, so a driver loop can use
// the same stream (and the same seed) for choosing which churn operation to
// run next, keeping a whole run reproducible from a single seed.
func (n *Network) Rand() *rand.Rand { return n.rng }

func (n *Network) sortedPrefixes() []prefix.Prefix {
	out := make([]prefix.Prefix, 0, len(n.sections))
	for p := range n.sections {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func (n *Network) hasEvents() bool {
	for _, q := range n.eventQueue {
		if len(q) > 0 {
			return true
		}
	}
	return false
}

func (n *Network) enqueue(p prefix.Prefix, ev churn.NetworkEvent) {
	n.eventQueue[p] = append(n.eventQueue[p], ev)
}

func (n *Network) findSection(name prefix.Name) (prefix.Prefix, bool) {
	for p := range n.sections {
		if p.Matches(name) {
			return p, true
		}
	}
	return prefix.Prefix{}, false
}

// ProcessEvents drains the event queue to quiescence: every NetworkEvent
// delivered to a Section may produce SectionEvents, which this dispatcher
// reacts to -- sometimes by queuing further NetworkEvents -- until nothing
// is left to process. Pending merges that have collected all of their
// participants' PrefixChange acknowledgements are finalized afterwards, and
// a structural snapshot is recorded.
func (n *Network) ProcessEvents() error {
	processed := 0
	for n.hasEvents() {
		batch := n.eventQueue
		n.eventQueue = make(map[prefix.Prefix][]churn.NetworkEvent)

		prefixes := make([]prefix.Prefix, 0, len(batch))
		for p := range batch {
			prefixes = append(prefixes, p)
		}
		sort.Slice(prefixes, func(i, j int) bool { return prefixes[i].Less(prefixes[j]) })

		for _, p := range prefixes {
			for _, ev := range batch[p] {
				processed++
				if processed > maxEventsPerStep {
					return fmt.Errorf("network: exceeded %d events in a single step, likely a split/merge cycle", maxEventsPerStep)
				}

				if pc, ok := ev.(churn.PrefixChange); ok {
					if pm, exists := n.pendingMerges[pc.NewPrefix]; exists {
						pm.markDone(p)
					}
				}

				sec, ok := n.sections[p]
				if !ok {
					continue
				}
				for _, se := range sec.HandleEvent(ev, n.params) {
					if err := n.processSectionEvent(p, se); err != nil {
						return err
					}
				}
			}
		}
	}

	n.finalizeMerges()
	n.captureSnapshot()
	return nil
}

func (n *Network) processSectionEvent(from prefix.Prefix, se churn.SectionEvent) error {
	switch e := se.(type) {
	case churn.NodeDropped:
		n.leftNodes = append(n.leftNodes, e.Node)
	case churn.NodeRejected:
		n.output.Rejections++
	case churn.NeedRelocate:
		n.relocate(from, e.Node)
	case churn.RequestMerge:
		n.requestMerge(from)
	case churn.RequestSplit:
		return n.requestSplit(from)
	default:
		panic("network: unreachable section event type")
	}
	return nil
}

// relocate moves node out of its current section and into the least-full
// section at a neighbouring prefix. IsNeighbour only accepts the same-length
// sibling prefix, so there is at most one candidate; when no section sits at
// exactly that prefix (at the root, or once the sibling has itself split),
// the node is relocated within its own section. Sections at other prefix
// lengths are not considered. The source section is told the old name left via Relocated; the destination
// gets a fresh Live carrying the node's new name and incremented age.
func (n *Network) relocate(from prefix.Prefix, nd node.Node) {
	var neighbours []prefix.Prefix
	for p := range n.sections {
		if p.IsNeighbour(from) {
			neighbours = append(neighbours, p)
		}
	}
	sort.Slice(neighbours, func(i, j int) bool {
		li, lj := n.sections[neighbours[i]].Len(), n.sections[neighbours[j]].Len()
		if li != lj {
			return li < lj
		}
		return neighbours[i].Less(neighbours[j])
	})

	target := from
	if len(neighbours) > 0 {
		target = neighbours[0]
	}

	old := nd
	nd.Relocate(n.rng, target)

	n.enqueue(from, churn.Relocated{Node: old})
	n.enqueue(target, churn.Live{Node: nd, Counts: true})

	n.output.Relocations++
	n.output.Churn += 2
}

// requestMerge is invoked when a non-root section has fallen below the
// elder quorum. It computes the merge's target (the requesting section's
// parent prefix), folds it against any merge already in flight for a
// compatible prefix, and -- once a participant set is settled -- queues
// each participant a StartMerge/Gone/Live/PrefixChange preamble describing
// what its post-merge membership will look like.
func (n *Network) requestMerge(from prefix.Prefix) {
	target, err := from.Shorten()
	if err != nil {
		return
	}

	for existing := range n.pendingMerges {
		if !existing.IsCompatibleWith(target) {
			continue
		}
		if existing.IsAncestor(target) || existing.Equal(target) {
			return // a larger or identical merge is already in flight
		}
		delete(n.pendingMerges, existing) // target is an ancestor of existing: supersede it
	}

	var participants []prefix.Prefix
	for p := range n.sections {
		if target.IsAncestor(p) {
			participants = append(participants, p)
		}
	}
	sort.Slice(participants, func(i, j int) bool { return participants[i].Less(participants[j]) })

	n.pendingMerges[target] = newPendingMerge(target, participants)

	merged := n.reduceSections(participants)
	for _, p := range participants {
		n.eventQueue[p] = n.mergePreamble(merged, p)
	}
}

// mergePreamble describes, from the point of view of the section currently
// at p, what changes when it becomes part of merged: elders it loses (Gone),
// elders it gains (Live, non-counting), and finally the PrefixChange that
// marks the transition complete.
func (n *Network) mergePreamble(merged *section.Section, p prefix.Prefix) []churn.NetworkEvent {
	old := n.sections[p]

	oldElders := make(map[prefix.Name]node.Node)
	for _, e := range old.Elders() {
		oldElders[e.Name] = e
	}
	newElders := make(map[prefix.Name]node.Node)
	for _, e := range merged.Elders() {
		newElders[e.Name] = e
	}

	var lost, gained []node.Node
	for name, nd := range oldElders {
		if _, ok := newElders[name]; !ok {
			lost = append(lost, nd)
		}
	}
	for name, nd := range newElders {
		if _, ok := oldElders[name]; !ok {
			gained = append(gained, nd)
		}
	}
	sort.Slice(lost, func(i, j int) bool { return lost[i].Name < lost[j].Name })
	sort.Slice(gained, func(i, j int) bool { return gained[i].Name < gained[j].Name })

	events := []churn.NetworkEvent{churn.StartMerge{Target: merged.Prefix()}}
	for _, nd := range lost {
		events = append(events, churn.Gone{Node: nd})
	}
	for _, nd := range gained {
		events = append(events, churn.Live{Node: nd, Counts: false})
	}
	events = append(events, churn.PrefixChange{NewPrefix: merged.Prefix()})
	return events
}

// reduceSections merges the given sections pairwise -- always the two
// sections that sort last in prefix order (highest bits first), so a
// multi-way merge produced
// by a chain of supersessions collapses deterministically -- without
// mutating the network's own section map.
func (n *Network) reduceSections(participants []prefix.Prefix) *section.Section {
	secs := make([]*section.Section, 0, len(participants))
	for _, p := range participants {
		if s, ok := n.sections[p]; ok {
			secs = append(secs, s)
		}
	}
	for len(secs) > 1 {
		sort.Slice(secs, func(i, j int) bool { return secs[i].Prefix().Less(secs[j].Prefix()) })
		b := secs[len(secs)-1]
		a := secs[len(secs)-2]
		secs = secs[:len(secs)-2]
		secs = append(secs, a.Merge(b, n.params))
	}
	return secs[0]
}

func (n *Network) finalizeMerges() {
	var ready []prefix.Prefix
	for target, pm := range n.pendingMerges {
		if pm.ready() {
			ready = append(ready, target)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].Less(ready[j]) })

	for _, target := range ready {
		pm := n.pendingMerges[target]
		delete(n.pendingMerges, target)

		participants := pm.participants()
		merged := n.reduceSections(participants)
		for _, p := range participants {
			delete(n.sections, p)
			delete(n.eventQueue, p)
		}
		n.sections[merged.Prefix()] = merged
		n.output.Churn++
	}
}

// requestSplit partitions the section at p into two children and replaces
// it in the network's section map.
func (n *Network) requestSplit(p prefix.Prefix) error {
	sec, ok := n.sections[p]
	if !ok {
		return nil
	}
	lo, hi, loEvents, hiEvents, err := sec.Split(n.params)
	if err != nil {
		return fmt.Errorf("network: splitting section %s: %w", p, err)
	}

	delete(n.sections, p)
	delete(n.eventQueue, p)
	n.sections[lo.Prefix()] = lo
	n.sections[hi.Prefix()] = hi
	n.eventQueue[lo.Prefix()] = append(n.eventQueue[lo.Prefix()], loEvents...)
	n.eventQueue[hi.Prefix()] = append(n.eventQueue[hi.Prefix()], hiEvents...)
	n.output.Churn++
	return nil
}

func (n *Network) captureSnapshot() {
	complete := 0
	total := 0
	for _, s := range n.sections {
		if s.IsComplete() {
			complete++
		}
		total += s.Len()
	}
	n.output.Snapshots = append(n.output.Snapshots, Snapshot{
		TotalNodes:           total,
		SectionCount:         len(n.sections),
		CompleteSectionCount: complete,
	})
}

// AddRandomNode introduces a single new node with a uniformly random name
// at the configured initial age, queuing a Live event for the section that
// owns its name.
func (n *Network) AddRandomNode() {
	nd := node.New(n.rng, n.params.InitAge)
	p, ok := n.findSection(nd.Name)
	if !ok {
		return
	}
	n.enqueue(p, churn.Live{Node: nd, Counts: true})
	n.output.Adds++
	n.output.Churn++
}

// DropRandomNode performs the age-weighted scan for a node to drop: it walks
// every section in prefix order, each section's members youngest-first, and
// accepts the first node that wins its age-weighted coin flip. Each
// candidate's coin flip is drawn from the network's RNG stream combined with
// the content hash of the Lost event that candidate would produce, so the
// same RNG state can still land on different candidates depending on which
// node is being considered.
func (n *Network) DropRandomNode() {
	for _, p := range n.sortedPrefixes() {
		for _, nd := range n.sections[p].SortedByAge() {
			lost := churn.Lost{Name: nd.Name}
			if !nd.AcceptDrop(n.rng, n.params.DropDist, lost.Hash()) {
				continue
			}
			n.enqueue(p, lost)
			n.output.Drops++
			n.output.Churn++
			n.output.DropsByAge[nd.Age]++
			return
		}
	}
}

// RejoinRandomNode brings back a uniformly random node that had previously
// left the network, resetting its age to the configured initial age and
// re-queuing it as a Live join. It is a no-op, beyond the counters, if no
// node has left yet.
func (n *Network) RejoinRandomNode() {
	n.output.Rejoins++
	n.output.Churn++
	if len(n.leftNodes) == 0 {
		return
	}

	idx := n.rng.Intn(len(n.leftNodes))
	nd := n.leftNodes[idx]
	n.leftNodes[idx] = n.leftNodes[len(n.leftNodes)-1]
	n.leftNodes = n.leftNodes[:len(n.leftNodes)-1]

	nd.Rejoined(n.params.InitAge)
	p, ok := n.findSection(nd.Name)
	if !ok {
		return
	}
	n.enqueue(p, churn.Live{Node: nd, Counts: true})
}

// AgeDistribution counts the current membership by age, across every
// section.
func (n *Network) AgeDistribution() map[uint8]int {
	dist := make(map[uint8]int)
	for _, s := range n.sections {
		for _, nd := range s.Nodes() {
			dist[nd.Age]++
		}
	}
	return dist
}

// CheckInvariants walks the current section map and reports the first
// violation of the structural invariants the simulation is supposed to
// maintain: every name belongs to exactly one section, and every member's
// name actually matches the prefix of the section holding it.
func (n *Network) CheckInvariants() error {
	seen := make(map[prefix.Name]prefix.Prefix)
	prefixes := n.sortedPrefixes()

	for i, p := range prefixes {
		for j, other := range prefixes {
			if i != j && p.IsCompatibleWith(other) {
				return fmt.Errorf("network: sections %s and %s overlap", p, other)
			}
		}
		for _, nd := range n.sections[p].Nodes() {
			if !p.Matches(nd.Name) {
				return fmt.Errorf("network: node %d is a member of section %s but does not match its prefix", nd.Name, p)
			}
			if owner, ok := seen[nd.Name]; ok {
				return fmt.Errorf("network: node %d belongs to both section %s and %s", nd.Name, owner, p)
			}
			seen[nd.Name] = p
		}
	}

	// Disjoint prefixes cover the whole name space exactly when their sizes,
	// 2^(64-len) each, add up to 2^64, which wraps to zero in a uint64 (as
	// does the root's own size).
	var covered uint64
	for _, p := range prefixes {
		covered += uint64(1) << (64 - p.Len())
	}
	if len(prefixes) == 0 || covered != 0 {
		return fmt.Errorf("network: sections do not cover the whole name space")
	}
	return nil
}
