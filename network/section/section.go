// Package section implements the per-section event state machine: the
// membership, elder set, split/merge readiness and the handling of each
// NetworkEvent case.
package section

import (
	"math/bits"
	"sort"

	"github.com/Bren2010/ageingsim/network/churn"
	"github.com/Bren2010/ageingsim/network/node"
	"github.com/Bren2010/ageingsim/network/params"
	"github.com/Bren2010/ageingsim/network/prefix"
)

// ElderCount is the quorum size: the number of highest-age nodes in a
// section that are considered elders.
const ElderCount = 8

// Section owns an ordered set of nodes identified by a single Prefix.
type Section struct {
	prefix  prefix.Prefix
	members map[prefix.Name]node.Node
	counter uint64
	merging bool
}

// New creates an empty section covering p.
func New(p prefix.Prefix) *Section {
	return &Section{prefix: p, members: make(map[prefix.Name]node.Node)}
}

// Prefix returns the section's current prefix.
func (s *Section) Prefix() prefix.Prefix { return s.prefix }

// Len returns the number of member nodes.
func (s *Section) Len() int { return len(s.members) }

// IsRoot reports whether this is the section covering the whole name space.
func (s *Section) IsRoot() bool { return s.prefix.Len() == 0 }

// IsMerging reports whether the section has an in-progress merge.
func (s *Section) IsMerging() bool { return s.merging }

// Nodes returns the section's members sorted by Name, for deterministic
// iteration.
func (s *Section) Nodes() []node.Node {
	return s.sortedByName()
}

func (s *Section) sortedByName() []node.Node {
	out := make([]node.Node, 0, len(s.members))
	for _, n := range s.members {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Elders returns the top ElderCount nodes by age, tie-broken by the
// smallest Name, in that (age desc, name asc) order. If the section has
// fewer than ElderCount members, all of them are elders.
func (s *Section) Elders() []node.Node {
	all := s.sortedByName()
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Age != all[j].Age {
			return all[i].Age > all[j].Age
		}
		return all[i].Name < all[j].Name
	})
	n := ElderCount
	if len(all) < n {
		n = len(all)
	}
	return append([]node.Node(nil), all[:n]...)
}

func (s *Section) elderSet() map[prefix.Name]struct{} {
	elders := s.Elders()
	set := make(map[prefix.Name]struct{}, len(elders))
	for _, e := range elders {
		set[e.Name] = struct{}{}
	}
	return set
}

func (s *Section) isElder(name prefix.Name) bool {
	_, ok := s.elderSet()[name]
	return ok
}

func (s *Section) youngElderCount() int {
	count := 0
	for _, e := range s.Elders() {
		if e.Age < node.AdultAge {
			count++
		}
	}
	return count
}

// IsComplete reports whether the section has at least ElderCount elders,
// all of adult age.
func (s *Section) IsComplete() bool {
	elders := s.Elders()
	if len(elders) < ElderCount {
		return false
	}
	for _, e := range elders {
		if e.Age < node.AdultAge {
			return false
		}
	}
	return true
}

// dueRelocationCandidate checks whether the current (post-increment) counter
// value is a power of two and, if so, looks for the non-elder member whose
// age matches the position that just came due, breaking ties by the
// smallest Name.
func (s *Section) dueRelocationCandidate() (churn.SectionEvent, bool) {
	if s.counter == 0 || s.counter&(s.counter-1) != 0 {
		return nil, false
	}
	dueAge := uint8(bits.TrailingZeros64(s.counter)) + 1
	elders := s.elderSet()
	for _, n := range s.sortedByName() {
		if n.Age != dueAge {
			continue
		}
		if _, elder := elders[n.Name]; elder {
			continue
		}
		return churn.NeedRelocate{Node: n}, true
	}
	return nil, false
}

// splitReady reports whether the membership has grown enough to request a
// split, per the configured strategy.
func (s *Section) splitReady(p *params.Params) bool {
	if s.prefix.Len() == 64 {
		return false
	}
	switch p.SplitStrategy {
	case params.Always:
		return len(s.members) >= 2*ElderCount
	default: // params.Complete
		hi, _ := s.prefix.Extend(1)
		adultsLo, adultsHi := 0, 0
		for _, n := range s.members {
			if n.Age < node.AdultAge {
				continue
			}
			if hi.Matches(n.Name) {
				adultsHi++
			} else {
				adultsLo++
			}
		}
		return adultsLo >= ElderCount && adultsHi >= ElderCount
	}
}

// HandleEvent is the pure per-section state machine: it mutates the
// section's membership/counter/merging state in response to event and
// returns the SectionEvents that the Network must react to.
func (s *Section) HandleEvent(event churn.NetworkEvent, p *params.Params) []churn.SectionEvent {
	var out []churn.SectionEvent

	switch e := event.(type) {
	case churn.Live:
		young := e.Node.Age < node.AdultAge
		if s.merging || (p.MaxYoung > 0 && young && s.youngElderCount() >= p.MaxYoung) {
			return []churn.SectionEvent{churn.NodeRejected{Node: e.Node}}
		}
		s.members[e.Node.Name] = e.Node
		if s.splitReady(p) {
			out = append(out, churn.RequestSplit{})
		}

	case churn.Lost:
		if removed, ok := s.members[e.Name]; ok {
			delete(s.members, e.Name)
			out = append(out, churn.NodeDropped{Node: removed})
			if len(s.members) < ElderCount && !s.IsRoot() {
				out = append(out, churn.RequestMerge{})
			}
		}

	case churn.Gone:
		delete(s.members, e.Node.Name)

	case churn.Relocated:
		delete(s.members, e.Node.Name)

	case churn.PrefixChange:
		s.prefix = e.NewPrefix
		s.merging = false

	case churn.StartMerge:
		s.merging = true

	default:
		panic("section: unreachable event type")
	}

	if event.CountsForAgeing() {
		s.counter++
		if ev, ok := s.dueRelocationCandidate(); ok {
			out = append(out, ev)
		}
	}
	return out
}

// Split partitions the section's members by the bit at the position just
// past the current prefix, producing two child sections whose prefixes are
// Extend(0) and Extend(1). Both children inherit the parent's ageing
// counter unchanged. If p.AgeInc is set, every surviving member's age is
// incremented (saturating). Each child's only queued event is
// PrefixChange(child prefix); that event's generic counting side effect is
// what surfaces any relocation that comes due immediately after the split.
func (s *Section) Split(p *params.Params) (lo, hi *Section, loEvents, hiEvents []churn.NetworkEvent, err error) {
	loPrefix, err := s.prefix.Extend(0)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	hiPrefix, err := s.prefix.Extend(1)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	lo = &Section{prefix: loPrefix, members: make(map[prefix.Name]node.Node), counter: s.counter}
	hi = &Section{prefix: hiPrefix, members: make(map[prefix.Name]node.Node), counter: s.counter}

	for _, n := range s.members {
		if p.AgeInc && n.Age < 255 {
			n.Age++
		}
		if hiPrefix.Matches(n.Name) {
			hi.members[n.Name] = n
		} else {
			lo.members[n.Name] = n
		}
	}

	loEvents = []churn.NetworkEvent{churn.PrefixChange{NewPrefix: loPrefix}}
	hiEvents = []churn.NetworkEvent{churn.PrefixChange{NewPrefix: hiPrefix}}
	return lo, hi, loEvents, hiEvents, nil
}

// Merge combines s and other -- which must be siblings sharing an immediate
// parent prefix -- into a single section at that parent prefix. If both
// already carry the same prefix (each has adopted the merge target through
// PrefixChange), the merged section keeps that prefix. Membership
// is the union of both and the ageing counters are summed. If p.AgeInc is
// set, every member's age is incremented (saturating).
func (s *Section) Merge(other *Section, p *params.Params) *Section {
	parent := s.prefix
	if !s.prefix.Equal(other.prefix) {
		if shorter, err := s.prefix.Shorten(); err == nil {
			parent = shorter
		}
	}

	merged := &Section{
		prefix:  parent,
		members: make(map[prefix.Name]node.Node, len(s.members)+len(other.members)),
		counter: s.counter + other.counter,
	}
	for _, src := range []*Section{s, other} {
		for _, n := range src.members {
			if p.AgeInc && n.Age < 255 {
				n.Age++
			}
			merged.members[n.Name] = n
		}
	}
	return merged
}
