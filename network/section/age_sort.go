package section

import (
	"sort"

	"github.com/Bren2010/ageingsim/network/node"
)

// SortedByAge returns the section's members ordered by ascending age, tied
// on the smallest Name, matching the order the age-weighted drop scan walks
// a section's membership.
func (s *Section) SortedByAge() []node.Node {
	out := s.sortedByName()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Age != out[j].Age {
			return out[i].Age < out[j].Age
		}
		return out[i].Name < out[j].Name
	})
	return out
}
