package network

import (
	"math/rand"
	"testing"

	"github.com/Bren2010/ageingsim/network/params"
	"github.com/Bren2010/ageingsim/network/prefix"
)

func testParams() *params.Params {
	p := params.Defaults()
	return &p
}

func TestEmptyNetworkHasOneRootSection(t *testing.T) {
	n := New(testParams(), rand.New(rand.NewSource(1)))
	if n.SectionCount() != 1 {
		t.Fatalf("SectionCount() = %d, want 1", n.SectionCount())
	}
	if err := n.CheckInvariants(); err != nil {
		t.Fatal(err)
	}
}

func TestAddThenProcessGrowsRootSection(t *testing.T) {
	n := New(testParams(), rand.New(rand.NewSource(1)))
	n.AddRandomNode()
	if err := n.ProcessEvents(); err != nil {
		t.Fatal(err)
	}
	if err := n.CheckInvariants(); err != nil {
		t.Fatal(err)
	}
	if n.output.Adds != 1 {
		t.Fatalf("Adds = %d, want 1", n.output.Adds)
	}
	if len(n.output.Snapshots) != 1 {
		t.Fatalf("expected one snapshot to be captured, got %d", len(n.output.Snapshots))
	}
	if n.output.Snapshots[0].TotalNodes != 1 {
		t.Fatalf("snapshot TotalNodes = %d, want 1", n.output.Snapshots[0].TotalNodes)
	}
}

func TestGrowthTriggersSplit(t *testing.T) {
	p := testParams()
	p.SplitStrategy = params.Always
	n := New(p, rand.New(rand.NewSource(2)))

	for i := 0; i < 16; i++ {
		n.AddRandomNode()
		if err := n.ProcessEvents(); err != nil {
			t.Fatal(err)
		}
	}
	if err := n.CheckInvariants(); err != nil {
		t.Fatal(err)
	}
	if n.SectionCount() < 2 {
		t.Fatalf("SectionCount() = %d, want at least 2 after growth past the split threshold", n.SectionCount())
	}
}

func TestHasEventsFalseAfterProcessEvents(t *testing.T) {
	n := New(testParams(), rand.New(rand.NewSource(3)))
	n.AddRandomNode()
	n.AddRandomNode()
	if err := n.ProcessEvents(); err != nil {
		t.Fatal(err)
	}
	if n.hasEvents() {
		t.Fatal("expected the event queue to be empty after ProcessEvents returns")
	}
}

func TestDropOfOnlyMemberLeavesRootEmpty(t *testing.T) {
	n := New(testParams(), rand.New(rand.NewSource(4)))
	n.AddRandomNode()
	if err := n.ProcessEvents(); err != nil {
		t.Fatal(err)
	}

	// The root section can never request a merge, so repeatedly dropping
	// must eventually empty it without ever panicking or erroring.
	for i := 0; i < 50 && n.output.Snapshots[len(n.output.Snapshots)-1].TotalNodes > 0; i++ {
		n.DropRandomNode()
		if err := n.ProcessEvents(); err != nil {
			t.Fatal(err)
		}
	}
	if err := n.CheckInvariants(); err != nil {
		t.Fatal(err)
	}
	if got := n.output.Snapshots[len(n.output.Snapshots)-1].TotalNodes; got != 0 {
		t.Fatalf("TotalNodes = %d, want 0 once the only member has dropped", got)
	}
}

func TestRejoinWithNoLeftNodesIsHarmless(t *testing.T) {
	n := New(testParams(), rand.New(rand.NewSource(5)))
	n.RejoinRandomNode()
	if err := n.ProcessEvents(); err != nil {
		t.Fatal(err)
	}
	if n.output.Rejoins != 1 {
		t.Fatalf("Rejoins = %d, want 1", n.output.Rejoins)
	}
	if err := n.CheckInvariants(); err != nil {
		t.Fatal(err)
	}
}

func TestRejoinAfterDropResetsAge(t *testing.T) {
	p := testParams()
	p.InitAge = 4
	n := New(p, rand.New(rand.NewSource(6)))

	n.AddRandomNode()
	if err := n.ProcessEvents(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 200 && len(n.leftNodes) == 0; i++ {
		n.DropRandomNode()
		if err := n.ProcessEvents(); err != nil {
			t.Fatal(err)
		}
		if len(n.leftNodes) == 0 {
			n.AddRandomNode()
			if err := n.ProcessEvents(); err != nil {
				t.Fatal(err)
			}
		}
	}
	if len(n.leftNodes) == 0 {
		t.Skip("node never dropped within the iteration budget")
	}

	left := n.leftNodes[0]
	n.leftNodes[0].Age = 12

	n.RejoinRandomNode()
	if err := n.ProcessEvents(); err != nil {
		t.Fatal(err)
	}
	if err := n.CheckInvariants(); err != nil {
		t.Fatal(err)
	}

	sp, ok := n.findSection(left.Name)
	if !ok {
		t.Fatal("no section matches the rejoined node's name")
	}
	found := false
	for _, nd := range n.sections[sp].Nodes() {
		if nd.Name == left.Name {
			found = true
			if nd.Age != p.InitAge {
				t.Fatalf("rejoined node age = %d, want %d", nd.Age, p.InitAge)
			}
		}
	}
	if !found {
		t.Fatal("rejoined node is not a member of the section matching its name")
	}
}

func TestManyStepsNeverViolateInvariants(t *testing.T) {
	p := testParams()
	n := New(p, rand.New(rand.NewSource(7)))
	r := rand.New(rand.NewSource(42))

	for i := 0; i < 2000; i++ {
		x := r.Intn(100)
		switch {
		case x < p.PAdd:
			n.AddRandomNode()
		case x < p.PAdd+p.PDrop:
			n.DropRandomNode()
		default:
			n.RejoinRandomNode()
		}
		if err := n.ProcessEvents(); err != nil {
			t.Fatal(err)
		}
		if err := n.CheckInvariants(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
}

func TestMergeTriggeredByDropRestoresSingleSection(t *testing.T) {
	p := testParams()
	p.SplitStrategy = params.Always
	n := New(p, rand.New(rand.NewSource(8)))

	for i := 0; i < 16; i++ {
		n.AddRandomNode()
		if err := n.ProcessEvents(); err != nil {
			t.Fatal(err)
		}
	}
	if n.SectionCount() < 2 {
		t.Fatal("setup failed to split the root section")
	}

	for i := 0; i < 400 && n.SectionCount() > 1; i++ {
		n.DropRandomNode()
		if err := n.ProcessEvents(); err != nil {
			t.Fatal(err)
		}
	}
	if err := n.CheckInvariants(); err != nil {
		t.Fatal(err)
	}
	if n.SectionCount() != 1 {
		t.Fatalf("SectionCount() = %d, want 1 after the merge", n.SectionCount())
	}
}

func TestFindSectionMatchesEveryName(t *testing.T) {
	n := New(testParams(), rand.New(rand.NewSource(9)))
	p, ok := n.findSection(prefix.Name(0))
	if !ok {
		t.Fatal("expected the root section to match every name")
	}
	if !p.Equal(prefix.Empty()) {
		t.Fatalf("findSection returned %v, want the empty prefix", p)
	}
}
