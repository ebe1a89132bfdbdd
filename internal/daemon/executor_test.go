package daemon

import (
	"testing"

	"github.com/elsanchez/insta-checker/internal/domain"
)

// Las fases intermedias del checker salen con el índice que fijó el
// último evento del runner; starting y los terminales del checker se
// filtran porque el runner ya los emite.
func TestPhaseBridgeForwardsWithRunnerIndex(t *testing.T) {
	type seen struct {
		current  int
		total    int
		username string
		phase    string
	}
	var events []seen
	b := &phaseBridge{fn: func(current, total int, username string, ev domain.Event) {
		events = append(events, seen{current, total, username, ev.Phase()})
	}}

	b.track(1, 3, "alice", domain.Starting{})
	b.phase(domain.Starting{})
	b.phase(domain.Navigating{})
	b.phase(domain.ClickingFollow{})
	b.phase(domain.NoWarning{})
	b.track(1, 3, "alice", domain.NoWarning{})

	b.track(2, 3, "bob", domain.Starting{})
	b.phase(domain.Navigating{})

	want := []seen{
		{1, 3, "alice", "starting"},
		{1, 3, "alice", "navigating"},
		{1, 3, "alice", "clicking_follow"},
		{1, 3, "alice", "no_warning"},
		{2, 3, "bob", "starting"},
		{2, 3, "bob", "navigating"},
	}
	if len(events) != len(want) {
		t.Fatalf("events = %+v, want %+v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event[%d] = %+v, want %+v", i, events[i], want[i])
		}
	}
}
