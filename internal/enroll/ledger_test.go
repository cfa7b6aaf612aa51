package enroll

import (
	"sync"
	"testing"
)

func TestLedger_EnsureNeverOverwrites(t *testing.T) {
	l := NewLedger()
	l.Ensure("a@x.com")
	l.Record("a@x.com", "do_1")
	l.Ensure("a@x.com")

	if !l.Has("a@x.com", "do_1") {
		t.Error("Ensure dropped a recorded enrollment")
	}
	if l.Has("a@x.com", "do_2") {
		t.Error("Has reported an enrollment that was never recorded")
	}
}

func TestLedger_ConcurrentRecords(t *testing.T) {
	l := NewLedger()
	l.Ensure("a@x.com")

	var wg sync.WaitGroup
	nodes := []string{"do_1", "do_2", "do_3", "do_4"}
	for i := 0; i < 50; i++ {
		for _, n := range nodes {
			wg.Add(1)
			go func(n string) {
				defer wg.Done()
				l.Record("a@x.com", n)
			}(n)
		}
	}
	wg.Wait()

	if got := l.Count("a@x.com"); got != len(nodes) {
		t.Errorf("Count = %d, want %d", got, len(nodes))
	}
}
