package store

import (
	"context"
	"strconv"
	"testing"
)

func drain(sub *Subscription) (last Snapshot, count int) {
	for {
		select {
		case snapshot, ok := <-sub.C:
			if !ok {
				return last, count
			}
			last = snapshot
			count++
		default:
			return last, count
		}
	}
}

func TestSubscribe_SlowSubscriberStillSeesFinalState(t *testing.T) {
	mem := NewMemory()
	sub, err := mem.Subscribe(context.Background(), CollectionTickets)
	if err != nil {
		t.Fatalf("Subscribe returned %v", err)
	}
	defer sub.Cancel()

	// Far more mutations than the channel buffers, none drained in between.
	for i := 0; i < 30; i++ {
		if _, err := mem.Create(context.Background(), CollectionTickets, map[string]any{"n": strconv.Itoa(i)}); err != nil {
			t.Fatalf("Create %d returned %v", i, err)
		}
	}

	last, count := drain(sub)
	if count == 0 {
		t.Fatal("no snapshots delivered")
	}
	if got := len(last.Documents); got != 30 {
		t.Errorf("last snapshot has %d documents, want the full 30", got)
	}
}

func TestSubscribe_InitialSnapshotAndPerMutationEmissions(t *testing.T) {
	mem := NewMemory()
	if _, err := mem.Create(context.Background(), CollectionTickets, map[string]any{"n": "0"}); err != nil {
		t.Fatalf("Create returned %v", err)
	}

	sub, err := mem.Subscribe(context.Background(), CollectionTickets)
	if err != nil {
		t.Fatalf("Subscribe returned %v", err)
	}
	defer sub.Cancel()

	initial := <-sub.C
	if len(initial.Documents) != 1 {
		t.Fatalf("initial snapshot has %d documents, want 1", len(initial.Documents))
	}

	if _, err := mem.Create(context.Background(), CollectionTickets, map[string]any{"n": "1"}); err != nil {
		t.Fatalf("Create returned %v", err)
	}
	next := <-sub.C
	if len(next.Documents) != 2 {
		t.Errorf("snapshot after mutation has %d documents, want 2", len(next.Documents))
	}
}

func TestSubscription_CancelClosesChannel(t *testing.T) {
	mem := NewMemory()
	sub, err := mem.Subscribe(context.Background(), CollectionTickets)
	if err != nil {
		t.Fatalf("Subscribe returned %v", err)
	}
	<-sub.C

	sub.Cancel()
	if _, ok := <-sub.C; ok {
		t.Error("channel still open after Cancel")
	}
	sub.Cancel() // second cancel must not panic
}
