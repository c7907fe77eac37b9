package game

import (
	"testing"
)

func TestDirectoryUpsertRemoveList(t *testing.T) {
	d := NewDirectory(0)
	defer d.Close()

	d.Upsert("b", 2)
	d.Upsert("a", 1)
	d.Upsert("a", 3) // replace

	entries := d.List()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].SessionID != "a" || entries[0].Participants != 3 {
		t.Fatalf("expected a/3 first, got %+v", entries[0])
	}
	if entries[1].SessionID != "b" || entries[1].Participants != 2 {
		t.Fatalf("expected b/2 second, got %+v", entries[1])
	}

	d.Remove("a")
	entries = d.List()
	if len(entries) != 1 || entries[0].SessionID != "b" {
		t.Fatalf("expected only b after remove, got %+v", entries)
	}
}

func TestDirectoryBroadcastsFullList(t *testing.T) {
	d := NewDirectory(0)
	defer d.Close()

	rec := &recorder{}
	d.Subscribe("rec", rec)

	d.Upsert("g1", 0)
	d.Upsert("g1", 2)
	d.Remove("g1")
	d.Remove("g1") // absent: no broadcast

	events := rec.snapshot()
	if len(events) != 3 {
		t.Fatalf("expected 3 directory events, got %d", len(events))
	}
	first, ok := events[0].(DirectoryEvent)
	if !ok {
		t.Fatalf("expected DirectoryEvent, got %T", events[0])
	}
	if len(first.Entries) != 1 || first.Entries[0].Participants != 0 {
		t.Fatalf("first broadcast should carry g1/0, got %+v", first.Entries)
	}
	last := events[2].(DirectoryEvent)
	if len(last.Entries) != 0 {
		t.Fatalf("final broadcast should be empty, got %+v", last.Entries)
	}
}

func TestDirectoryCloseDropsLateOps(t *testing.T) {
	d := NewDirectory(0)
	d.Upsert("g1", 0)

	d.Close()
	d.Close() // idempotent

	d.Upsert("g2", 1) // dropped, must not panic
	d.Remove("g1")
	if entries := d.List(); entries != nil {
		t.Fatalf("expected no entries after close, got %+v", entries)
	}
}

func TestDirectoryUnsubscribe(t *testing.T) {
	d := NewDirectory(0)
	defer d.Close()

	rec := &recorder{}
	d.Subscribe("rec", rec)
	d.Unsubscribe("rec")
	d.Upsert("g1", 0)

	if len(rec.snapshot()) != 0 {
		t.Fatal("unsubscribed observer must not receive broadcasts")
	}
}
