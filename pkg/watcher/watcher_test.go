package watcher

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestDebouncerBatchesEvents(t *testing.T) {
	in := make(chan ChangeEvent)
	d := NewDebouncer(in, 100*time.Millisecond, 5*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	in <- ChangeEvent{Type: ChangeTypePayload, Paths: []string{"a.ptx"}}
	in <- ChangeEvent{Type: ChangeTypeManifest, Paths: []string{"m.toml"}}
	in <- ChangeEvent{Type: ChangeTypePayload, Paths: []string{"b.ptx"}}

	first := receive(t, d.Output())
	second := receive(t, d.Output())

	if first.Type != ChangeTypeManifest {
		t.Errorf("manifest changes should flush first, got %v", first.Type)
	}
	if second.Type != ChangeTypePayload || !reflect.DeepEqual(second.Paths, []string{"a.ptx", "b.ptx"}) {
		t.Errorf("unexpected payload batch %+v", second)
	}
}

func TestDebouncerFlushesOnClose(t *testing.T) {
	in := make(chan ChangeEvent, 1)
	d := NewDebouncer(in, time.Hour, time.Hour)
	d.Start(context.Background())

	in <- ChangeEvent{Type: ChangeTypePayload, Paths: []string{"x"}}
	close(in)

	ev := receive(t, d.Output())
	if ev.Paths[0] != "x" {
		t.Errorf("unexpected event %+v", ev)
	}
	if _, ok := <-d.Output(); ok {
		t.Error("output should be closed after input closes")
	}
}

func TestDebouncerMaxWait(t *testing.T) {
	in := make(chan ChangeEvent)
	d := NewDebouncer(in, time.Hour, 30*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	in <- ChangeEvent{Type: ChangeTypePayload, Paths: []string{"x"}}
	receive(t, d.Output())
}

func TestClassify(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "m.toml")
	payload := filepath.Join(dir, "k.ptx")

	fw, err := NewFileWatcher(manifest, []string{payload, manifest})
	if err != nil {
		t.Fatal(err)
	}
	defer fw.watcher.Close()

	if ct, ok := fw.Classify(manifest); !ok || ct != ChangeTypeManifest {
		t.Errorf("manifest classified as %v, %v", ct, ok)
	}
	if ct, ok := fw.Classify(filepath.Join(dir, ".", "k.ptx")); !ok || ct != ChangeTypePayload {
		t.Errorf("payload classified as %v, %v", ct, ok)
	}
	if _, ok := fw.Classify(filepath.Join(dir, "other")); ok {
		t.Error("unrelated file should not be watched")
	}
}

func TestFileWatcherReportsWrites(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "m.toml")
	if err := os.WriteFile(manifest, []byte("[module]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	fw, err := NewFileWatcher(manifest, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := fw.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := os.WriteFile(manifest, []byte("[module]\ntype = \"graph\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ev := receive(t, fw.Events())
	if ev.Type != ChangeTypeManifest {
		t.Errorf("event type = %v", ev.Type)
	}

	cancel()
	for range fw.Events() {
	}
}

func receive(t *testing.T, ch <-chan ChangeEvent) ChangeEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return ChangeEvent{}
}
