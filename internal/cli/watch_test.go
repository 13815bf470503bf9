package cli

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchLoopFiltersEvents(t *testing.T) {
	target, err := filepath.Abs(collectModule)
	require.NoError(t, err)
	other := filepath.Join(filepath.Dir(target), "other.json")

	events := make(chan fsnotify.Event)
	errs := make(chan error)

	var rebuilds int
	var seen []error
	done := make(chan struct{})
	go func() {
		defer close(done)
		watchLoop(context.Background(), events, errs, map[string]bool{target: true},
			func() { rebuilds++ }, func(err error) { seen = append(seen, err) })
	}()
	// Unbuffered sends return only once the loop has taken the value, so
	// each event is handled before the next is offered.
	events <- fsnotify.Event{Name: target, Op: fsnotify.Write}
	events <- fsnotify.Event{Name: other, Op: fsnotify.Write}
	events <- fsnotify.Event{Name: target, Op: fsnotify.Chmod}
	events <- fsnotify.Event{Name: target, Op: fsnotify.Rename}
	errs <- errors.New("overflow")
	close(events)
	<-done

	assert.Equal(t, 2, rebuilds)
	assert.Len(t, seen, 1)
}

func TestWatchLoopStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	watchLoop(ctx, make(chan fsnotify.Event), make(chan error), nil, func() { t.Fatal("rebuild") }, nil)
}

func TestWatchRebuild(t *testing.T) {
	buf := &bytes.Buffer{}
	opts := &WatchOptions{RootOptions: &RootOptions{Format: "text"}, Runs: 2}
	opts.rebuild(context.Background(), collectModule, &OutputFormatter{Format: "text", Writer: buf})
	assert.Contains(t, buf.String(), "✓ collect")
	assert.Contains(t, buf.String(), "guarded 1")

	buf.Reset()
	opts.rebuild(context.Background(), strayModule, &OutputFormatter{Format: "text", Writer: buf})
	assert.Contains(t, buf.String(), "Error [E202]")
}
