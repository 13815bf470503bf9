package feedback

import (
	"maps"
	"slices"
	"sync"
)

// Recorder collects runtime observations. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	sites  map[string]map[string]int
	deopts map[string]int
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{sites: make(map[string]map[string]int), deopts: make(map[string]int)}
}

// Observe records that the operand at site had type typ.
func (r *Recorder) Observe(site, typ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := r.sites[site]
	if counts == nil {
		counts = make(map[string]int)
		r.sites[site] = counts
	}
	counts[typ]++
}

// Deopt records a guard failure.
func (r *Recorder) Deopt(reason, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deopts[reason]++
}

// Artifact summarizes the observations. Each site reports its most
// frequent type; ties go to the lexically smallest type name.
func (r *Recorder) Artifact() *Artifact {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := &Artifact{SchemaVersion: SchemaVersion, Kind: Kind, Sites: make(map[string]Site, len(r.sites))}
	for site, counts := range r.sites {
		var s Site
		for _, typ := range slices.Sorted(maps.Keys(counts)) {
			n := counts[typ]
			s.Samples += n
			if n > s.Hits {
				s.Type, s.Hits = typ, n
			}
		}
		a.Sites[site] = s
	}
	if len(r.deopts) > 0 {
		a.DeoptReasons = maps.Clone(r.deopts)
	}
	return a
}
