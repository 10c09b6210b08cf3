// Package media declares the media-probe collaborator ImportMedia depends
// on. Probing a file for duration and stream layout is out of scope for the
// core (§1) — decode, demux, and codec inspection live entirely behind this
// interface.
package media

import "github.com/mrjoshuak/nlecore/internal/rational"

// VideoInfo is the probed video stream layout of a file.
type VideoInfo struct {
	Width     int
	Height    int
	FPSNum    uint32
	FPSDen    uint32
}

// AudioInfo is the probed audio stream layout of a file.
type AudioInfo struct {
	SampleRate int
	Channels   int
}

// Probed is the result of probing one media file.
type Probed struct {
	Path     string
	HasVideo bool
	HasAudio bool
	Video    *VideoInfo
	Audio    *AudioInfo
	Duration rational.Time
}

// Prober probes a media file for duration and stream layout. Invoked
// synchronously and may block (§5) — the core has no cancellation model.
type Prober interface {
	Probe(path string) (Probed, error)
}

// StaticProber is a Prober fed a fixed table, used by tests and by replay
// drivers that already know what a probe returned.
type StaticProber struct {
	Results map[string]Probed
	Err     map[string]error
}

// NewStaticProber returns a StaticProber with empty tables.
func NewStaticProber() *StaticProber {
	return &StaticProber{Results: make(map[string]Probed), Err: make(map[string]error)}
}

func (p *StaticProber) Probe(path string) (Probed, error) {
	if err, ok := p.Err[path]; ok {
		return Probed{}, err
	}
	return p.Results[path], nil
}
