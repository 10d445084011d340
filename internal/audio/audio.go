// Package audio plays files through an external command-line player.
package audio

import (
	"context"
	"errors"
)

var (
	ErrNoPlayer     = errors.New("no audio player available")
	ErrFileNotFound = errors.New("audio file not found")
)

// Output is a single playback slot. Start replaces whatever was playing.
// The returned channel yields exactly one value once playback ends: nil on
// natural completion or Stop, otherwise the failure.
type Output interface {
	Name() string
	Start(ctx context.Context, path string, volume int) (<-chan error, error)
	Stop() error
	IsPlaying() bool
}

// Unavailable stands in when no player is installed so that playback
// requests fail with ErrNoPlayer instead of bringing the service down.
type Unavailable struct{}

func (Unavailable) Name() string { return "none" }

func (Unavailable) Start(context.Context, string, int) (<-chan error, error) {
	return nil, ErrNoPlayer
}

func (Unavailable) Stop() error     { return nil }
func (Unavailable) IsPlaying() bool { return false }
