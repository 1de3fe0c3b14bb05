// Package track holds the two playable track slots and the playback
// primitive contract they drive.
package track

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Role names one of the two slots.
type Role int

const (
	RoleA Role = iota
	RoleB
)

// String returns "A" or "B".
func (r Role) String() string {
	switch r {
	case RoleA:
		return "A"
	case RoleB:
		return "B"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Other returns the alternate role.
func (r Role) Other() Role {
	if r == RoleA {
		return RoleB
	}
	return RoleA
}

// ParseRole accepts "A"/"B" in either case, and "0"/"1".
func ParseRole(s string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A", "0":
		return RoleA, nil
	case "B", "1":
		return RoleB, nil
	}
	return 0, fmt.Errorf("unknown track role %q", s)
}

// Player is the playback primitive behind a slot. Implementations own their
// own decode/output goroutines; every method must return quickly.
type Player interface {
	// Load prepares source for playback and blocks until it is ready.
	Load(ctx context.Context, source string) (Metadata, error)
	// Start resumes playback, restarting from the beginning if the track
	// had played to completion.
	Start() error
	Pause() error
	SeekToStart() error
	SetVolume(v float64)
	Volume() float64
	Duration() time.Duration
	Position() time.Duration
	IsPlaying() bool
	// OnError registers the handler for failures during playback.
	OnError(fn func(error))
	Close() error
}

// Metadata describes a loaded track.
type Metadata struct {
	ID       string
	Source   string
	Title    string
	Artist   string
	Duration time.Duration
}

// DisplayName returns "Artist - Title", falling back to the source file name.
func (m Metadata) DisplayName() string {
	switch {
	case m.Artist != "" && m.Title != "":
		return m.Artist + " - " + m.Title
	case m.Title != "":
		return m.Title
	case m.Source != "":
		base := filepath.Base(m.Source)
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	return ""
}

// LoadResult is delivered once per Load call.
type LoadResult struct {
	Role  Role
	Track Metadata
	Err   error
}

// ErrLoad matches every LoadError via errors.Is.
var ErrLoad = errors.New("track load failed")

// ErrSuperseded is the cause reported when a newer load replaced this one.
var ErrSuperseded = errors.New("superseded by a newer load")

// LoadError reports why a source could not be prepared.
type LoadError struct {
	Role   Role
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load track %s from %q: %v", e.Role, e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is reports true for ErrLoad.
func (e *LoadError) Is(target error) bool { return target == ErrLoad }
