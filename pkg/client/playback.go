package client

import (
	"log/slog"
	"sync"

	"github.com/zeldris273/watchparty/pkg/protocol"
)

// QualityLevel describes one rendition of the stream.
type QualityLevel struct {
	Height int
}

// Player is the surface the synchronizer drives. A frontend adapts its
// media element to this interface; all methods are called from the
// transport read loop or the invoking goroutine, never concurrently.
type Player interface {
	Play()
	Pause()
	CurrentTime() float64
	SetCurrentTime(seconds float64)
	// Duration returns the media length in seconds, or 0 when unknown.
	Duration() float64
	LoadSource(url string)
	Levels() []QualityLevel
	// SetQualityLevel selects a rendition by index;
	// protocol.AutoQualityLevel enables adaptive selection.
	SetQualityLevel(index int)
}

// synchronizer applies hub playback commands to the attached player.
// Commands arriving before a player is attached are queued and
// replayed, in order, on attach.
type synchronizer struct {
	logger *slog.Logger

	mu        sync.Mutex
	player    Player
	isPlaying bool
	pending   []func(Player)
}

func newSynchronizer(logger *slog.Logger) *synchronizer {
	return &synchronizer{
		logger: logger,
	}
}

// Attach binds a player and replays any commands queued while none was
// attached.
func (s *synchronizer) Attach(p Player) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.player = p
	for _, op := range s.pending {
		op(p)
	}
	s.pending = nil
}

func (s *synchronizer) apply(op func(Player)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.player == nil {
		s.pending = append(s.pending, op)
		return
	}
	op(s.player)
}

func (s *synchronizer) ApplyPlay(currentTime float64) {
	s.apply(func(p Player) {
		p.SetCurrentTime(protocol.ClampTime(currentTime, p.Duration()))
		p.Play()
		s.isPlaying = true
	})
}

func (s *synchronizer) ApplyPause(currentTime float64) {
	s.apply(func(p Player) {
		p.Pause()
		p.SetCurrentTime(protocol.ClampTime(currentTime, p.Duration()))
		s.isPlaying = false
	})
}

// ApplySeek moves the playhead without changing the play/pause state.
func (s *synchronizer) ApplySeek(currentTime float64) {
	s.apply(func(p Player) {
		p.SetCurrentTime(protocol.ClampTime(currentTime, p.Duration()))
	})
}

// ApplySkip shifts the playhead by delta seconds relative to the local
// position.
func (s *synchronizer) ApplySkip(delta float64) {
	s.apply(func(p Player) {
		p.SetCurrentTime(protocol.ClampTime(p.CurrentTime()+delta, p.Duration()))
	})
}

// ApplyStart rewinds to the beginning and starts playing. Applying it
// again has the same effect, so a replayed start is harmless.
func (s *synchronizer) ApplyStart() {
	s.apply(func(p Player) {
		p.SetCurrentTime(0)
		p.Play()
		s.isPlaying = true
	})
}

func (s *synchronizer) ApplyEnd() {
	s.apply(func(p Player) {
		p.Pause()
		s.isPlaying = false
	})
}

// ApplyRemoteState brings a late joiner in line with the room's
// current playback.
func (s *synchronizer) ApplyRemoteState(isPlaying bool, currentTime float64) {
	s.apply(func(p Player) {
		p.SetCurrentTime(protocol.ClampTime(currentTime, p.Duration()))
		if isPlaying {
			p.Play()
		} else {
			p.Pause()
		}
		s.isPlaying = isPlaying
	})
}

func (s *synchronizer) LoadSource(url string) {
	s.apply(func(p Player) {
		p.LoadSource(url)
	})
}

// CurrentTime returns the local playhead, or 0 when no player is
// attached.
func (s *synchronizer) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.player == nil {
		return 0
	}
	return s.player.CurrentTime()
}

// Duration returns the attached player's media length, or 0 when no
// player is attached or the length is not known yet.
func (s *synchronizer) Duration() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.player == nil {
		return 0
	}
	return s.player.Duration()
}

func (s *synchronizer) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.isPlaying
}

// SeekTarget converts a 0-100 position into seconds of the attached
// player's duration.
func (s *synchronizer) SeekTarget(percent int) float64 {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.player == nil {
		return 0
	}
	return float64(percent) / 100 * s.player.Duration()
}

// SelectQuality switches the attached player to the given rendition
// index. protocol.AutoQualityLevel restores adaptive selection; an
// out-of-range index is ignored.
func (s *synchronizer) SelectQuality(index int) {
	s.apply(func(p Player) {
		if index == protocol.AutoQualityLevel {
			p.SetQualityLevel(protocol.AutoQualityLevel)
			return
		}
		if index < 0 || index >= len(p.Levels()) {
			s.logger.Warn("quality level out of range", "index", index)
			return
		}
		p.SetQualityLevel(index)
	})
}

// Levels lists the attached player's renditions, or nil when no player
// is attached.
func (s *synchronizer) Levels() []QualityLevel {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.player == nil {
		return nil
	}
	return s.player.Levels()
}
