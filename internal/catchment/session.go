package catchment

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// OverlayLayer is the graphic set committed for one role.
type OverlayLayer struct {
	Generation uint64
	ResultID   string
	Graphics   []Graphic
}

// Overlay is a snapshot of every committed role.
type Overlay map[Role]OverlayLayer

// Session is the presentation sink for a sequence of invocations. Every Run
// is stamped with a per-role generation; a result is committed only when no
// newer run for its role was dispatched while it was in flight, and always as
// one complete graphic set.
type Session struct {
	runner Runner

	mu         sync.Mutex
	dispatched map[Role]uint64
	overlay    map[Role]OverlayLayer
}

// NewSession creates a Session driving runner.
func NewSession(runner Runner) *Session {
	return &Session{
		runner:     runner,
		dispatched: make(map[Role]uint64),
		overlay:    make(map[Role]OverlayLayer),
	}
}

// Run dispatches req. A stale result is still returned, with Stale set, but
// is not committed. On error nothing is committed and the previous overlay
// for the role stays in place.
func (s *Session) Run(ctx context.Context, req Request) (*SelectionResult, error) {
	req.Role = req.roleOrDefault()

	s.mu.Lock()
	s.dispatched[req.Role]++
	gen := s.dispatched[req.Role]
	s.mu.Unlock()

	res, err := s.runner.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}
	res.Generation = gen

	s.mu.Lock()
	defer s.mu.Unlock()
	if latest := s.dispatched[req.Role]; gen != latest {
		res.Stale = true
		zap.L().Debug("catchment: discarding stale result",
			zap.String("invocation", res.ID),
			zap.String("role", string(req.Role)),
			zap.Uint64("generation", gen),
			zap.Uint64("latest", latest),
		)
		return res, nil
	}

	graphics := make([]Graphic, len(res.Graphics))
	copy(graphics, res.Graphics)
	s.overlay[req.Role] = OverlayLayer{
		Generation: gen,
		ResultID:   res.ID,
		Graphics:   graphics,
	}
	return res, nil
}

// Reset clears every overlay and invalidates runs still in flight.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, role := range []Role{RolePrimary, RoleComparison} {
		s.dispatched[role]++
	}
	s.overlay = make(map[Role]OverlayLayer)
}

// Overlay returns a copy of the committed overlays.
func (s *Session) Overlay() Overlay {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(Overlay, len(s.overlay))
	for role, layer := range s.overlay {
		g := make([]Graphic, len(layer.Graphics))
		copy(g, layer.Graphics)
		layer.Graphics = g
		out[role] = layer
	}
	return out
}
