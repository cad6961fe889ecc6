// Package preview serves a live view of a sketch session over HTTP:
// a JSON snapshot endpoint for tooling and a websocket that pushes a
// fresh frame after every change and accepts interactive drag
// requests.
package preview

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/sketchcad/internal/config"
	"github.com/conneroisu/sketchcad/internal/geom"
	"github.com/conneroisu/sketchcad/internal/logging"
	"github.com/conneroisu/sketchcad/internal/model"
	"github.com/conneroisu/sketchcad/internal/session"
)

// Frame is one complete snapshot pushed to viewers.
type Frame struct {
	Generation  uint64           `json:"generation"`
	Entities    []EntityFrame    `json:"entities"`
	Constraints []ConstraintInfo `json:"constraints"`
	Solve       *SolveInfo       `json:"solve,omitempty"`
	Profiles    []ProfileFrame   `json:"profiles"`
}

// EntityFrame is the renderable state of one entity.
type EntityFrame struct {
	ID           int       `json:"id"`
	Kind         string    `json:"kind"`
	Params       []float64 `json:"params"`
	Construction bool      `json:"construction,omitempty"`
}

// ConstraintInfo lists a constraint for the inspector panel.
type ConstraintInfo struct {
	ID    int      `json:"id"`
	Kind  string   `json:"kind"`
	Value *float64 `json:"value,omitempty"`
}

// SolveInfo summarizes the last solve.
type SolveInfo struct {
	Status     string          `json:"status"`
	DOF        int             `json:"dof"`
	Converged  bool            `json:"converged"`
	Components []ComponentInfo `json:"components"`
}

// ComponentInfo carries per-component diagnostics.
type ComponentInfo struct {
	Entities  []int  `json:"entities"`
	Status    string `json:"status"`
	DOF       int    `json:"dof"`
	Conflicts []int  `json:"conflicts,omitempty"`
	Redundant []int  `json:"redundant,omitempty"`
}

// ProfileFrame is one closed region as sampled polylines.
type ProfileFrame struct {
	Outer [][2]float64   `json:"outer"`
	Holes [][][2]float64 `json:"holes,omitempty"`
	Area  float64        `json:"area"`
}

// dragRequest is the one message type viewers send.
type dragRequest struct {
	Type   string  `json:"type"`
	Entity int     `json:"entity"`
	Anchor string  `json:"anchor"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

var anchorNames = map[string]model.Anchor{
	"":       model.AnchorSelf,
	"self":   model.AnchorSelf,
	"start":  model.AnchorStart,
	"end":    model.AnchorEnd,
	"center": model.AnchorCenter,
	"mid":    model.AnchorMid,
}

// Server pushes session state to websocket viewers.
type Server struct {
	cfg  *config.Config
	log  logging.Logger
	sess *session.Session

	httpServer *http.Server

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewServer creates a preview server for a session.
func NewServer(sess *session.Session, cfg *config.Config, log logging.Logger) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Server{
		cfg:     cfg,
		log:     log.WithComponent("preview"),
		sess:    sess,
		clients: map[*websocket.Conn]struct{}{},
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Preview.Host, s.cfg.Preview.Port)
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/state", s.handleState)
	mux.HandleFunc("/ws", s.handleWS)

	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("preview listen: %w", err)
	}
	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go s.pushLoop(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}()

	s.log.Info(ctx, "preview server listening", "addr", ln.Addr().String())
	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// pushLoop broadcasts a frame whenever the sketch changes, coalescing
// event bursts into one frame.
func (s *Server) pushLoop(ctx context.Context) {
	events := s.sess.Sketch().Watch()
	defer s.sess.Sketch().UnWatch(events)

	var pending bool
	ticker := time.NewTicker(30 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			pending = true
		case <-ticker.C:
			if pending {
				pending = false
				s.broadcast(ctx)
			}
		}
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.frame()); err != nil {
		s.log.Warn(r.Context(), err, "writing state snapshot")
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		s.log.Warn(r.Context(), err, "websocket accept failed")
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()

	ctx := r.Context()
	if err := s.send(ctx, conn, s.frame()); err != nil {
		return
	}
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				s.log.Debug(ctx, "viewer disconnected", "reason", err.Error())
			}
			return
		}
		s.handleMessage(ctx, data)
	}
}

func (s *Server) handleMessage(ctx context.Context, data []byte) {
	var req dragRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.log.Warn(ctx, err, "malformed viewer message")
		return
	}
	if req.Type != "drag" {
		s.log.Debug(ctx, "ignoring viewer message", "type", req.Type)
		return
	}
	anchor, ok := anchorNames[req.Anchor]
	if !ok {
		s.log.Warn(ctx, nil, "unknown drag anchor", "anchor", req.Anchor)
		return
	}
	target := s.sess.ToSketch(geom.V(req.X, req.Y))
	if _, err := s.sess.Drag(ctx, model.EntityID(req.Entity), anchor, target); err != nil {
		// Superseded drags surface as context.Canceled; both cases are
		// normal during interaction.
		s.log.Debug(ctx, "drag not applied", "reason", err.Error())
	}
}

func (s *Server) broadcast(ctx context.Context) {
	frame := s.frame()
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		if err := s.send(ctx, c, frame); err != nil {
			s.log.Debug(ctx, "dropping slow viewer", "reason", err.Error())
			s.mu.Lock()
			delete(s.clients, c)
			s.mu.Unlock()
			_ = c.Close(websocket.StatusPolicyViolation, "write failed")
		}
	}
}

func (s *Server) send(ctx context.Context, conn *websocket.Conn, frame *Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}

// frame snapshots the session into a renderable payload.
func (s *Server) frame() *Frame {
	sk := s.sess.Sketch()
	f := &Frame{Generation: sk.Generation()}

	for _, e := range sk.Entities() {
		f.Entities = append(f.Entities, EntityFrame{
			ID:           int(e.ID),
			Kind:         e.Kind.String(),
			Params:       e.Params,
			Construction: e.Construction,
		})
	}
	for _, c := range sk.Constraints() {
		ci := ConstraintInfo{ID: int(c.ID), Kind: c.Kind.String()}
		if c.Value != nil {
			v := c.Value.Literal
			ci.Value = &v
		}
		f.Constraints = append(f.Constraints, ci)
	}

	if res, ok := s.sess.LastResult(); ok {
		si := &SolveInfo{
			Status:    res.Status.String(),
			DOF:       res.TotalDOF(),
			Converged: res.Converged,
		}
		for _, comp := range res.Components {
			ci := ComponentInfo{Status: comp.Status.String(), DOF: comp.DOF}
			for _, id := range comp.Entities {
				ci.Entities = append(ci.Entities, int(id))
			}
			for _, id := range comp.Conflicts {
				ci.Conflicts = append(ci.Conflicts, int(id))
			}
			for _, id := range comp.Redundant {
				ci.Redundant = append(ci.Redundant, int(id))
			}
			si.Components = append(si.Components, ci)
		}
		f.Solve = si
	}

	for _, p := range s.sess.Profiles() {
		pf := ProfileFrame{Outer: ring(p.Outer.Points), Area: p.Outer.Area}
		for _, h := range p.Holes {
			pf.Holes = append(pf.Holes, ring(h.Points))
		}
		f.Profiles = append(f.Profiles, pf)
	}
	return f
}

func ring(pts []geom.Vec) [][2]float64 {
	out := make([][2]float64, len(pts))
	for i, p := range pts {
		out[i] = [2]float64{p.X, p.Y}
	}
	return out
}
