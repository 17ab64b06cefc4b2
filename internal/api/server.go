// Package api exposes the profile and LOD engine over HTTP to the rendering,
// plotting and export collaborators. Point clouds are registered per layer
// and held in memory; the server keeps one spatial index per layer in an
// arena and reuses it across requests.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/terrain.profile/internal/config"
	"github.com/banshee-data/terrain.profile/internal/layerdb"
	"github.com/banshee-data/terrain.profile/internal/terrain"
)

// maxUploadBytes caps layer registration payloads (roughly 10M points).
const maxUploadBytes = 512 << 20

type layerState struct {
	Name  string
	Cloud *terrain.PointCloud
}

// Server holds the registered layers, the shared index arena and the
// optional persistence handle.
type Server struct {
	mu     sync.RWMutex
	layers map[uuid.UUID]*layerState

	arena *terrain.IndexArena
	cfg   *config.EngineConfig
	db    *layerdb.LayerDB // nil disables persistence
}

// NewServer creates a server with the given config. db may be nil to run
// purely in memory.
func NewServer(cfg *config.EngineConfig, db *layerdb.LayerDB) *Server {
	if cfg == nil {
		cfg = config.DefaultEngineConfig()
	}
	return &Server{
		layers: make(map[uuid.UUID]*layerState),
		arena:  terrain.NewIndexArena(*cfg.IndexCellSizeM),
		cfg:    cfg,
		db:     db,
	}
}

// ServeMux returns the route table.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.homeHandler)
	mux.HandleFunc("/api/layers", s.layersHandler)
	mux.HandleFunc("/api/layers/delete", s.deleteLayerHandler)
	mux.HandleFunc("/api/profile", s.profileHandler)
	mux.HandleFunc("/api/profile/csv", s.profileCSVHandler)
	mux.HandleFunc("/api/profile/chart", s.profileChartHandler)
	mux.HandleFunc("/api/lod", s.lodHandler)
	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("api: failed to encode json response: %v", err)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) homeHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("Welcome to the Terrain Profile Server!"))
}

// RegisterCloud adds or replaces a layer outside the HTTP surface. A cloud
// sharing an existing layer ID replaces that layer's data.
func (s *Server) RegisterCloud(name string, cloud *terrain.PointCloud) {
	s.mu.Lock()
	s.layers[cloud.ID()] = &layerState{Name: name, Cloud: cloud}
	s.mu.Unlock()

	if s.db != nil {
		if err := s.db.RecordLayer(cloud, name); err != nil {
			log.Printf("api: failed to persist layer %s: %v", cloud.ID(), err)
		}
	}
}

func (s *Server) lookupLayer(id uuid.UUID) (*layerState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ls, ok := s.layers[id]
	return ls, ok
}

type pointPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type createLayerRequest struct {
	Name   string         `json:"name"`
	Points []pointPayload `json:"points"`
}

type layerResponse struct {
	ID         uuid.UUID      `json:"id"`
	Name       string         `json:"name"`
	Revision   uint64         `json:"revision"`
	PointCount int            `json:"point_count"`
	Bounds     terrain.Bounds `json:"bounds"`
}

func (s *Server) layersHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listLayers(w)
	case http.MethodPost:
		s.createLayer(w, r)
	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) listLayers(w http.ResponseWriter) {
	s.mu.RLock()
	layers := make([]layerResponse, 0, len(s.layers))
	for id, ls := range s.layers {
		layers = append(layers, layerResponse{
			ID:         id,
			Name:       ls.Name,
			Revision:   ls.Cloud.Revision(),
			PointCount: ls.Cloud.Len(),
			Bounds:     ls.Cloud.Bounds(),
		})
	}
	s.mu.RUnlock()
	s.writeJSON(w, http.StatusOK, layers)
}

func (s *Server) createLayer(w http.ResponseWriter, r *http.Request) {
	var req createLayerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes)).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Name == "" {
		s.writeJSONError(w, http.StatusBadRequest, "layer name is required")
		return
	}

	points := make([]terrain.Point, len(req.Points))
	for i, p := range req.Points {
		points[i] = terrain.Point{X: p.X, Y: p.Y, Z: p.Z}
	}
	cloud := terrain.NewPointCloud(points)
	s.RegisterCloud(req.Name, cloud)
	log.Printf("api: registered layer %s (%q, %d points)", cloud.ID(), req.Name, cloud.Len())

	s.writeJSON(w, http.StatusCreated, layerResponse{
		ID:         cloud.ID(),
		Name:       req.Name,
		Revision:   cloud.Revision(),
		PointCount: cloud.Len(),
		Bounds:     cloud.Bounds(),
	})
}

func (s *Server) deleteLayerHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id, err := uuid.Parse(r.URL.Query().Get("id"))
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "invalid layer id")
		return
	}

	s.mu.Lock()
	_, ok := s.layers[id]
	delete(s.layers, id)
	s.mu.Unlock()
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, "layer not found")
		return
	}

	s.arena.Invalidate(id)
	if s.db != nil {
		if err := s.db.DeleteLayer(id); err != nil {
			log.Printf("api: failed to delete persisted layer %s: %v", id, err)
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type profileRequest struct {
	LayerID     uuid.UUID    `json:"layer_id"`
	Start       terrain.Vec3 `json:"start"`
	End         terrain.Vec3 `json:"end"`
	SampleCount int          `json:"sample_count,omitempty"`
	ToleranceM  float64      `json:"tolerance_m,omitempty"`
	FillGaps    bool         `json:"fill_gaps,omitempty"`
}

type profileResponse struct {
	Layer   uuid.UUID              `json:"layer_id"`
	Profile *terrain.ProfileResult `json:"profile"`
	Summary terrain.ProfileSummary `json:"summary"`
}

// computeProfile resolves the request against the registered layers and the
// shared index arena. Defaults for sample count and tolerance come from the
// engine config.
func (s *Server) computeProfile(req profileRequest) (*terrain.ProfileResult, error) {
	ls, ok := s.lookupLayer(req.LayerID)
	if !ok {
		return nil, fmt.Errorf("layer %s not found", req.LayerID)
	}

	sampleCount := req.SampleCount
	if sampleCount == 0 {
		sampleCount = *s.cfg.SampleCount
	}
	tolerance := req.ToleranceM
	if tolerance == 0 {
		tolerance = *s.cfg.ToleranceM
	}

	index := s.arena.Index(ls.Cloud)
	line := terrain.LineSegment{Start: req.Start, End: req.End}
	result, err := terrain.ComputeProfile(ls.Cloud, index, line, sampleCount, tolerance)
	if err != nil {
		return nil, err
	}
	if req.FillGaps {
		result = result.InterpolateGaps()
	}
	return result, nil
}

func (s *Server) decodeProfileRequest(w http.ResponseWriter, r *http.Request) (profileRequest, bool) {
	var req profileRequest
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return req, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return req, false
	}
	return req, true
}

func (s *Server) profileHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeProfileRequest(w, r)
	if !ok {
		return
	}

	result, err := s.computeProfile(req)
	if err != nil {
		s.writeProfileError(w, req.LayerID, err)
		return
	}

	if s.db != nil {
		if _, err := s.db.RecordProfileRun(req.LayerID, result); err != nil {
			log.Printf("api: failed to persist profile run for layer %s: %v", req.LayerID, err)
		}
	}

	s.writeJSON(w, http.StatusOK, profileResponse{
		Layer:   req.LayerID,
		Profile: result,
		Summary: result.Summary(),
	})
}

func (s *Server) profileCSVHandler(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeProfileRequest(w, r)
	if !ok {
		return
	}

	result, err := s.computeProfile(req)
	if err != nil {
		s.writeProfileError(w, req.LayerID, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="height_profile.csv"`)
	if err := terrain.WriteCSV(w, result); err != nil {
		log.Printf("api: failed to stream profile csv: %v", err)
	}
}

// writeProfileError maps engine errors onto HTTP statuses: contract
// violations are the client's fault, a stale index or unknown layer is a
// conflict in layer lifecycle, anything else is internal.
func (s *Server) writeProfileError(w http.ResponseWriter, layerID uuid.UUID, err error) {
	switch {
	case errors.Is(err, terrain.ErrInvalidArgument):
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, terrain.ErrStaleIndex):
		s.writeJSONError(w, http.StatusConflict, err.Error())
	default:
		if _, ok := s.lookupLayer(layerID); !ok {
			s.writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

type lodRequest struct {
	LayerID        uuid.UUID          `json:"layer_id"`
	ViewerDistance float64            `json:"viewer_distance"`
	Levels         []terrain.LODLevel `json:"levels,omitempty"`
	MaxIndices     int                `json:"max_indices,omitempty"`
}

type lodResponse struct {
	Layer         uuid.UUID        `json:"layer_id"`
	LevelIndex    int              `json:"level_index"`
	Level         terrain.LODLevel `json:"level"`
	OriginalCount int              `json:"original_count"`
	SelectedCount int              `json:"selected_count"`
	Indices       []int            `json:"indices"`
	Truncated     bool             `json:"truncated,omitempty"`
}

func (s *Server) lodHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req lodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	ls, ok := s.lookupLayer(req.LayerID)
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, "layer not found")
		return
	}

	levels := req.Levels
	if levels == nil {
		levels = s.cfg.LODLevels
	}

	index := s.arena.Index(ls.Cloud)
	sel, err := terrain.SelectForDistance(ls.Cloud, index, levels, req.ViewerDistance)
	if err != nil {
		s.writeProfileError(w, req.LayerID, err)
		return
	}

	resp := lodResponse{
		Layer:         req.LayerID,
		LevelIndex:    sel.LevelIndex,
		Level:         sel.Level,
		OriginalCount: sel.OriginalCount,
		SelectedCount: len(sel.Indices),
		Indices:       sel.Indices,
	}
	if req.MaxIndices > 0 && len(resp.Indices) > req.MaxIndices {
		resp.Indices = resp.Indices[:req.MaxIndices]
		resp.Truncated = true
	}
	s.writeJSON(w, http.StatusOK, resp)
}
