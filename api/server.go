package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/Fenex/samogonki-srv/game/engine"
	"github.com/Fenex/samogonki-srv/game/kdlab"
	"github.com/Fenex/samogonki-srv/game/service"
)

// LegacyPath is where game clients post KDLAB packets.
const LegacyPath = "/game-on-line/default.asp"

// Server represents the HTTP server: the legacy KDLAB endpoint plus the
// JSON admin API.
type Server struct {
	service service.GameService
	router  *mux.Router
}

// NewServer creates a new API server
func NewServer(gameService service.GameService) *Server {
	s := &Server{
		service: gameService,
		router:  mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Use(requestLogger)

	s.router.HandleFunc(LegacyPath, s.handleInfo).Methods("GET")
	s.router.HandleFunc(LegacyPath, s.handlePacket).Methods("POST")

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Users
	api.HandleFunc("/users", s.handleCreateUser).Methods("POST")
	api.HandleFunc("/users/{id}", s.handleGetUser).Methods("GET")

	// Games
	api.HandleFunc("/games", s.handleListGames).Methods("GET")
	api.HandleFunc("/games", s.handleCreateGame).Methods("POST")
	api.HandleFunc("/games/{id}", s.handleGetGame).Methods("GET")
	api.HandleFunc("/games/{id}/join", s.handleJoinGame).Methods("POST")

	// Presets
	api.HandleFunc("/presets", s.handleListPresets).Methods("GET")
	api.HandleFunc("/presets/{name}", s.handleGetPreset).Methods("GET")

	// Packet tools
	api.HandleFunc("/packets/decode", s.handleDecodePacket).Methods("POST")
	api.HandleFunc("/packets/encode", s.handleEncodePacket).Methods("POST")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the router so other handlers can be mounted next to the
// API.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Warn("failed to write response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps a service error to its status code.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	}
	respondError(w, status, err.Error())
}

// statusFor maps the engine and service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrGameNotFound),
		errors.Is(err, engine.ErrUserNotFound),
		errors.Is(err, service.ErrPresetNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrIncorrectPlayerID),
		errors.Is(err, engine.ErrGameNotActive),
		errors.Is(err, engine.ErrIncorrectStepNumber),
		errors.Is(err, engine.ErrIncorrectIncomeSteps),
		errors.Is(err, engine.ErrIncorrectIncomePlayers),
		errors.Is(err, engine.ErrUnexpectedPacketType):
		return http.StatusNotAcceptable
	case errors.Is(err, engine.ErrStorage):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrAlreadyJoined),
		errors.Is(err, service.ErrGameFull),
		errors.Is(err, engine.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, engine.ErrInvalidGame),
		errors.Is(err, engine.ErrInvalidWorld):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func pathID(r *http.Request) (uint32, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", mux.Vars(r)["id"])
	}
	return uint32(id), nil
}

// User Handlers

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req service.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SteamID <= 0 {
		respondError(w, http.StatusBadRequest, "steam_id is required")
		return
	}

	user, err := s.service.CreateUser(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.service.GetUser(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// Game Handlers

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.service.ListGames(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"total": len(games),
		"games": games,
	})
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req service.CreateGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.OwnerID == 0 {
		respondError(w, http.StatusBadRequest, "owner_id is required")
		return
	}

	game, err := s.service.CreateGame(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, game)
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	game, err := s.service.GetGame(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, game)
}

func (s *Server) handleJoinGame(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		UserID uint32 `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	game, err := s.service.JoinGame(r.Context(), id, req.UserID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, game)
}

// Preset Handlers

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	presets, err := s.service.ListPresets(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, presets)
}

func (s *Server) handleGetPreset(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSuffix(mux.Vars(r)["name"], ".json")

	preset, err := s.service.GetPreset(r.Context(), name)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, preset)
}

// Packet tool handlers

func (s *Server) handleDecodePacket(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, ok := kdlab.Decode(body)
	if !ok {
		respondError(w, http.StatusBadRequest, errBadSyntax.Error())
		return
	}

	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleEncodePacket(w http.ResponseWriter, r *http.Request) {
	var p kdlab.Packet
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !p.Type.Valid() {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid packet type %d", p.Type))
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"packet": kdlab.Encode(&p)})
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
