package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ivolkov/loothound/game/app"
	"github.com/ivolkov/loothound/game/geom"
	"github.com/ivolkov/loothound/transport/websocket"
)

// Server is the REST facade over the application. It owns the router,
// middleware chain, static file serving and the websocket upgrade endpoint.
type Server struct {
	app    *app.Application
	hub    *websocket.Hub
	logger *zap.SugaredLogger
	router chi.Router
}

// NewServer builds the server and its routes. hub may be nil when the
// spectator stream is disabled.
func NewServer(logger *zap.Logger, application *app.Application, hub *websocket.Hub, wwwRoot string) *Server {
	s := &Server{
		app:    application,
		hub:    hub,
		logger: logger.Sugar(),
		router: chi.NewRouter(),
	}
	s.setupRoutes(wwwRoot)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes(wwwRoot string) {
	metrics := NewMetrics(s.app)

	s.router.Use(requestLogger(s.logger))
	s.router.Use(recoverer(s.logger))
	s.router.Use(metrics.Middleware)
	s.router.Use(chimiddleware.StripSlashes)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
			writeBadRequest(w, "Invalid endpoint")
		})
		r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
			writeBadRequest(w, "Invalid endpoint")
		})

		r.HandleFunc("/maps", s.handleMapsList)
		r.HandleFunc("/maps/{id}", s.handleMapInfo)
		r.HandleFunc("/game/join", s.handleJoin)
		r.HandleFunc("/game/players", s.handlePlayers)
		r.HandleFunc("/game/state", s.handleState)
		r.HandleFunc("/game/player/action", s.handleAction)
		r.HandleFunc("/game/tick", s.handleTick)
		r.HandleFunc("/game/records", s.handleRecords)
	})

	s.router.Method(http.MethodGet, "/metrics", metrics.Handler())

	if s.hub != nil {
		s.router.HandleFunc("/ws", s.handleWebSocket)
	}

	// Everything else under /api is a client error; every other path is a
	// static file lookup.
	static := newStaticHandler(wwwRoot)
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api") {
			writeBadRequest(w, "Invalid endpoint")
			return
		}
		static.ServeHTTP(w, r)
	})
}

func (s *Server) handleMapsList(w http.ResponseWriter, r *http.Request) {
	if !requireGetOrHead(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, mapsListDocument(s.app.ListMaps()))
}

func (s *Server) handleMapInfo(w http.ResponseWriter, r *http.Request) {
	if !requireGetOrHead(w, r) {
		return
	}

	gameMap := s.app.FindMap(chi.URLParam(r, "id"))
	if gameMap == nil {
		writeMapNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, mapInfoDocument(gameMap))
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeInvalidMethod(w, "POST", "Only POST method is expected")
		return
	}

	var request struct {
		UserName string `json:"userName"`
		MapID    string `json:"mapId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeInvalidArgument(w, "Join game request parse error")
		return
	}

	result, err := s.app.Join(request.UserName, request.MapID)
	switch {
	case errors.Is(err, app.ErrInvalidName):
		writeInvalidArgument(w, "Invalid name")
		return
	case errors.Is(err, app.ErrMapNotFound):
		writeMapNotFound(w)
		return
	case errors.Is(err, app.ErrNotRunning):
		writeBadRequest(w, "Server is shutting down")
		return
	case err != nil:
		s.logger.Errorw("join failed", "error", err)
		writeError(w, http.StatusInternalServerError, CodeBadRequest, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"authToken": string(result.Token),
		"playerId":  result.PlayerID,
	})
}

func (s *Server) handlePlayers(w http.ResponseWriter, r *http.Request) {
	if !requireGetOrHead(w, r) {
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		writeInvalidToken(w)
		return
	}

	players, err := s.app.PlayersFor(token)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, playersDocument(players))
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if !requireGetOrHead(w, r) {
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		writeInvalidToken(w)
		return
	}

	view, err := s.app.StateFor(token)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateDocument(view))
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeInvalidMethod(w, "POST", "Only POST method is expected")
		return
	}
	if !hasJSONContentType(r) {
		writeInvalidArgument(w, "Invalid content type")
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		writeInvalidToken(w)
		return
	}

	var request struct {
		Move *string `json:"move"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil || request.Move == nil {
		writeInvalidArgument(w, "Failed to parse action")
		return
	}

	direction, ok := parseMove(*request.Move)
	if !ok {
		writeInvalidArgument(w, "Failed to parse action")
		return
	}

	if err := s.app.Move(token, direction); err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{})
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeInvalidMethod(w, "POST", "Only POST method is expected")
		return
	}
	if s.app.HasInternalTicker() {
		writeBadRequest(w, "Invalid endpoint")
		return
	}
	if !hasJSONContentType(r) {
		writeInvalidArgument(w, "Invalid content type")
		return
	}

	var request struct {
		TimeDelta *int64 `json:"timeDelta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil ||
		request.TimeDelta == nil || *request.TimeDelta < 0 {
		writeInvalidArgument(w, "Failed to parse tick request JSON")
		return
	}

	if err := s.app.Tick(time.Duration(*request.TimeDelta) * time.Millisecond); err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{})
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	if !requireGetOrHead(w, r) {
		return
	}

	start := 0
	maxItems := app.MaxRecordsPageSize

	query := r.URL.Query()
	if v := query.Get("start"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			writeInvalidArgument(w, "Invalid start parameter")
			return
		}
		start = parsed
	}
	if v := query.Get("maxItems"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			writeInvalidArgument(w, "Invalid maxItems parameter")
			return
		}
		maxItems = parsed
	}

	records, err := s.app.Records(r.Context(), start, maxItems)
	if errors.Is(err, app.ErrRecordsLimit) {
		writeInvalidArgument(w, err.Error())
		return
	}
	if err != nil {
		s.logger.Errorw("records read failed", "error", err)
		writeError(w, http.StatusInternalServerError, CodeBadRequest, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, recordsDocument(records))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	mapID := r.URL.Query().Get("mapId")
	if mapID == "" || s.app.FindMap(mapID) == nil {
		writeMapNotFound(w)
		return
	}
	s.hub.ServeWS(w, r, mapID)
}

// writeAppError maps application errors onto the error envelope.
func (s *Server) writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrUnknownToken):
		writeUnknownToken(w)
	case errors.Is(err, app.ErrMapNotFound):
		writeMapNotFound(w)
	case errors.Is(err, app.ErrNotRunning):
		writeBadRequest(w, "Server is shutting down")
	default:
		s.logger.Errorw("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, CodeBadRequest, "Internal server error")
	}
}

func requireGetOrHead(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeInvalidMethod(w, "GET,HEAD", "Only GET and HEAD are expected")
		return false
	}
	return true
}

func hasJSONContentType(r *http.Request) bool {
	return r.Header.Get("Content-Type") == "application/json"
}

func parseMove(move string) (geom.Direction, bool) {
	switch move {
	case "L":
		return geom.West, true
	case "R":
		return geom.East, true
	case "U":
		return geom.North, true
	case "D":
		return geom.South, true
	case "":
		return geom.None, true
	}
	return geom.None, false
}

// NewStateBroadcaster adapts the websocket hub to the application's
// broadcaster seam, rendering session state in the /game/state shape.
func NewStateBroadcaster(hub *websocket.Hub) app.StateBroadcaster {
	return stateBroadcaster{hub: hub}
}

type stateBroadcaster struct {
	hub *websocket.Hub
}

func (b stateBroadcaster) BroadcastState(mapID string, view app.StateView) {
	b.hub.Broadcast(mapID, stateDocument(view))
}
