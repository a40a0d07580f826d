package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/soyeahso/concierge/internal/agent"
	"github.com/soyeahso/concierge/internal/domain"
)

const maxBodyBytes = 64 * 1024

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /v1/ws", s.handleWebSocket)

	mux.HandleFunc("POST /v1/turns", s.requireAuth(s.handleTurn))
	mux.HandleFunc("GET /v1/reservations", s.requireAuth(s.handleReservationList))
	mux.HandleFunc("GET /v1/reservations/{id}", s.requireAuth(s.handleReservationGet))
	mux.HandleFunc("GET /v1/sessions/{userId}", s.requireAuth(s.handleSessionGet))
	mux.HandleFunc("GET /v1/channels", s.requireAuth(s.handleChannels))

	if s.metrics != nil && !s.cfg.Metrics.Disabled {
		mux.Handle("GET "+s.cfg.Metrics.Path, s.metrics.Handler())
	}

	mux.HandleFunc("/", handleNotFound)
}

// registerRPCHandlers sets up the WebSocket method handlers.
func (s *Server) registerRPCHandlers() {
	s.Handle(MethodHealth, s.rpcHealth)
	s.Handle(MethodTurn, s.rpcTurn)
	s.Handle(MethodReservationList, s.rpcReservationList)
	s.Handle(MethodReservationGet, s.rpcReservationGet)
	s.Handle(MethodSessionGet, s.rpcSessionGet)
	s.Handle(MethodChannelsStatus, s.rpcChannelsStatus)
}

// turnError is a rejected turn: HTTP status plus the error body.
type turnError struct {
	status int
	shape  ErrorShape
}

// runTurn validates and rate-limits a turn, then runs it. The turn keeps
// running for up to turnTimeout after the caller disconnects so the
// session is saved consistently.
func (s *Server) runTurn(ctx context.Context, req TurnRequest, source string) (TurnResponse, *turnError) {
	if s.runner == nil {
		return TurnResponse{}, &turnError{http.StatusServiceUnavailable, ErrorShape{Code: "unavailable", Message: "no turn runner configured"}}
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return TurnResponse{}, &turnError{http.StatusBadRequest, ErrorShape{Code: "invalid_params", Message: "userId is required"}}
	}
	if ok, wait := s.turns.allow(req.UserID); !ok {
		s.log.Warn().Str("userId", req.UserID).Dur("retryAfter", wait).Msg("turn rate limited")
		return TurnResponse{}, &turnError{http.StatusTooManyRequests, ErrorShape{
			Code:         "rate_limited",
			Message:      "too many messages, slow down",
			Retryable:    true,
			RetryAfterMs: wait.Milliseconds(),
		}}
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), turnTimeout)
	defer cancel()

	res := s.runner.Handle(ctx, agent.Turn{
		UserID:     req.UserID,
		Text:       req.Message,
		Credential: req.AccessToken,
		Source:     source,
	})
	return newTurnResponse(res), nil
}

// HTTP handlers

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req TurnRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrorShape{Code: "invalid_params", Message: "request body too large"})
			return
		}
		writeError(w, http.StatusBadRequest, ErrorShape{Code: "invalid_params", Message: "invalid JSON body: " + err.Error()})
		return
	}

	resp, terr := s.runTurn(r.Context(), req, "gateway")
	if terr != nil {
		if terr.shape.RetryAfterMs > 0 {
			w.Header().Set("Retry-After", strconv.FormatInt((terr.shape.RetryAfterMs+999)/1000, 10))
		}
		writeError(w, terr.status, terr.shape)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReservationList(w http.ResponseWriter, r *http.Request) {
	if s.reservations == nil {
		writeError(w, http.StatusServiceUnavailable, ErrorShape{Code: "unavailable", Message: "no reservation store configured"})
		return
	}
	list := s.reservations.List(r.Context())
	if list == nil {
		list = []domain.Reservation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": list})
}

func (s *Server) handleReservationGet(w http.ResponseWriter, r *http.Request) {
	if s.reservations == nil {
		writeError(w, http.StatusServiceUnavailable, ErrorShape{Code: "unavailable", Message: "no reservation store configured"})
		return
	}
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, ErrorShape{Code: "invalid_params", Message: "reservation id must be a positive integer"})
		return
	}
	res, ok := s.reservations.FindByID(r.Context(), id)
	if !ok {
		writeError(w, http.StatusNotFound, ErrorShape{Code: "not_found", Message: domain.ErrReservationNotFound.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		writeError(w, http.StatusServiceUnavailable, ErrorShape{Code: "unavailable", Message: "no turn runner configured"})
		return
	}
	userID := r.PathValue("userId")
	writeJSON(w, http.StatusOK, s.runner.Sessions().Load(r.Context(), userID))
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	statuses := []domain.ChannelStatus{}
	if s.channels != nil {
		statuses = s.channels.Status()
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": statuses})
}

// RPC handlers

func (s *Server) rpcHealth(rc *RequestContext) {
	resp := HealthResponse{
		Status:   "ok",
		Version:  s.version,
		Hotel:    s.cfg.Hotel.Name,
		Clients:  s.clients.Count(),
		UptimeMs: s.uptime().Milliseconds(),
	}
	if s.channels != nil {
		resp.Channels = s.channels.List()
	}
	rc.Respond(resp)
}

func (s *Server) rpcTurn(rc *RequestContext) {
	var req TurnRequest
	if err := rc.Params(&req); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	userID, err := rc.Client.resolveUser(strings.TrimSpace(req.UserID))
	if err != nil {
		rc.RespondError("forbidden", err.Error())
		return
	}
	req.UserID = userID

	resp, terr := s.runTurn(rc.Ctx, req, "ws")
	if terr != nil {
		rc.RespondErrorShape(terr.shape)
		return
	}
	rc.Client.turns.Add(1)
	rc.Respond(resp)
}

func (s *Server) rpcReservationList(rc *RequestContext) {
	if s.reservations == nil {
		rc.RespondError("unavailable", "no reservation store configured")
		return
	}
	list := []domain.Reservation{}
	for _, r := range s.reservations.List(rc.Ctx) {
		if rc.Client.sees(r.UserID) {
			list = append(list, r)
		}
	}
	rc.Respond(map[string]any{"reservations": list})
}

func (s *Server) rpcReservationGet(rc *RequestContext) {
	if s.reservations == nil {
		rc.RespondError("unavailable", "no reservation store configured")
		return
	}
	var p IDParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if p.ID <= 0 {
		rc.RespondError("invalid_params", "id is required")
		return
	}
	// Another guest's reservation looks the same as a missing one.
	res, ok := s.reservations.FindByID(rc.Ctx, p.ID)
	if !ok || !rc.Client.sees(res.UserID) {
		rc.RespondError("not_found", domain.ErrReservationNotFound.Error())
		return
	}
	rc.Respond(res)
}

func (s *Server) rpcSessionGet(rc *RequestContext) {
	if s.runner == nil {
		rc.RespondError("unavailable", "no turn runner configured")
		return
	}
	var p IDParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	userID, err := rc.Client.resolveUser(strings.TrimSpace(p.UserID))
	if err != nil {
		rc.RespondError("forbidden", err.Error())
		return
	}
	if userID == "" {
		rc.RespondError("invalid_params", "userId is required")
		return
	}
	rc.Respond(s.runner.Sessions().Load(rc.Ctx, userID))
}

func (s *Server) rpcChannelsStatus(rc *RequestContext) {
	statuses := []domain.ChannelStatus{}
	if s.channels != nil {
		statuses = s.channels.Status()
	}
	rc.Respond(map[string]any{"channels": statuses})
}
