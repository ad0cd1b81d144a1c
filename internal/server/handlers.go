package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/daszybak/polymarket_dashboard/internal/book"
	"github.com/daszybak/polymarket_dashboard/internal/polymarket/clob"
	"github.com/daszybak/polymarket_dashboard/internal/polymarket/gamma"
	"github.com/daszybak/polymarket_dashboard/internal/price"
)

const (
	defaultEventsLimit = 20
	maxEventsLimit     = gamma.DefaultPageSize
)

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultEventsLimit)
	offset := queryInt(r, "offset", 0)
	if limit <= 0 || limit > maxEventsLimit || offset < 0 {
		httpError(w, http.StatusBadRequest, "invalid limit or offset")
		return
	}

	key := "events:" + strconv.Itoa(limit) + ":" + strconv.Itoa(offset)
	if payload, ok := s.cache.Get(r.Context(), key); ok {
		writeJSONRaw(w, payload)
		return
	}

	payload, err := s.gamma.GetEventsRaw(r.Context(), limit, offset)
	if err != nil {
		s.upstreamError(w, "couldn't fetch events", err)
		return
	}

	s.cache.Set(r.Context(), key, payload)
	writeJSONRaw(w, payload)
}

func (s *Server) handleAllEvents(w http.ResponseWriter, r *http.Request) {
	if payload, ok := s.cache.Get(r.Context(), "events:all"); ok {
		writeJSONRaw(w, payload)
		return
	}

	events, err := s.gamma.GetAllEvents(r.Context())
	if err != nil {
		s.upstreamError(w, "couldn't fetch full catalog", err)
		return
	}

	payload, err := json.Marshal(events)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "couldn't encode events")
		return
	}

	s.cache.Set(r.Context(), "events:all", payload)
	writeJSONRaw(w, payload)
}

func (s *Server) handleOrderbook(w http.ResponseWriter, r *http.Request) {
	tokenID := r.URL.Query().Get("token_id")
	if tokenID == "" {
		httpError(w, http.StatusBadRequest, "token_id is required")
		return
	}

	payload, err := s.clob.GetBookRaw(r.Context(), tokenID)
	if err != nil {
		s.upstreamError(w, "couldn't fetch orderbook", err)
		return
	}
	writeJSONRaw(w, payload)
}

func (s *Server) handleDeriveAuth(w http.ResponseWriter, r *http.Request) {
	var req clob.DeriveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Address == "" || req.Signature == "" {
		httpError(w, http.StatusBadRequest, "address and signature are required")
		return
	}

	creds, err := s.clob.DeriveAPIKey(r.Context(), req)
	if err != nil {
		s.upstreamError(w, "couldn't derive API key", err)
		return
	}
	writeJSON(w, creds)
}

type selectionRequest struct {
	TokenIDs []string `json:"token_ids"`
}

func (s *Server) handleSetSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.feed.Select(r.Context(), req.TokenIDs); err != nil {
		httpError(w, http.StatusServiceUnavailable, "feed is not running")
		return
	}
	writeJSON(w, map[string]any{"token_ids": req.TokenIDs})
}

func (s *Server) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	if err := s.feed.Select(r.Context(), nil); err != nil {
		httpError(w, http.StatusServiceUnavailable, "feed is not running")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// bookLevel is one row of a live book response. Cumulative carries the running
// size from the top of the side down to this level, for depth shading.
type bookLevel struct {
	Price      price.Price `json:"price"`
	Size       price.Size  `json:"size"`
	Cumulative price.Size  `json:"cumulative"`
}

type bookResponse struct {
	TokenID     string      `json:"token_id"`
	Bids        []bookLevel `json:"bids"`
	Asks        []bookLevel `json:"asks"`
	LastUpdated time.Time   `json:"last_updated"`
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	tokenID := mux.Vars(r)["token_id"]

	snap, ok := s.feed.Books().Snapshot(tokenID)
	if !ok {
		httpError(w, http.StatusNotFound, "no book for token")
		return
	}

	writeJSON(w, bookResponse{
		TokenID:     snap.TokenID,
		Bids:        cumulate(snap.Bids),
		Asks:        cumulate(snap.Asks),
		LastUpdated: snap.LastUpdated,
	})
}

func cumulate(levels []book.Level) []bookLevel {
	out := make([]bookLevel, len(levels))
	var running price.Size
	for i, lvl := range levels {
		running += lvl.Size
		out[i] = bookLevel{Price: lvl.Price, Size: lvl.Size, Cumulative: running}
	}
	return out
}

func (s *Server) upstreamError(w http.ResponseWriter, msg string, err error) {
	s.log.Warn(msg, "error", err)
	if status, ok := clob.UpstreamStatus(err); ok {
		httpError(w, status, msg)
		return
	}
	httpError(w, http.StatusBadGateway, msg)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return n
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeJSONRaw(w http.ResponseWriter, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(payload)
}

func httpError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
