package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"club-ladder/internal/domain"
	"club-ladder/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Server exposes the ledger core over a JSON API. Handlers stay thin: decode,
// call the service, map the error taxonomy onto status codes.
type Server struct {
	playerSvc *service.PlayerService
	ledgerSvc *service.LedgerService
	logger    zerolog.Logger
}

func New(playerSvc *service.PlayerService, ledgerSvc *service.LedgerService, logger zerolog.Logger) *Server {
	return &Server{playerSvc: playerSvc, ledgerSvc: ledgerSvc, logger: logger}
}

func (s *Server) Routes(r chi.Router) {
	r.Get("/api/health", s.handleHealth)

	r.Post("/api/players", s.handleRegisterPlayer)
	r.Get("/api/players", s.handleLeaderboard)
	r.Delete("/api/players/{id}", s.handleDeletePlayer)
	r.Get("/api/players/{id}/rating", s.handleCurrentRating)
	r.Get("/api/players/{id}/history", s.handleRatingHistory)

	r.Post("/api/matches", s.handleSubmitMatch)
	r.Get("/api/matches", s.handleListMatches)
	r.Put("/api/matches/{id}", s.handleEditMatch)
	r.Delete("/api/matches/{id}", s.handleDeleteMatch)

	r.Post("/api/ratings/reset", s.handleResetRatings)
}

type matchPayload struct {
	Home1ID    string    `json:"home1_id"`
	Home2ID    string    `json:"home2_id"`
	Away1ID    string    `json:"away1_id"`
	Away2ID    string    `json:"away2_id"`
	HomeScore  int       `json:"home_score"`
	AwayScore  int       `json:"away_score"`
	Home1Bonus int       `json:"home1_bonus"`
	Home2Bonus int       `json:"home2_bonus"`
	Away1Bonus int       `json:"away1_bonus"`
	Away2Bonus int       `json:"away2_bonus"`
	PlayedAt   time.Time `json:"played_at"`
}

func (p matchPayload) toInput() service.MatchInput {
	return service.MatchInput{
		Home1ID:    p.Home1ID,
		Home2ID:    p.Home2ID,
		Away1ID:    p.Away1ID,
		Away2ID:    p.Away2ID,
		HomeScore:  p.HomeScore,
		AwayScore:  p.AwayScore,
		Home1Bonus: p.Home1Bonus,
		Home2Bonus: p.Home2Bonus,
		Away1Bonus: p.Away1Bonus,
		Away2Bonus: p.Away2Bonus,
		PlayedAt:   p.PlayedAt,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleRegisterPlayer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, &domain.ValidationError{Field: "body", Reason: "invalid JSON"})
		return
	}

	player, err := s.playerSvc.Register(r.Context(), body.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, player)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	rows, err := s.playerSvc.Leaderboard(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleDeletePlayer(w http.ResponseWriter, r *http.Request) {
	if err := s.playerSvc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCurrentRating(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rating, err := s.ledgerSvc.CurrentRating(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"player_id": id, "rating": rating})
}

func (s *Server) handleRatingHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	history, err := s.ledgerSvc.RatingHistory(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"player_id": id, "history": history})
}

func (s *Server) handleSubmitMatch(w http.ResponseWriter, r *http.Request) {
	var body matchPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, &domain.ValidationError{Field: "body", Reason: "invalid JSON"})
		return
	}

	ratings, err := s.ledgerSvc.SubmitMatch(r.Context(), body.toInput())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{"ratings": ratings})
}

func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := s.ledgerSvc.ListMatches(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, matches)
}

func (s *Server) handleEditMatch(w http.ResponseWriter, r *http.Request) {
	var body matchPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, &domain.ValidationError{Field: "body", Reason: "invalid JSON"})
		return
	}

	if err := s.ledgerSvc.EditMatch(r.Context(), chi.URLParam(r, "id"), body.toInput()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteMatch(w http.ResponseWriter, r *http.Request) {
	if err := s.ledgerSvc.DeleteMatch(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetRatings(w http.ResponseWriter, r *http.Request) {
	if err := s.ledgerSvc.ResetAllRatings(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		valErr    *domain.ValidationError
		commitErr *domain.CommitError
		replayErr *domain.ReplayError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &valErr):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrPlayerNotFound), errors.Is(err, domain.ErrMatchNotFound):
		status = http.StatusNotFound
	case errors.As(err, &commitErr):
		status = http.StatusConflict
	case errors.As(err, &replayErr):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("request failed")
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
