package app

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// createGameRequest is the JSON body for POST /games.
type createGameRequest struct {
	PlayerName string `json:"playerName"`
}

// turnRequest is the JSON body for POST /games/{gameID}/turns.
type turnRequest struct {
	Input string `json:"input"`
}

// registerGameRoutes adds the game-creation and turn-processing endpoints
// to mux.
func (a *App) registerGameRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /games", a.handleCreateGame)
	mux.HandleFunc("POST /games/{gameID}/turns", a.handleProcessTurn)
}

func (a *App) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, err)
		return
	}
	if req.PlayerName == "" {
		writeAPIError(w, http.StatusBadRequest, errMissingPlayerName)
		return
	}

	gameID := uuid.NewString()
	game, err := a.CreateGame(r.Context(), gameID, req.PlayerName)
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, err)
		return
	}
	writeAPIJSON(w, http.StatusCreated, game)
}

func (a *App) handleProcessTurn(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("gameID")

	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, err)
		return
	}
	if req.Input == "" {
		writeAPIError(w, http.StatusBadRequest, errMissingInput)
		return
	}

	result, err := a.ProcessTurn(r.Context(), gameID, req.Input)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, err)
		return
	}

	// Drain the narrator's streamed chunks into the response; HTTP clients of
	// this API get the assembled text, not the stream itself.
	for range result.Chunks {
	}
	writeAPIJSON(w, http.StatusOK, result)
}

func writeAPIJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, err error) {
	writeAPIJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: err.Error()})
}
