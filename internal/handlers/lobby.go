package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/fwilhelm/connectk/internal/models"
)

// CreateLobbyHandler makes a new lobby with default settings and returns its
// snapshot. The caller joins over the websocket afterwards.
func CreateLobbyHandler(f *Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := EnsureGuest(w, r); err != nil {
			http.Error(w, "authentication failed", http.StatusInternalServerError)
			return
		}

		info, err := f.CreateLobby(r.Context())
		if err != nil {
			http.Error(w, "failed to create lobby", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(info)
	}
}

// ListLobbiesHandler returns snapshots of all live lobbies, mainly for
// debugging and dashboards.
func ListLobbiesHandler(f *Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := EnsureGuest(w, r); err != nil {
			http.Error(w, "authentication failed", http.StatusInternalServerError)
			return
		}

		lobbies := f.Registry.Lobbies()
		infos := make([]*models.LobbyInfo, 0, len(lobbies))
		for _, l := range lobbies {
			infos = append(infos, l.Info())
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(infos)
	}
}
