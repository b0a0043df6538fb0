package api

import (
	"net/http"

	"campusd/internal/resolver"
)

// resolveResponse carries building matches for a resolution query.
type resolveResponse struct {
	Matches []resolver.Match `json:"matches"`
}

// handleResolve maps building references to coordinates.
//
// Query parameters (at least one required):
//   - text: free text scanned for building identifiers
//   - room: a room line ("A22 / salle 107"); its building token is
//     resolved exactly first
//   - subject: fallback text scanned when the room line yields nothing
//
// When both room and subject are present they follow the room-first
// policy; text is handled on its own.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	text := query.Get("text")
	room := query.Get("room")
	subject := query.Get("subject")

	if text == "" && room == "" && subject == "" {
		writeBadRequest(w, "one of text, room or subject is required")
		return
	}

	var matches []resolver.Match
	if text != "" {
		matches = s.resolver.ResolveInText(text)
	} else {
		matches = s.resolver.ResolveRoom(room, subject)
	}

	if matches == nil {
		matches = []resolver.Match{}
	}

	writeJSON(w, http.StatusOK, resolveResponse{Matches: matches})
}
