// internal/api/notes.go
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/FairForge/multidb/internal/pinning"
	"github.com/FairForge/multidb/internal/router"
)

// NotesSchema creates the table the notes handlers use.
const NotesSchema = `CREATE TABLE IF NOT EXISTS notes (
	id SERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

var notesHint = router.Hint{Model: "notes"}

type Note struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.QueryContext(r.Context(), notesHint, "SELECT id, title FROM notes ORDER BY id")
	if err != nil {
		s.logger.Error("list notes", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	defer func() { _ = rows.Close() }()

	notes := []Note{}
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.Title); err != nil {
			s.logger.Error("scan note", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "query failed")
			return
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		s.logger.Error("list notes", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, notes)
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	var id int64
	// Read back from the writer: the row is not on a replica yet.
	db, err := s.db.Writer(r.Context(), notesHint)
	if err == nil {
		err = db.QueryRowContext(r.Context(), "INSERT INTO notes (title) VALUES ($1) RETURNING id", req.Title).Scan(&id)
	}
	if err != nil {
		s.logger.Error("create note", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "insert failed")
		return
	}
	pinning.MarkWritten(r.Context())

	writeJSON(w, http.StatusCreated, Note{ID: id, Title: req.Title})
}
