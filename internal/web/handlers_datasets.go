package web

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/csvkit/internal/store"
	"github.com/JonMunkholm/csvkit/internal/wire"
)

// DatasetResponse is a stored dataset with its parsed content.
type DatasetResponse struct {
	Dataset store.Dataset  `json:"dataset"`
	Table   wire.TableData `json:"table"`
}

// handleSaveDataset parses the CSV body and stores it. The dialect comes
// from the query string and is kept with the dataset.
func (s *Server) handleSaveDataset(w http.ResponseWriter, r *http.Request) {
	cfg, err := dialectFromQuery(r, s.service.Dialect())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	text, err := s.readText(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	d, err := s.service.SaveDataset(r.Context(), r.URL.Query().Get("name"), text, cfg)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/datasets/"+d.ID.String())
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", store.DefaultListLimit)

	datasets, err := s.service.ListDatasets(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if datasets == nil {
		datasets = []store.Dataset{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"datasets": datasets,
		"count":    len(datasets),
	})
}

func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	id, err := datasetID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	d, t, err := s.service.LoadDataset(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, DatasetResponse{Dataset: d, Table: wire.FromTable(t)})
}

// handleDownloadDataset serves the dataset as a CSV attachment, written in
// its stored dialect. The crlf query parameter picks the line terminator.
func (s *Server) handleDownloadDataset(w http.ResponseWriter, r *http.Request) {
	id, err := datasetID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	d, t, err := s.service.LoadDataset(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	cfg, err := dialectFromQuery(r, d.Dialect())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	out, err := s.service.Serialize(r.Context(), t, cfg)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", wire.ContentTypeCSV+"; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachmentName(d.Name)))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(out))
}

func (s *Server) handleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	id, err := datasetID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := s.service.DeleteDataset(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// attachmentName makes a download file name from a dataset name.
func attachmentName(name string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, name)
	if !strings.HasSuffix(strings.ToLower(safe), ".csv") {
		safe += ".csv"
	}
	return safe
}
