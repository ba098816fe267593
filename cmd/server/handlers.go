package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/himanishpuri/audiofp/internal/fperrors"
	"github.com/himanishpuri/audiofp/internal/ingest"
	"github.com/himanishpuri/audiofp/internal/recognizer"
	"github.com/himanishpuri/audiofp/internal/store"
	"github.com/himanishpuri/audiofp/pkg/fplog"
)

// Server encapsulates the HTTP server and its dependencies.
type Server struct {
	recognizer *recognizer.Recognizer
	config     *ServerConfig
	log        *fplog.Logger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port           int
	DBPath         string
	TempDir        string
	AllowedOrigins []string
}

// NewServer creates a new server instance.
func NewServer(r *recognizer.Recognizer, config *ServerConfig) *Server {
	return &Server{
		recognizer: r,
		config:     config,
		log:        fplog.Get(),
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("failed to encode JSON response: %v", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// handleRoot handles GET /.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": "audiofp API",
		"endpoints": map[string]string{
			"health":          "GET /health",
			"stats":           "GET /api/stats",
			"recordings":      "GET /api/recordings",
			"addRecording":    "POST /api/recordings",
			"getRecording":    "GET /api/recordings/{id}",
			"deleteRecording": "DELETE /api/recordings/{id}",
			"identify":        "POST /api/identify",
		},
	})
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleStats handles GET /api/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.recognizer.GetStats(r.Context())
	if err != nil {
		s.log.Errorf("failed to get stats: %v", err)
		s.respondError(w, http.StatusInternalServerError, "failed to retrieve stats")
		return
	}

	s.respondJSON(w, http.StatusOK, StatsResponse{
		RecordingCount:          stats.RecordingCount,
		FingerprintCount:        stats.FingerprintCount,
		QueryCount:              stats.QueryCount,
		SuccessfulQueryCount:    stats.SuccessfulQueryCount,
		AverageProcessingTimeMs: stats.AverageProcessingTimeMs,
	})
}

// handleListRecordings handles GET /api/recordings.
func (s *Server) handleListRecordings(w http.ResponseWriter, r *http.Request) {
	recordings, err := s.recognizer.ListRecordings(r.Context())
	if err != nil {
		s.log.Errorf("failed to list recordings: %v", err)
		s.respondError(w, http.StatusInternalServerError, "failed to retrieve recordings")
		return
	}

	dtos := make([]RecordingDTO, len(recordings))
	for i, rec := range recordings {
		dtos[i] = recordingToDTO(rec)
	}

	s.respondJSON(w, http.StatusOK, ListRecordingsResponse{
		Recordings: dtos,
		Count:      len(dtos),
	})
}

// handleGetRecording handles GET /api/recordings/{id}.
func (s *Server) handleGetRecording(w http.ResponseWriter, r *http.Request, id uint32) {
	rec, err := s.recognizer.GetRecording(r.Context(), id)
	if err != nil {
		if errors.Is(err, fperrors.ErrRecordingNotFound) {
			s.respondError(w, http.StatusNotFound, fmt.Sprintf("recording %d not found", id))
			return
		}
		s.log.Errorf("failed to get recording %d: %v", id, err)
		s.respondError(w, http.StatusInternalServerError, "failed to retrieve recording")
		return
	}

	s.respondJSON(w, http.StatusOK, recordingToDTO(*rec))
}

// handleDeleteRecording handles DELETE /api/recordings/{id}.
func (s *Server) handleDeleteRecording(w http.ResponseWriter, r *http.Request, id uint32) {
	if err := s.recognizer.Delete(r.Context(), id); err != nil {
		if errors.Is(err, fperrors.ErrRecordingNotFound) {
			s.respondError(w, http.StatusNotFound, fmt.Sprintf("recording %d not found", id))
			return
		}
		s.log.Errorf("failed to delete recording %d: %v", id, err)
		s.respondError(w, http.StatusInternalServerError, "failed to delete recording")
		return
	}

	s.log.Infof("deleted recording %d", id)
	s.respondJSON(w, http.StatusOK, DeleteRecordingResponse{
		Message: "recording deleted",
		ID:      id,
	})
}

// handleAddRecording handles POST /api/recordings (multipart file upload).
func (s *Server) handleAddRecording(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(100 << 20); err != nil {
		s.log.Errorf("failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "failed to parse form data")
		return
	}

	title := r.FormValue("title")
	artist := r.FormValue("artist")
	if title == "" || artist == "" {
		s.respondError(w, http.StatusBadRequest, "title and artist are required")
		return
	}

	var album *string
	if a := r.FormValue("album"); a != "" {
		album = &a
	}

	tempFile, cleanup, err := s.saveUpload(r, "audio", "upload")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer cleanup()

	s.log.Infof("adding recording from file: %s by %s", title, artist)
	id, err := s.recognizer.Add(r.Context(), ingest.Metadata{
		Title:     title,
		Artist:    artist,
		Album:     album,
		SourceRef: tempFile,
	}, tempFile)
	if err != nil {
		s.log.Errorf("failed to add recording: %v", err)
		s.respondError(w, http.StatusUnprocessableEntity, fmt.Sprintf("failed to add recording: %v", err))
		return
	}

	s.log.Infof("added recording %d: %s by %s", id, title, artist)
	s.respondJSON(w, http.StatusCreated, AddRecordingResponse{ID: id})
}

// handleIdentify handles POST /api/identify (multipart file upload).
func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(50 << 20); err != nil {
		s.log.Errorf("failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "failed to parse form data")
		return
	}

	tempFile, cleanup, err := s.saveUpload(r, "audio", "query")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer cleanup()

	result, err := s.recognizer.Identify(r.Context(), tempFile)
	if err != nil {
		if errors.Is(err, fperrors.ErrNoMatch) {
			s.respondJSON(w, http.StatusOK, NoMatchResponse{Match: false})
			return
		}
		if errors.Is(err, fperrors.ErrTimeout) {
			s.respondError(w, http.StatusGatewayTimeout, "identification timed out")
			return
		}
		s.log.Errorf("failed to identify: %v", err)
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to identify: %v", err))
		return
	}

	s.respondJSON(w, http.StatusOK, IdentifyResponse{
		RecordingID:           result.RecordingID,
		Confidence:            result.Confidence,
		AlignedMatches:        result.AlignedMatches,
		QueryFingerprintCount: result.QueryFingerprintCount,
		ProcessingTimeMs:      result.ProcessingTimeMs,
	})
}

// saveUpload copies the named multipart field to a temp file under
// s.config.TempDir and returns its path and a cleanup func.
func (s *Server) saveUpload(r *http.Request, field, prefix string) (string, func(), error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", nil, fmt.Errorf("%s file is required", field)
	}
	defer file.Close()

	tempFile := filepath.Join(s.config.TempDir, fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixNano(), header.Filename))
	out, err := os.Create(tempFile)
	if err != nil {
		return "", nil, fmt.Errorf("failed to process upload")
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		os.Remove(tempFile)
		return "", nil, fmt.Errorf("failed to save uploaded file")
	}

	return tempFile, func() { os.Remove(tempFile) }, nil
}

func recordingToDTO(rec store.Recording) RecordingDTO {
	return RecordingDTO{
		ID:              rec.ID,
		Title:           rec.Title,
		Artist:          rec.Artist,
		Album:           rec.Album,
		DurationSeconds: rec.DurationSeconds,
		SourceRef:       rec.SourceRef,
	}
}

// handleRecordings routes requests to /api/recordings.
func (s *Server) handleRecordings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListRecordings(w, r)
	case http.MethodPost:
		s.handleAddRecording(w, r)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleRecording routes requests to /api/recordings/{id}.
func (s *Server) handleRecording(w http.ResponseWriter, r *http.Request) {
	idStr := r.URL.Path[len("/api/recordings/"):]
	if idStr == "" {
		s.respondError(w, http.StatusBadRequest, "recording id required")
		return
	}

	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid recording id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetRecording(w, r, uint32(id))
	case http.MethodDelete:
		s.handleDeleteRecording(w, r, uint32(id))
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleIdentifyRoute routes requests to /api/identify.
func (s *Server) handleIdentifyRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.handleIdentify(w, r)
}
