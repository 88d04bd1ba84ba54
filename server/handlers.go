package server

import (
	"encoding/json"
	"net/http"

	"github.com/eduassist/portalsync/ai"
	"github.com/eduassist/portalsync/internal/errors"
	"github.com/eduassist/portalsync/platform"
	"github.com/eduassist/portalsync/records"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("encoding response body")
	}
}

// writeError maps the error taxonomy onto HTTP statuses. Responses
// carry a generic message per class; the full chain goes to the log
// only, so credentials wrapped into error context can never leak to a
// client.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var status int
	var msg string
	switch {
	case errors.Is(err, errors.ErrAuthentication), errors.Is(err, errors.ErrCredentialNotFound):
		status, msg = http.StatusUnauthorized, "authentication with the platform failed"
	case errors.Is(err, errors.ErrSessionDependency):
		status, msg = http.StatusBadGateway, "a required upstream session could not be established"
	case errors.Is(err, errors.ErrPlatformUnavailable):
		status, msg = http.StatusBadGateway, "the platform is not answering in a recognizable way"
	case errors.Is(err, errors.ErrTimeout):
		status, msg = http.StatusGatewayTimeout, "the platform took too long to respond"
	case errors.Is(err, platform.ErrUnknownPlatform):
		status, msg = http.StatusBadRequest, "unknown platform"
	default:
		status, msg = http.StatusInternalServerError, "internal server error"
	}

	s.logger.Error().Err(err).Int("status", status).Msg("request failed")
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// PreflightHandler only runs when the CORS middleware let an OPTIONS
// request through, which means there was no Origin header.
func (s *Server) PreflightHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
			"app":    s.config.GetAppName(),
		})
	}
}

func (s *Server) PlatformsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		known := platform.Known()
		out := make([]string, 0, len(known))
		for _, p := range known {
			out = append(out, string(p))
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"platforms": out})
	}
}

// requestScope pulls the platform path segment and the user query
// parameter out of a coursework request.
func (s *Server) requestScope(w http.ResponseWriter, r *http.Request) (string, platform.Platform, bool) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing user query parameter"})
		return "", "", false
	}

	p, err := platform.Parse(r.PathValue("platform"))
	if err != nil {
		s.writeError(w, err)
		return "", "", false
	}
	return userID, p, true
}

func (s *Server) AssignmentsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, p, ok := s.requestScope(w, r)
		if !ok {
			return
		}

		assignments, err := s.coursework.ListAssignments(r.Context(), userID, p)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{
			"platform":    string(p),
			"count":       len(assignments),
			"assignments": assignments,
		})
	}
}

func (s *Server) CoursesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, p, ok := s.requestScope(w, r)
		if !ok {
			return
		}

		courses, err := s.coursework.ListCourses(r.Context(), userID, p)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{
			"platform": string(p),
			"count":    len(courses),
			"courses":  courses,
		})
	}
}

func (s *Server) CleverAppsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user")
		if userID == "" {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing user query parameter"})
			return
		}

		apps, err := s.coursework.ListCleverApps(r.Context(), userID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{
			"count": len(apps),
			"apps":  apps,
		})
	}
}

func (s *Server) AnalyzeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.assistant == nil {
			s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "study assistant is not configured"})
			return
		}

		var assignment records.Assignment
		if err := json.NewDecoder(r.Body).Decode(&assignment); err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		if assignment.Title == "" {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "assignment title is required"})
			return
		}

		analysis, err := s.assistant.AnalyzeAssignment(r.Context(), assignment)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, analysis)
	}
}

type questionRequest struct {
	Question     string `json:"question"`
	QuestionType string `json:"question_type"`
}

func (s *Server) QuestionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.assistant == nil {
			s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "study assistant is not configured"})
			return
		}

		var req questionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		if req.Question == "" {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "question is required"})
			return
		}

		answer, err := s.assistant.HelpWithQuestion(r.Context(), req.Question, ai.QuestionType(req.QuestionType))
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
	}
}
