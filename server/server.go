// Package server exposes the coursework aggregator and the study
// assistant over a JSON API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/eduassist/portalsync/aggregator"
	"github.com/eduassist/portalsync/ai"
	"github.com/eduassist/portalsync/internal/config"
	"github.com/eduassist/portalsync/platform"
	"github.com/eduassist/portalsync/records"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Coursework is the aggregator surface the handlers call.
// Implemented by aggregator.Service.
type Coursework interface {
	ListAssignments(ctx context.Context, userID string, p platform.Platform) ([]records.Assignment, error)
	ListCourses(ctx context.Context, userID string, p platform.Platform) ([]records.Course, error)
	ListCleverApps(ctx context.Context, userID string) ([]records.App, error)
}

var _ Coursework = (*aggregator.Service)(nil)

// StudyAssistant is the AI surface the handlers call.
// Implemented by ai.Assistant.
type StudyAssistant interface {
	AnalyzeAssignment(ctx context.Context, assignment records.Assignment) (ai.Analysis, error)
	HelpWithQuestion(ctx context.Context, question string, qt ai.QuestionType) (string, error)
}

var _ StudyAssistant = (*ai.Assistant)(nil)

type Server struct {
	env        string
	mux        *http.ServeMux
	routes     []string
	config     config.Config
	coursework Coursework
	assistant  StudyAssistant
	logger     zerolog.Logger
}

func New(cfg config.Config, coursework Coursework, assistant StudyAssistant, logger zerolog.Logger) (*Server, error) {
	if coursework == nil {
		return nil, pkgerrors.New("[Server New] coursework service is required")
	}

	s := &Server{
		mux:        http.NewServeMux(),
		config:     cfg,
		coursework: coursework,
		assistant:  assistant,
		logger:     logger,
	}
	s.env = cfg.GetEnv()

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			s.logRoute(parts[0], parts[1])
		} else {
			s.logRoute("", parts[0])
		}
	}
}

func (s *Server) logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	s.logger.Info().Msgf("[%-19s] %s", displayMethod, path)
}
