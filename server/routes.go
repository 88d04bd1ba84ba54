package server

const (
	RouteHealth       = "/health"
	RoutePlatforms    = "/api/platforms"
	RouteAssignments  = "/api/platforms/{platform}/assignments"
	RouteCourses      = "/api/platforms/{platform}/courses"
	RouteCleverApps   = "/api/clever/apps"
	RouteAnalyze      = "/api/ai/analyze"
	RouteHelpQuestion = "/api/ai/question"
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())

	s.RegisterRouteHandler("GET "+RoutePlatforms, ChainMiddleware(s.PlatformsHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAssignments, ChainMiddleware(s.AssignmentsHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteCourses, ChainMiddleware(s.CoursesHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteCleverApps, ChainMiddleware(s.CleverAppsHandler(), s.APIMiddleware()...))

	s.RegisterRouteHandler("POST "+RouteAnalyze, ChainMiddleware(s.AnalyzeHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteHelpQuestion, ChainMiddleware(s.QuestionHandler(), s.APIMiddleware()...))

	// Preflight requests never reach the method-specific patterns above.
	s.RegisterRouteHandler("OPTIONS /api/", ChainMiddleware(s.PreflightHandler(), s.APIMiddleware()...))
}
