package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/eduassist/portalsync/aggregator"
	"github.com/eduassist/portalsync/ai"
	"github.com/eduassist/portalsync/browser"
	"github.com/eduassist/portalsync/credentials"
	"github.com/eduassist/portalsync/drivers"
	"github.com/eduassist/portalsync/internal/config"
	"github.com/eduassist/portalsync/platform"
	"github.com/eduassist/portalsync/scrape"
	"github.com/eduassist/portalsync/server"
	"github.com/eduassist/portalsync/sessions"
	"github.com/joho/godotenv"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	for {
		if err := run(logger); err != nil {
			logger.Fatal().Err(err).Msg("error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	logger.Info().Msg("server stopped")
}

func run(logger zerolog.Logger) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = pkgerrors.New("panic recovered")
		}
	}()

	// Missing .env just means credentials come from the real environment.
	_ = godotenv.Load()

	c := config.New()
	logger = newLogger(c)
	displayAppname(c.GetAppName())

	ctx := context.Background()

	launcher := browser.NewChrome(ctx, browser.WithHeadless(c.GetHeadless()))
	defer launcher.Close()

	cleverDriver := drivers.NewCleverDriver(launcher, drivers.CleverConfig{
		LoginURL: c.GetCleverLoginURL(),
		AppsURL:  c.GetCleverAppsURL(),
	}, logger)

	store, err := sessions.NewStore(credentials.EnvResolver{}, []sessions.Driver{
		cleverDriver,
		drivers.NewGoogleDriver(googleOAuthConfig(c), googleVerifier(ctx, c, logger), logger),
		drivers.NewMcGrawHillDriver(),
		drivers.NewEdpuzzleDriver(),
	}, logger,
		sessions.WithTTL(c.GetSessionTTL()),
		sessions.WithLoginTimeout(c.GetLoginTimeout()),
		sessions.WithLoginRate(c.GetLoginInterval(), 3),
	)
	if err != nil {
		return pkgerrors.Wrap(err, "main.run session store")
	}

	coursework, err := aggregator.NewService(store, scrape.New(logger), cleverDriver, logger, serviceOptions(c)...)
	if err != nil {
		return pkgerrors.Wrap(err, "main.run aggregator")
	}

	srv, err := server.New(c, coursework, studyAssistant(c, logger), logger)
	if err != nil {
		return pkgerrors.Wrap(err, "main.run server")
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: srv}
	go listenAndServe(httpServer, logger)
	waitForStopSignal()
	return shutdown(httpServer)
}

func newLogger(c config.Config) zerolog.Logger {
	if c.GetEnv() == "DEV" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func googleOAuthConfig(c config.Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.GetGoogleClientID(),
		ClientSecret: c.GetGoogleClientSecret(),
		RedirectURL:  c.GetGoogleRedirectURL(),
		Endpoint:     google.Endpoint,
		Scopes:       drivers.GoogleScopes,
	}
}

// googleVerifier is best effort: without it tokens are still accepted,
// just not OIDC-verified.
func googleVerifier(ctx context.Context, c config.Config, logger zerolog.Logger) drivers.IDTokenVerifier {
	if c.GetGoogleClientID() == "" {
		return nil
	}
	verifier, err := drivers.NewGoogleVerifier(ctx, c.GetGoogleClientID())
	if err != nil {
		logger.Warn().Err(err).Msg("google oidc verifier unavailable, skipping id token verification")
		return nil
	}
	return verifier
}

func serviceOptions(c config.Config) []aggregator.ServiceOption {
	opts := []aggregator.ServiceOption{aggregator.WithOperationTimeout(c.GetOperationTimeout())}
	if u := c.GetMcGrawHillAssignmentsURL(); u != "" {
		opts = append(opts, aggregator.WithAssignmentPage(platform.McGrawHill, u))
	}
	if u := c.GetEdpuzzleAssignmentsURL(); u != "" {
		opts = append(opts, aggregator.WithAssignmentPage(platform.Edpuzzle, u))
	}
	return opts
}

func studyAssistant(c config.Config, logger zerolog.Logger) server.StudyAssistant {
	key := c.GetOpenAIKey()
	if key == "" {
		logger.Info().Msg("no openai key configured, study assistant disabled")
		return nil
	}

	var opts []ai.Option
	if model := c.GetOpenAIModel(); model != "" {
		opts = append(opts, ai.WithModel(model))
	}
	assistant, err := ai.NewAssistant(openai.NewClient(key), logger, opts...)
	if err != nil {
		logger.Warn().Err(err).Msg("study assistant unavailable")
		return nil
	}
	return assistant
}

func listenAndServe(server *http.Server, logger zerolog.Logger) {
	logger.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
