// Email writer serves AI-generated email replies over HTTP and MCP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"

	"github.com/hal9000y/email-writer/internal/api"
	"github.com/hal9000y/email-writer/internal/auth"
	"github.com/hal9000y/email-writer/internal/config"
	"github.com/hal9000y/email-writer/internal/gemini"
	"github.com/hal9000y/email-writer/internal/mailbox"
	"github.com/hal9000y/email-writer/internal/reply"
	"github.com/hal9000y/email-writer/internal/tool"
)

func main() {
	httpAddr := flag.String("http-addr", "localhost:8080", "HTTP server listen addr")
	envFile := flag.String("env-file", "", "Path to env file")
	enableStdio := flag.Bool("stdio", false, "Enable stdio transport for MCP (disables console logging)")
	logFile := flag.String("log-file", "", "Path to log file, overrides console logging")
	oauthTokenFile := flag.String("oauth-token-file", "./data/email-writer-token.json", "Path to cache google oauth token, empty to avoid storing")
	oauthURL := flag.String("oauth-url", "", "OAuth redirect URL, defaults to http://<http-addr>/oauth")
	openConsent := flag.Bool("open-browser", false, "Open the Google consent page when no token is stored")

	flag.Parse()

	closeLogs := setupLogger(*enableStdio, *logFile)
	defer closeLogs()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatal().Err(err).Msg("config.Load failed")
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)

	if cfg.Gemini.InsecureSkipVerify {
		log.Warn().Str("app_env", cfg.AppEnv).Msg("TLS verification of the Gemini endpoint is disabled")
	}

	client, err := gemini.New(cfg.Gemini)
	if err != nil {
		log.Fatal().Err(err).Msg("gemini.New failed")
	}
	gen := reply.NewGenerator(client,
		reply.WithWorkers(cfg.Workers),
		reply.WithTimeout(cfg.Gemini.Timeout),
	)

	ln := mustListen(*httpAddr)

	mux := http.NewServeMux()
	mux.Handle("/api/email/", api.NewHandler(gen, cfg.ErrorMode))

	var mcpServer *mcp.Server
	if cfg.GmailEnabled() {
		oauthCfg := newOAuthConfig(cfg, ln.Addr().String(), *oauthURL)

		tok, err := auth.NewToken(oauthCfg, *oauthTokenFile)
		if err != nil {
			log.Fatal().Err(err).Msg("auth.NewToken failed")
		}
		defer func() {
			log.Info().Msg("Persisting token if exists")
			if err := tok.Persist(); err != nil {
				log.Error().Err(err).Msg("tok.Persist failed")
			}
		}()

		mux.Handle("/oauth", auth.NewHTTPHandler(tok))
		mcpServer = tool.NewServer(gen, mailbox.NewGmail(tok))

		if _, err := tok.OAuthToken(); errors.Is(err, auth.ErrTokenNotSet) {
			consentURL := oauthCfg.RedirectURL + "?redirect=1"
			log.Info().Str("url", consentURL).Msg("Gmail is not authorized yet")
			if *openConsent {
				openBrowser(consentURL)
			}
		}
	} else {
		mcpServer = tool.NewServer(gen, nil)
	}

	mcpHTTP := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server { return mcpServer }, nil)
	mux.Handle("/mcp", mcpHTTP)

	srv := &http.Server{
		Handler:           api.WithRequestLogging(log.Logger, api.WithCORS(cfg.AllowedOrigin, mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGTERM, syscall.SIGINT)

	log.Info().
		Str("endpoint", client.Endpoint()).
		Str("error_mode", string(cfg.ErrorMode)).
		Int("workers", cfg.Workers).
		Bool("gmail", cfg.GmailEnabled()).
		Msg("email writer configured")

	stopHTTP, errHTTPCh := serveHTTP(srv, ln)
	defer stopHTTP()

	var errStdioCh <-chan error
	if *enableStdio {
		var stopStdio func()
		stopStdio, errStdioCh = serveStdio(mcpServer)
		defer stopStdio()
	}

	select {
	case err := <-errHTTPCh:
		log.Error().Err(err).Msg("Error http server")
	case err := <-errStdioCh:
		log.Error().Err(err).Msg("Error stdio")
	case <-shutdown:
		log.Info().Msg("Shutdown signal received")
	}
}

func serveStdio(srv *mcp.Server) (func(), <-chan error) {
	errStdioCh := make(chan error, 1)
	ctx, cancel := context.WithCancel(log.Logger.WithContext(context.Background()))
	go func() {
		defer close(errStdioCh)
		log.Info().Msg("Starting stdio transport")

		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil {
			errStdioCh <- fmt.Errorf("srv.Run failed: %w", err)
		}
	}()

	return func() {
		cancel()

		<-errStdioCh
		log.Info().Msg("Stdio transport stopped")
	}, errStdioCh
}

func serveHTTP(srv *http.Server, ln net.Listener) (func(), <-chan error) {
	errHTTPCh := make(chan error, 1)
	go func() {
		defer close(errHTTPCh)

		log.Info().Str("addr", ln.Addr().String()).Msg("Starting http server")

		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errHTTPCh <- fmt.Errorf("srv.Serve failed: %w", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("srv.Shutdown failed")
		}

		<-errHTTPCh
		log.Info().Msg("HTTP server stopped")
	}, errHTTPCh
}

func mustListen(httpAddr string) net.Listener {
	ln, err := net.Listen("tcp", httpAddr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", httpAddr).Msg("net.Listen failed")
	}

	return ln
}

func newOAuthConfig(cfg config.Config, lnAddr, redirectURL string) *oauth2.Config {
	if redirectURL == "" {
		redirectURL = fmt.Sprintf("http://%s/oauth", lnAddr)
	}

	return &oauth2.Config{
		ClientID:     cfg.OAuthClientID,
		ClientSecret: cfg.OAuthClientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{gmail.GmailReadonlyScope},
		Endpoint:     google.Endpoint,
	}
}

// setupLogger points the global logger at logFile, or at the console unless
// stdout is owned by the stdio transport.
func setupLogger(enableStdio bool, logFile string) func() {
	zerolog.DefaultContextLogger = &log.Logger

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			panic(fmt.Errorf("failed to open log file: %w", err))
		}
		log.Logger = zerolog.New(f).With().Timestamp().Logger()

		return func() {
			if err := f.Close(); err != nil {
				fmt.Fprintln(os.Stderr, fmt.Errorf("f.Close failed: %w", err))
			}
		}
	}

	if enableStdio {
		log.Logger = zerolog.New(io.Discard)
	} else {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	}

	return func() {}
}

func openBrowser(url string) {
	var err error
	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", url).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		err = exec.Command("open", url).Start()
	default:
		err = fmt.Errorf("unsupported platform")
	}

	if err != nil {
		log.Warn().Err(err).Str("url", url).Msg("Could not open browser automatically, please open the link manually")
	}
}
