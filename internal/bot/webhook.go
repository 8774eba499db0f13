package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"tg-broadcast/internal/config"
	"tg-broadcast/internal/logger"
)

// StatusFunc reports extra fields for the health endpoint
type StatusFunc func(ctx context.Context) (map[string]any, error)

// WebhookServer represents a webhook HTTP server
type WebhookServer struct {
	server   *http.Server
	certFile string
	keyFile  string
}

// Start starts the webhook server
func (ws *WebhookServer) Start() error {
	logger.Infof("Starting HTTP server on %s", ws.server.Addr)

	if ws.certFile != "" && ws.keyFile != "" {
		logger.Infof("Using TLS with cert: %s, key: %s", ws.certFile, ws.keyFile)
		return ws.server.ListenAndServeTLS(ws.certFile, ws.keyFile)
	}

	logger.Warningf("Running without TLS. Make sure you have a HTTPS proxy in front of this server")
	return ws.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (ws *WebhookServer) Shutdown(ctx context.Context) error {
	return ws.server.Shutdown(ctx)
}

func secretTokenFor(token string) string {
	suffix := token
	if len(token) > 6 {
		suffix = token[len(token)-6:]
	}
	// the Bot API only accepts A-Z, a-z, 0-9, _ and -
	suffix = strings.Map(func(r rune) rune {
		if r == ':' {
			return '_'
		}
		return r
	}, suffix)
	return "secure_webhook_token_" + suffix
}

// SetupWebhook registers the webhook with Telegram and builds the server
// that receives it
func SetupWebhook(ctx context.Context, bot *telego.Bot, cfg config.WebhookConfig, secretToken string, status StatusFunc) (*th.BotHandler, *WebhookServer, error) {
	if cfg.Endpoint == "" {
		return nil, nil, fmt.Errorf("webhook endpoint is required")
	}

	listenPort := cfg.ListenPort
	if listenPort == "" {
		listenPort = "8443"
		logger.Infof("Using default listen port: %s", listenPort)
	}

	if (cfg.CertFile == "" || cfg.KeyFile == "") && !strings.HasPrefix(cfg.Endpoint, "https://") {
		return nil, nil, fmt.Errorf("HTTPS configuration required: set cert_file and key_file in config or use a HTTPS proxy")
	}

	parsedURL, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid webhook endpoint: %w", err)
	}

	webhookPath := parsedURL.Path
	if webhookPath == "" {
		webhookPath = "/webhook"
		logger.Infof("No path specified in webhook endpoint, using default path: %s", webhookPath)
	}

	logger.Infof("Setting webhook to: %s", cfg.Endpoint)
	err = bot.SetWebhook(ctx, &telego.SetWebhookParams{
		URL:            cfg.Endpoint,
		AllowedUpdates: allowedUpdates,
		SecretToken:    secretToken,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set webhook: %w", err)
	}

	webhookInfo, err := bot.GetWebhookInfo(ctx)
	if err != nil {
		logger.Warningf("Failed to get webhook info: %v", err)
	} else {
		logger.Infof("Webhook info: URL=%s, HasCustomCert=%v, PendingUpdateCount=%d",
			webhookInfo.URL, webhookInfo.HasCustomCertificate, webhookInfo.PendingUpdateCount)
		if webhookInfo.LastErrorDate > 0 {
			logger.Infof("Webhook last error: [%d] %s", webhookInfo.LastErrorDate, webhookInfo.LastErrorMessage)
		}
	}

	// telego registers its receiver on a plain ServeMux, chi routes to it
	mux := http.NewServeMux()
	updates, err := bot.UpdatesViaWebhook(ctx,
		telego.WebhookHTTPServeMux(mux, webhookPath, secretToken),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get updates channel: %w", err)
	}

	var debug http.HandlerFunc
	if cfg.DebugPath != "" {
		debug = debugHandler(bot, cfg.Endpoint)
	}

	bh, err := th.NewBotHandler(bot, updates)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create bot handler: %w", err)
	}

	return bh, &WebhookServer{
		server: &http.Server{
			Addr:              "0.0.0.0:" + listenPort,
			Handler:           NewRouter(mux, webhookPath, cfg.DebugPath, debug, status),
			ReadHeaderTimeout: 10 * time.Second,
		},
		certFile: cfg.CertFile,
		keyFile:  cfg.KeyFile,
	}, nil
}

// NewRouter serves the webhook receiver plus the health and debug endpoints
func NewRouter(webhook http.Handler, webhookPath, debugPath string, debug http.HandlerFunc, status StatusFunc) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", healthHandler(status))

	if debugPath != "" && debug != nil {
		r.Get(debugPath, debug)
	}

	r.Handle(webhookPath, webhook)

	return r
}

func healthHandler(status StatusFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"status": "ok"}
		code := http.StatusOK

		if status != nil {
			extra, err := status(r.Context())
			if err != nil {
				logger.Errorf("Health check failed: %v", err)
				body["status"] = "degraded"
				body["error"] = err.Error()
				code = http.StatusServiceUnavailable
			}
			for k, v := range extra {
				body[k] = v
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func debugHandler(bot *telego.Bot, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger.Infof("Debug endpoint accessed: %s %s", r.Method, r.URL.Path)

		var sb strings.Builder
		sb.WriteString("Bot webhook server is running\n\n")
		if botUser, err := bot.GetMe(r.Context()); err == nil {
			fmt.Fprintf(&sb, "Bot username: %s\n", botUser.Username)
		}
		fmt.Fprintf(&sb, "Webhook path: %s\n", endpoint)

		webhookInfo, err := bot.GetWebhookInfo(r.Context())
		if err == nil {
			sb.WriteString("\nWebhook Info:\n")
			fmt.Fprintf(&sb, "URL: %s\n", webhookInfo.URL)
			fmt.Fprintf(&sb, "Custom Certificate: %v\n", webhookInfo.HasCustomCertificate)
			fmt.Fprintf(&sb, "Pending Updates: %d\n", webhookInfo.PendingUpdateCount)

			if webhookInfo.LastErrorDate > 0 {
				errorTime := time.Unix(int64(webhookInfo.LastErrorDate), 0)
				fmt.Fprintf(&sb, "Last Error: [%s] %s\n",
					errorTime.Format("2006-01-02 15:04:05"),
					webhookInfo.LastErrorMessage)
			}
		} else {
			fmt.Fprintf(&sb, "\nError getting webhook info: %v", err)
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(sb.String()))
	}
}
