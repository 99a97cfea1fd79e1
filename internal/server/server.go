package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sngm3741/form-intake/api/internal/config"
	"github.com/sngm3741/form-intake/api/internal/infrastructure/kv"
	"github.com/sngm3741/form-intake/api/internal/infrastructure/mailgun"
	"github.com/sngm3741/form-intake/api/internal/infrastructure/turnstile"
	"github.com/sngm3741/form-intake/api/internal/intake/application"
	adminhttp "github.com/sngm3741/form-intake/api/internal/interfaces/http/admin"
	commonhttp "github.com/sngm3741/form-intake/api/internal/interfaces/http/common"
	publichttp "github.com/sngm3741/form-intake/api/internal/interfaces/http/public"
	"github.com/sngm3741/form-intake/api/pkg/logger"
)

// Server は HTTP サーバーのライフサイクルを管理し、Public/Admin の各ハンドラへ依存注入するコンポジションルート。
type Server struct {
	logger      *slog.Logger
	store       kv.Store
	submissions application.SubmissionService
	jwt         config.JWTConfig
	addr        string
	stagingHost string
	tokenField  string
	maxBody     int64
}

type authenticatedUser = commonhttp.AuthenticatedUser

// Dependencies lets callers replace the outbound providers; nil fields are
// built from Config.
type Dependencies struct {
	Verifier application.BotVerifier
	Mailer   application.Mailer
}

// New は Config と KV ストアを受け取り、アプリケーションサービスとハンドラを組み立てた Server を返す。
func New(cfg config.Config, store kv.Store, log *slog.Logger, deps Dependencies) *Server {
	if log == nil {
		log = logger.Discard()
	}
	if deps.Verifier == nil {
		deps.Verifier = turnstile.NewClient(cfg.TurnstileEndpoint, cfg.ProviderTimeout)
	}
	if deps.Mailer == nil {
		deps.Mailer = mailgun.NewClient(cfg.MailgunBaseURL, cfg.ProviderTimeout)
	}

	submissions := application.NewSubmissionService(application.ServiceConfig{
		Logger:          log,
		Configs:         kv.NewConfigRepository(store),
		Submissions:     kv.NewSubmissionRepository(store),
		Verifier:        deps.Verifier,
		Mailer:          deps.Mailer,
		ConfigName:      cfg.EmailConfig,
		ChallengeSecret: cfg.TurnstileSecret,
	})

	return &Server{
		logger:      log,
		store:       store,
		submissions: submissions,
		jwt:         cfg.JWT,
		addr:        cfg.Addr,
		stagingHost: cfg.StagingHost(),
		tokenField:  cfg.TokenField,
		maxBody:     cfg.MaxFormBytes,
	}
}

// Handler はルーティングとミドルウェアを組み立てた http.Handler を返す。
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", s.healthHandler())

	publicHandler := publichttp.NewHandler(publichttp.Config{
		Logger:       s.logger,
		Submissions:  s.submissions,
		StagingHost:  s.stagingHost,
		TokenField:   s.tokenField,
		MaxBodyBytes: s.maxBody,
	})
	router.Route("/api/submit", publicHandler.Register)

	if s.jwt.Enabled() {
		adminHandler := adminhttp.NewHandler(adminhttp.Config{
			Logger:      s.logger,
			Submissions: s.submissions,
		})
		router.With(s.authMiddleware).Route("/admin", adminHandler.Register)
	} else {
		s.logger.Info("AUTH_JWT_SECRET is empty; admin routes are disabled")
	}

	return router
}

// Run はHTTPサーバーを起動し、シグナル受信まで待機する。
func (s *Server) Run() error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP サーバー起動", slog.String("addr", s.addr))
		errChan <- httpServer.ListenAndServe()
	}()

	return waitForShutdown(httpServer, errChan, s)
}

// healthHandler は KV ストアへの疎通確認のみを返す。
func (s *Server) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.store.Ping(ctx); err != nil {
			s.logger.Warn("health check failed", slog.Any("error", err))
			commonhttp.WriteJSON(s.logger, w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"error":  err.Error(),
			})
			return
		}

		commonhttp.WriteJSON(s.logger, w, http.StatusOK, map[string]string{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// authMiddleware は Authorization ヘッダーから JWT を検証し、認証済みユーザーをコンテキストへ詰める。
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
		if authHeader == "" {
			commonhttp.WriteJSON(s.logger, w, http.StatusUnauthorized, map[string]string{"error": "missing Authorization header"})
			return
		}

		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			commonhttp.WriteJSON(s.logger, w, http.StatusUnauthorized, map[string]string{"error": "bearer token required"})
			return
		}

		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix))
		if tokenString == "" {
			commonhttp.WriteJSON(s.logger, w, http.StatusUnauthorized, map[string]string{"error": "empty access token"})
			return
		}

		claims, err := s.parseAuthToken(tokenString)
		if err != nil {
			commonhttp.WriteJSON(s.logger, w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
			return
		}

		user := authenticatedUser{
			ID:       claims.Subject,
			Name:     claims.Name,
			Username: claims.PreferredUsername,
		}
		ctx := commonhttp.ContextWithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// parseAuthToken は HS256 署名と Issuer/Audience/Subject を検証する。
func (s *Server) parseAuthToken(tokenString string) (*authClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithLeeway(30 * time.Second),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if s.jwt.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.jwt.Issuer))
	}
	if s.jwt.Audience != "" {
		opts = append(opts, jwt.WithAudience(s.jwt.Audience))
	}

	claims := &authClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return []byte(s.jwt.Secret), nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, errors.New("invalid access token")
	}
	if claims.Subject == "" {
		return nil, errors.New("access token has no subject")
	}
	return claims, nil
}

type authClaims struct {
	jwt.RegisteredClaims
	Name              string `json:"name,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
}

// shutdown は KV ストアをタイムアウト付きで閉じる。
func (s *Server) shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.store.Close(shutdownCtx); err != nil {
		s.logger.Error("KV ストア切断時にエラー", slog.Any("error", err))
	}
}

// waitForShutdown は ListenAndServe の終了と OS シグナルを監視し、graceful shutdown を実現する。
func waitForShutdown(httpServer *http.Server, errChan <-chan error, srv *Server) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("サーバーが異常終了: %w", err)
		}
	case sig := <-sigChan:
		srv.logger.Info("シグナルを受信。サーバー停止処理を開始します。", slog.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			srv.logger.Error("サーバー停止時にエラー", slog.Any("error", err))
		}
	}

	srv.shutdown(context.Background())
	return runErr
}
