package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-supportchat/internal/config"
	"github.com/npezzotti/go-supportchat/internal/database"
	"github.com/npezzotti/go-supportchat/internal/server"
	"github.com/npezzotti/go-supportchat/internal/stats"
	"github.com/teris-io/shortid"
)

const (
	metricLogins         = "Logins"
	metricImagesUploaded = "ImagesUploaded"
)

type SupportChatApp struct {
	log             *log.Logger
	db              database.SupportChatRepository
	mux             *http.Server
	cs              *server.ChatServer
	stats           stats.StatsProvider
	signingKey      []byte
	allowedOrigins  []string
	uploadDir       string
	generateShortId func() (string, error)
}

func NewSupportChatApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, db database.SupportChatRepository, su stats.StatsProvider, cfg *config.Config) *SupportChatApp {
	s := &SupportChatApp{
		log:             logger,
		db:              db,
		cs:              cs,
		stats:           su,
		signingKey:      cfg.SigningKey,
		allowedOrigins:  cfg.AllowedOrigins,
		uploadDir:       cfg.UploadDir,
		generateShortId: shortid.Generate,
	}

	if su != nil {
		su.RegisterMetric(metricLogins)
		su.RegisterMetric(metricImagesUploaded)
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.HandleFunc("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.HandleFunc("GET /api/chat/{customerId}", s.authMiddleware(s.getChat))
	mux.HandleFunc("GET /api/messages", s.authMiddleware(s.getMessages))
	mux.HandleFunc("GET /api/admin/customers", s.authMiddleware(s.adminMiddleware(s.listCustomers)))
	mux.HandleFunc("DELETE /api/admin/customers/{id}", s.authMiddleware(s.adminMiddleware(s.deleteCustomer)))
	mux.HandleFunc("POST /api/admin/customers/{id}/read", s.authMiddleware(s.adminMiddleware(s.markCustomerRead)))
	mux.HandleFunc("POST /api/upload", s.authMiddleware(s.uploadImage))
	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.uploadDir))))
	mux.HandleFunc("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *SupportChatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *SupportChatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

func (s *SupportChatApp) incr(metric string) {
	if s.stats != nil {
		s.stats.Incr(metric)
	}
}
