package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"

	"library-catalog/internal/auth"
	"library-catalog/internal/config"
	"library-catalog/internal/domain"
	"library-catalog/internal/handler"
	"library-catalog/internal/notification"
	"library-catalog/internal/repository"
	"library-catalog/internal/repository/memory"
	"library-catalog/internal/service"
)

// Server represents the HTTP server and the background workers behind it.
type Server struct {
	handler http.Handler
	server  *http.Server
	db      *sql.DB
	store   domain.UnitOfWork
	queue   notification.Queue
	worker  *notification.Worker
	scanner *service.OverdueScanner
	logger  *slog.Logger
	port    string

	users       *service.UserService
	circulation *service.CirculationService

	scanEnabled  bool
	stopScanner  context.CancelFunc
	stopWorker   context.CancelFunc
	scannerDone  chan struct{}
	workerDone   chan struct{}
	startWorkers sync.Once
}

// OpenDatabase opens and verifies the Postgres connection pool.
func OpenDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.GetDBConnectionString())
	if err != nil {
		return nil, err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Successfully connected to database")
	return db, nil
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	ctx := context.Background()

	penaltyPerDay, err := decimal.NewFromString(cfg.PenaltyPerDay)
	if err != nil {
		return nil, fmt.Errorf("invalid penalty per day %q: %w", cfg.PenaltyPerDay, err)
	}

	s := &Server{
		logger:      logger,
		scanEnabled: cfg.OverdueScanEnabled,
	}

	// Initialize store (Unit of Work)
	switch cfg.StorageDriver {
	case config.StorageMemory:
		s.store = memory.NewStore(logger)
		logger.Warn("Using in-memory storage, data is lost on exit")
	default:
		db, err := OpenDatabase(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		if err := repository.Migrate(ctx, db, logger); err != nil {
			db.Close()
			return nil, err
		}
		s.db = db
		s.store = repository.NewStore(db, logger, repository.WithMaxAttempts(cfg.TxMaxAttempts))
	}

	if cfg.RabbitURL != "" {
		queue, err := notification.NewAMQPQueue(cfg.RabbitURL, cfg.NotificationQueue, logger)
		if err != nil {
			s.closeDB()
			return nil, err
		}
		s.queue = queue
	} else {
		s.queue = notification.NewMemoryQueue(cfg.NotificationBuffer)
	}

	dispatcher := notification.NewDispatcher(s.queue, logger)
	s.worker = notification.NewWorker(s.queue, notification.LogSender{Logger: logger}, logger,
		notification.WithMaxAttempts(cfg.NotificationMaxAttempts),
		notification.WithBackoff(cfg.NotificationRetryBackoff),
	)

	// Initialize services
	ledger := service.NewLedger(logger)
	s.users = service.NewUserService(s.store, auth.NewIssuer(cfg.TokenSecret, cfg.TokenTTL), logger)
	s.circulation = service.NewCirculationService(s.store, ledger, dispatcher, logger,
		service.WithLoanPeriod(cfg.LoanPeriod),
		service.WithPenaltyPerDay(penaltyPerDay),
	)
	bookService := service.NewBookService(s.store, ledger, dispatcher, logger)
	s.scanner = service.NewOverdueScanner(s.circulation, cfg.OverdueScanInterval, logger)

	// Initialize handlers
	authenticator := handler.NewAuthenticator(s.users, cfg.UserCacheTTL, logger)
	userHandler := handler.NewUserHandler(s.users, s.circulation)
	bookHandler := handler.NewBookHandler(bookService, s.circulation)
	transactionHandler := handler.NewTransactionHandler(s.circulation)

	// Setup router
	router := mux.NewRouter()

	// Add middleware for logging
	router.Use(loggingMiddleware(logger))

	router.HandleFunc("/health", s.health).Methods("GET")
	router.HandleFunc("/users", userHandler.Register).Methods("POST")
	router.HandleFunc("/users/login", userHandler.Login).Methods("POST")

	api := router.PathPrefix("/").Subrouter()
	api.Use(authenticator.Middleware)

	// User routes
	api.HandleFunc("/users/me", userHandler.Me).Methods("GET")
	api.HandleFunc("/users/me/transactions", userHandler.MyTransactions).Methods("GET")
	api.HandleFunc("/users/me/notifications", userHandler.MyNotifications).Methods("GET")
	api.HandleFunc("/notifications/{notification_id}/read", userHandler.MarkNotificationRead).Methods("POST")

	// Book routes
	api.HandleFunc("/books", bookHandler.CreateBook).Methods("POST")
	api.HandleFunc("/books", bookHandler.ListBooks).Methods("GET")
	api.HandleFunc("/books/{book_id}", bookHandler.GetBook).Methods("GET")
	api.HandleFunc("/books/{book_id}/copies", bookHandler.AddCopies).Methods("POST")
	api.HandleFunc("/books/{book_id}/checkout", bookHandler.Checkout).Methods("POST")
	api.HandleFunc("/books/{book_id}/watch", bookHandler.Watch).Methods("POST")

	// Transaction routes
	api.HandleFunc("/transactions/overdue", transactionHandler.ListOverdue).Methods("GET")
	api.HandleFunc("/transactions/{transaction_id}", transactionHandler.GetTransaction).Methods("GET")
	api.HandleFunc("/transactions/{transaction_id}/return", transactionHandler.ReturnBook).Methods("POST")
	api.HandleFunc("/overdue/scan", transactionHandler.ScanOverdue).Methods("POST")
	api.HandleFunc("/overdues/{overdue_id}/pay", transactionHandler.PayPenalty).Methods("POST")

	s.handler = cors.New(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}).Handler(router)

	return s, nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	// Check storage connectivity in health check
	if err := s.store.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "error": "database unavailable"})
		return
	}

	json.NewEncoder(w).Encode(map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// loggingMiddleware adds request logging
func loggingMiddleware(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Create response wrapper to capture status code
			ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.statusCode,
				"duration", time.Since(start),
				"user_agent", r.UserAgent(),
			)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// StartWorkers launches the notification worker and, when enabled, the
// overdue scanner. Calling it more than once has no effect.
func (s *Server) StartWorkers() {
	s.startWorkers.Do(func() {
		workerCtx, stopWorker := context.WithCancel(context.Background())
		s.stopWorker = stopWorker
		s.workerDone = make(chan struct{})
		go func() {
			defer close(s.workerDone)
			if err := s.worker.Run(workerCtx); err != nil {
				s.logger.Error("Notification worker failed", "error", err)
			}
		}()

		if s.scanEnabled {
			scanCtx, stopScanner := context.WithCancel(context.Background())
			s.stopScanner = stopScanner
			s.scannerDone = make(chan struct{})
			go func() {
				defer close(s.scannerDone)
				s.scanner.Run(scanCtx)
			}()
		}
	})
}

// Start starts the HTTP server on the specified port
func (s *Server) Start(port string) (string, error) {
	// Create listener first to get actual port
	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return "", err
	}

	// Get the actual port being used
	addr := listener.Addr().(*net.TCPAddr)
	s.port = strconv.Itoa(addr.Port)

	// Create HTTP server
	s.server = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.StartWorkers()

	s.logger.Info("Starting server", "port", s.port)

	// Start server in background
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Server failed to start", "error", err)
		}
	}()

	return s.port, nil
}

// Stop gracefully shuts down the server. Queued notifications are delivered
// until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	var shutdownErr error
	if s.server != nil {
		shutdownErr = s.server.Shutdown(ctx)
	}

	if s.stopScanner != nil {
		s.stopScanner()
		<-s.scannerDone
	}

	if err := s.queue.Close(); err != nil {
		s.logger.Warn("Failed to close notification queue", "error", err)
	}
	if s.workerDone != nil {
		select {
		case <-s.workerDone:
		case <-ctx.Done():
			s.logger.Warn("Notification queue not drained before shutdown deadline")
		}
		s.stopWorker()
	}

	s.closeDB()
	return shutdownErr
}

func (s *Server) closeDB() {
	// Close database connection
	if s.db != nil {
		s.db.Close()
	}
}

// ScanOverdue runs one overdue sweep outside the schedule.
func (s *Server) ScanOverdue(ctx context.Context) (*service.ScanResult, error) {
	return s.circulation.ScanOverdue(ctx)
}

// Users exposes account management to the command line.
func (s *Server) Users() *service.UserService {
	return s.users
}

// GetPort returns the port the server is listening on
func (s *Server) GetPort() string {
	return s.port
}

// GetBaseURL returns the base URL for the server
func (s *Server) GetBaseURL() string {
	return "http://localhost:" + s.port
}

// Handler returns the HTTP handler for testing purposes
func (s *Server) Handler() http.Handler {
	return s.handler
}

// StartServer starts the server with the given configuration
func StartServer(cfg *config.Config) (*Server, string, error) {
	// Initialize logger - use io.Discard for tests to avoid panic
	var logger *slog.Logger
	if cfg.ServerPort == "0" {
		// Test environment - use discard logger
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	} else {
		// Production environment - use stdout
		logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}

	server, err := NewServer(cfg, logger)
	if err != nil {
		return nil, "", err
	}

	// Start the server and get the actual port
	port, err := server.Start(cfg.ServerPort)
	if err != nil {
		return nil, "", err
	}

	return server, port, nil
}
