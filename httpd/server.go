// Package httpd exposes the access ledger over HTTP.
package httpd

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/bibliotecavirtual/biblioteca-sheets/ledger"
	"github.com/bibliotecavirtual/biblioteca-sheets/log"
)

type Ledger interface {
	CheckAccess(ctx context.Context, email string) (ledger.Result, error)
	Issue(ctx context.Context, email string) (ledger.Result, error)
	Validate(ctx context.Context, token string) (ledger.Result, error)
	MarkUsed(ctx context.Context, token string) (ledger.Result, error)
}

type Notifier interface {
	NotifyAdmin(ctx context.Context, email string) error
	NotifyUser(ctx context.Context, email string, accessURL string) error
}

// Options configures the optional behaviour of the request handlers. The requester is only
// sent an access link when NotifyUser is set and AccessURL is not blank.
type Options struct {
	AccessURL   string
	NotifyUser  bool
	CORSOrigins []string
}

type Server struct {
	httpServer *http.Server
}

func New(addr string, ledger Ledger, notifier Notifier, options Options) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(ledger, notifier, options),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

func (s *Server) ListenAndServe() error {
	log.Infof("listening on %v", s.httpServer.Addr)

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// NewRouter wires the ledger routes, the request logger and CORS.
func NewRouter(ledger Ledger, notifier Notifier, options Options) *gin.Engine {
	h := handler{
		ledger:     ledger,
		notifier:   notifier,
		accessURL:  options.AccessURL,
		notifyUser: options.NotifyUser,
	}

	router := gin.New()
	router.Use(gin.LoggerWithWriter(log.Writer()), gin.Recovery())
	router.Use(cors.New(corsConfig(options.CORSOrigins)))

	router.GET("/healthz", health)
	router.POST("/solicitar", h.request)
	router.GET("/autorizar", h.authorise)
	router.GET("/validar", h.validate)
	router.PUT("/marcar", h.markUsed)

	return router
}

func corsConfig(origins []string) cors.Config {
	config := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}

	for _, origin := range origins {
		if origin == "*" {
			config.AllowAllOrigins = true
			return config
		}
	}

	if len(origins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}

	return config
}
