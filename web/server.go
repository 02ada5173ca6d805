package web

import (
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mogaika/xsg_export/config"
	"github.com/mogaika/xsg_export/logger"
)

// Uploads above this size are rejected.
const maxUploadSize = 256 << 20

type Server struct {
	cfg     *config.Config
	workDir string

	// conversions run one at a time, output encoding is process wide
	convertLock sync.Mutex

	jobsLock sync.RWMutex
	jobs     map[string]*Job
	order    []string

	upgrader websocket.Upgrader
}

func NewServer(cfg *config.Config) (*Server, error) {
	workDir := cfg.Server.WorkDir
	if workDir == "" {
		workDir = filepath.Join(os.TempDir(), "xsg_export_jobs")
	}
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, errors.Wrapf(err, "Failed to create work dir %q", workDir)
	}
	return &Server{
		cfg:     cfg,
		workDir: workDir,
		jobs:    make(map[string]*Job),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}, nil
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/convert", s.HandlerConvert).Methods("POST")
	r.HandleFunc("/json/jobs/{id}", s.HandlerAjaxJob).Methods("GET")
	r.HandleFunc("/json/jobs", s.HandlerAjaxJobs).Methods("GET")
	r.HandleFunc("/download/{id}", s.HandlerDownload).Methods("GET")
	r.HandleFunc("/ws/status", s.HandlerStatus)
	return r
}

func (s *Server) Handler() http.Handler {
	h := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(s.Router())
	return handlers.LoggingHandler(&logger.LineWriter{Prefix: "[web] "}, h)
}

func StartServer(cfg *config.Config) error {
	s, err := NewServer(cfg)
	if err != nil {
		return err
	}
	logger.Info("[web] Starting server", zap.String("addr", cfg.Server.Address), zap.String("workdir", s.workDir))
	return http.ListenAndServe(cfg.Server.Address, s.Handler())
}
