package taskboard

import (
	"log/slog"
)

// Routes of the task board API.
const (
	TasksPath  = "/api/tasks"
	StatusPath = "/api/status"
)

// NewAppRouter wires the task board routes, checked in order:
//
//	GET  /api/tasks   fetch the task file
//	POST /api/tasks   replace the task file
//	*    /api/status  backend status
//	anything else     static file under root
func NewAppRouter(store *TaskStore, root string, logger *slog.Logger) Router {
	tasks := &TaskHandlers{Store: store, Logger: logger}

	r := NewRouter()
	r.Use(RequestLogger(logger), Recovery(logger))

	r.GET(TasksPath, AllowAnyOrigin, tasks.Fetch)
	r.POST(TasksPath, AllowAnyOrigin, tasks.Save)
	r.Any(StatusPath, AllowAnyOrigin, StatusHandler)
	r.Fallback(FileServer(root))

	return r
}

// NewApp builds the task board server described by cfg.
// Nothing is bound until ListenAndServe is called.
func NewApp(cfg Config, logger *slog.Logger) (*HttpServer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	store, err := NewTaskStore(cfg.TaskFilePath())
	if err != nil {
		return nil, err
	}

	return &HttpServer{
		Handler:     NewAppRouter(store, cfg.Root, logger),
		Logger:      logger,
		ReadTimeout: cfg.ReadTimeout,
	}, nil
}
