package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/orchestrator"
)

// Broker is the slice of the orchestrator the HTTP layer depends on.
type Broker interface {
	CreateJob(ctx context.Context, in orchestrator.CreateJobInput) (string, error)
	HandleCorrectionCallback(ctx context.Context, jobID, imagePayload string) error
}

// App is the handler dependency container.
type App struct {
	Config *infra.Config
	Logger zerolog.Logger
	Jobs   domain.JobRepository
	Broker Broker
}

func NewApp(cfg *infra.Config, logger zerolog.Logger, jobs domain.JobRepository, broker Broker) *App {
	return &App{Config: cfg, Logger: logger, Jobs: jobs, Broker: broker}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, message string) {
	a.json(w, code, map[string]string{"message": message})
}
