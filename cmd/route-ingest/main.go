package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Lllllllleong/routeingest/internal/app"
	"github.com/Lllllllleong/routeingest/internal/config"
	"github.com/Lllllllleong/routeingest/internal/models"
)

var (
	pipeline *app.App
	once     sync.Once
	initErr  error
)

func init() {
	// Continuations and operators call the HTTP entry point; Cloud Scheduler
	// publishes to the topic behind the CloudEvent one.
	functions.HTTP("RunRouteIngest", runRouteIngest)
	functions.CloudEvent("ScheduledRouteIngest", scheduledRouteIngest)
}

// main is required by the Go Functions Framework.
func main() {}

func setup() (*app.App, error) {
	once.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			initErr = err
			return
		}
		if err := config.InitLogger(cfg.Log); err != nil {
			initErr = err
			return
		}
		if err := cfg.Validate(true); err != nil {
			initErr = err
			return
		}
		pipeline, initErr = app.New(context.Background(), cfg, app.ModeCloud)
	})
	return pipeline, initErr
}

func runRouteIngest(w http.ResponseWriter, r *http.Request) {
	a, err := setup()
	if err != nil {
		zap.L().Error("pipeline initialization failed", zap.Error(err))
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	req, err := decodeRunRequest(r.Body)
	if err != nil {
		zap.L().Warn("could not decode run request", zap.Error(err))
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	report, runErr := a.Coordinator.Run(r.Context(), req)
	resp := runResponse(report, runErr)

	w.Header().Set("Content-Type", "application/json")
	if runErr != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		zap.L().Error("failed to write response", zap.Error(err))
	}
}

// schedulerMessage is the Pub/Sub push envelope Cloud Scheduler produces.
type schedulerMessage struct {
	Message struct {
		Data []byte `json:"data"`
	} `json:"message"`
}

func scheduledRouteIngest(ctx context.Context, e cloudevents.Event) error {
	a, err := setup()
	if err != nil {
		zap.L().Error("pipeline initialization failed", zap.Error(err))
		return err
	}

	req := models.RunRequest{Source: models.TriggerScheduler}
	var msg schedulerMessage
	if err := json.Unmarshal(e.Data(), &msg); err != nil {
		zap.L().Warn("ignoring undecodable scheduler event", zap.String("eventId", e.ID()), zap.Error(err))
	} else if len(msg.Message.Data) > 0 {
		if err := json.Unmarshal(msg.Message.Data, &req); err != nil {
			zap.L().Warn("ignoring undecodable scheduler payload", zap.String("eventId", e.ID()), zap.Error(err))
		}
		req.Source = models.TriggerScheduler
	}

	_, err = a.Coordinator.Run(ctx, req)
	return err
}

// decodeRunRequest reads a RunRequest. An empty body is an operator run.
func decodeRunRequest(body io.Reader) (models.RunRequest, error) {
	req := models.RunRequest{}
	if body != nil {
		if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return req, eris.Wrap(err, "decode run request")
		}
	}
	if req.Source == "" {
		req.Source = models.TriggerOperator
	}
	return req, nil
}

// runResponse summarises a run for the caller.
func runResponse(report *models.RunReport, err error) models.RunResponse {
	switch {
	case err != nil:
		return models.RunResponse{Status: "failed", Report: report}
	case report == nil:
		return models.RunResponse{Status: "failed"}
	case !report.Acquired:
		return models.RunResponse{Status: "contended", Report: report}
	case report.Continued:
		return models.RunResponse{Status: "continued", Report: report}
	default:
		return models.RunResponse{Status: "completed", Report: report}
	}
}
