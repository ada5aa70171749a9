package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/pdftoolkit/internal/models"
	"github.com/Lllllllleong/pdftoolkit/internal/services"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

var (
	operatorInstance *services.Operator
	once             sync.Once
	initErr          error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleOperation", handleOperation)
	functions.CloudEvent("RunOperation", runOperation)
}

// main is required by the Go Functions Framework.
func main() {}

func initOperator() error {
	once.Do(func() {
		cfg, err := services.LoadOperatorConfig(models.AccessFunction)
		if err != nil {
			initErr = err
			return
		}
		operatorInstance, initErr = services.NewOperator(context.Background(), *cfg, slog.Default())
	})
	return initErr
}

// handleOperation runs one operation request posted as JSON.
func handleOperation(w http.ResponseWriter, r *http.Request) {
	if err := initOperator(); err != nil {
		slog.Error("Critical error during function initialization", "error", err)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var req models.OperationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	// Failures are already logged with request context inside Process.
	res, err := operatorInstance.Process(r.Context(), &req)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(services.StatusCode(err))
	if err := json.NewEncoder(w).Encode(services.NewResponse(res, err)); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

// runOperation runs an operation request carried as CloudEvent data.
// Returning an error marks the invocation as failed.
func runOperation(ctx context.Context, e cloudevents.Event) error {
	if err := initOperator(); err != nil {
		slog.Error("Critical error during function initialization", "error", err)
		return err
	}

	var req models.OperationRequest
	if err := json.Unmarshal(e.Data(), &req); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}
	if req.RequestID == "" {
		req.RequestID = e.ID()
	}

	_, err := operatorInstance.Process(ctx, &req)
	return err
}
