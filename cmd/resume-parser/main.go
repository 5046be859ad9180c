package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/Lllllllleong/resumeflow/internal/config"
	"github.com/Lllllllleong/resumeflow/internal/models"
	"github.com/Lllllllleong/resumeflow/internal/present"
	"github.com/Lllllllleong/resumeflow/internal/services"
)

// resumeParser is the part of services.ParserFunction the handler needs.
type resumeParser interface {
	Process(ctx context.Context, req *models.ParseRequest, p present.Presenter) (*models.ParseResponse, error)
}

var (
	parserInstance resumeParser
	once           sync.Once
	initErr        error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// "HandleParseResume" is the entry point name we'll see in GCP.
	functions.HTTP("HandleParseResume", handleParseResume)
}

// main is required by the Go Functions Framework.
func main() {}

func initParser() {
	cfg, err := config.Load(config.GetEnv("RESUMEFLOW_CONFIG", ""))
	if err != nil {
		initErr = err
		return
	}
	parserInstance, initErr = services.NewParser(context.Background(), cfg)
}

// handleParseResume is the HTTP handler. With ?stream=true each agent
// output is written as an NDJSON line before the final response line.
func handleParseResume(w http.ResponseWriter, r *http.Request) {
	once.Do(initParser)
	if initErr != nil {
		slog.Error("CRITICAL: Parser initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	serveParse(w, r, parserInstance)
}

func serveParse(w http.ResponseWriter, r *http.Request, parser resumeParser) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.ParseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}
	if req.RunID == "" || req.GCSUri == "" {
		http.Error(w, "Bad Request: runId and gcsUri are required", http.StatusBadRequest)
		return
	}

	if r.URL.Query().Get("stream") == "true" {
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(http.StatusOK)
		stream := present.NewNDJSON(w)
		res, err := parser.Process(r.Context(), &req, stream)
		if err != nil {
			// Headers are already sent; the error travels as the last line.
			_ = stream.WriteLine(map[string]string{"status": "error", "runId": req.RunID, "error": err.Error()})
			return
		}
		res.Steps = nil
		if err := stream.WriteLine(res); err != nil {
			slog.Error("Failed to write response", "error", err)
		}
		return
	}

	res, err := parser.Process(r.Context(), &req, nil)
	if err != nil {
		// The specific error is already logged inside the Process method.
		http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
