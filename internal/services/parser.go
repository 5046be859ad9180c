package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/resumeflow/internal/checkpoint"
	"github.com/Lllllllleong/resumeflow/internal/config"
	"github.com/Lllllllleong/resumeflow/internal/gcp"
	"github.com/Lllllllleong/resumeflow/internal/llm"
	"github.com/Lllllllleong/resumeflow/internal/loader"
	"github.com/Lllllllleong/resumeflow/internal/models"
	"github.com/Lllllllleong/resumeflow/internal/pipeline"
	"github.com/Lllllllleong/resumeflow/internal/present"
)

var errNoExtraction = errors.New("extractor produced no output")

// ParserConfig holds all configuration for the parser service.
type ParserConfig struct {
	ProjectID         string
	FirestoreDatabase string
	CollectionName    string
	ResultsBucket     string
	MaxFileSize       int64
}

// ParserFunction runs the agent pipeline for a stored resume.
type ParserFunction struct {
	storageClient   *storage.Client
	firestoreClient *firestore.Client
	model           llm.Model
	controller      *pipeline.Controller
	loader          *loader.Loader
	config          ParserConfig
}

// NewParser creates a new ParserFunction instance.
func NewParser(ctx context.Context, cfg config.Config) (*ParserFunction, error) {
	if err := cfg.ValidateCloud(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	pc := ParserConfig{
		ProjectID:         cfg.ProjectID,
		FirestoreDatabase: cfg.FirestoreDatabase,
		CollectionName:    cfg.RunsCollection,
		ResultsBucket:     cfg.ResultsBucket,
		MaxFileSize:       cfg.MaxFileSize,
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, pc.ProjectID, pc.FirestoreDatabase)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	model, err := NewModel(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store := checkpoint.NewFirestoreStore(firestoreClient, pc.CollectionName)
	controller, err := NewController(model, cfg, pipeline.WithCheckpointer(checkpoint.NewRecorder(store)))
	if err != nil {
		return nil, err
	}

	return &ParserFunction{
		storageClient:   storageClient,
		firestoreClient: firestoreClient,
		model:           model,
		controller:      controller,
		loader:          loader.New(),
		config:          pc,
	}, nil
}

// Process loads the resume at req.GCSUri, runs the agents over it and stores
// the final extraction. Every step is also handed to p.
func (f *ParserFunction) Process(ctx context.Context, req *models.ParseRequest, p present.Presenter) (*models.ParseResponse, error) {
	logCtx := slog.With("runId", req.RunID, "executionId", req.ExecutionID)
	logCtx.Info("Starting resume parse.")

	if req.RunID == "" {
		return nil, fmt.Errorf("runId is required")
	}
	docRef := f.firestoreClient.Collection(f.config.CollectionName).Doc(req.RunID)
	if err := updateStatus(ctx, docRef, models.StatusProcessing, ""); err != nil {
		logCtx.Error("Failed to update status to PROCESSING", "error", err)
		return nil, fmt.Errorf("failed to update status to PROCESSING: %w", err)
	}

	text, err := f.loadText(ctx, req.GCSUri)
	if err != nil {
		return nil, markFailed(ctx, logCtx, docRef, "failed to load resume", err)
	}

	collector := &present.Collector{}
	if p == nil {
		p = present.Discard
	}
	outcome, err := RunDocument(ctx, f.controller, req.RunID, text, present.Multi(collector, p))
	if err != nil {
		return nil, markFailed(ctx, logCtx, docRef, "pipeline failed", err)
	}
	if outcome.Extraction == "" {
		return nil, markFailed(ctx, logCtx, docRef, "pipeline failed", errNoExtraction)
	}

	extractionURI, err := f.saveExtraction(ctx, req.RunID, outcome.Extraction)
	if err != nil {
		return nil, markFailed(ctx, logCtx, docRef, "failed to save extraction", err)
	}

	updates := []firestore.Update{
		{Path: "status", Value: models.StatusCompleted},
		{Path: "attempts", Value: outcome.Attempts},
		{Path: "approved", Value: outcome.Approved},
		{Path: "updatedAt", Value: time.Now()},
	}
	if extractionURI != "" {
		updates = append(updates, firestore.Update{Path: "extractionUri", Value: extractionURI})
	}
	if _, err := docRef.Update(ctx, updates); err != nil {
		return nil, markFailed(ctx, logCtx, docRef, "failed to update status to COMPLETED", err)
	}

	logCtx.Info("Resume parse complete.", "approved", outcome.Approved, "attempts", outcome.Attempts, "extractionUri", extractionURI)
	return &models.ParseResponse{
		Status:        "success",
		RunID:         req.RunID,
		Approved:      outcome.Approved,
		Attempts:      outcome.Attempts,
		Extraction:    outcome.Extraction,
		ExtractionURI: extractionURI,
		Steps:         collector.Payloads(),
	}, nil
}

func (f *ParserFunction) loadText(ctx context.Context, gcsURI string) (string, error) {
	bucket, object, err := gcp.ParseGCSUri(gcsURI)
	if err != nil {
		return "", err
	}
	if _, err := loader.Detect(object); err != nil {
		return "", err
	}
	size, err := gcp.ObjectSize(ctx, f.storageClient, bucket, object)
	if err != nil {
		return "", err
	}
	if err := loader.CheckSize(size, f.config.MaxFileSize); err != nil {
		return "", err
	}

	tempDir, err := os.MkdirTemp("", "resume-parser-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	localPath := filepath.Join(tempDir, path.Base(object))
	if err := gcp.DownloadObject(ctx, f.storageClient, bucket, object, localPath); err != nil {
		return "", err
	}
	segments, err := f.loader.Load(ctx, localPath)
	if err != nil {
		return "", err
	}
	return loader.Join(segments), nil
}

// saveExtraction writes {runId}/extraction.json to the results bucket,
// replacing the result of an earlier attempt. It is a no-op when no bucket
// is configured.
func (f *ParserFunction) saveExtraction(ctx context.Context, runID, extraction string) (string, error) {
	if f.config.ResultsBucket == "" {
		return "", nil
	}
	objectName := fmt.Sprintf("%s/extraction.json", runID)
	bucketHandle := f.storageClient.Bucket(f.config.ResultsBucket)
	if err := gcp.SaveToGCS(ctx, bucketHandle, objectName, "application/json", extraction); err != nil {
		return "", err
	}
	return gcsURI(f.config.ResultsBucket, objectName), nil
}

// Close releases the model connection when it holds one.
func (f *ParserFunction) Close() error {
	if c, ok := f.model.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
