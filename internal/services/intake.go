package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"

	"github.com/Lllllllleong/resumeflow/internal/config"
	"github.com/Lllllllleong/resumeflow/internal/gcp"
	"github.com/Lllllllleong/resumeflow/internal/loader"
	"github.com/Lllllllleong/resumeflow/internal/models"
)

type IntakeConfig struct {
	ProjectID         string
	FirestoreDatabase string
	CollectionName    string
	WorkflowID        string
	WorkflowLocation  string
	MaxFileSize       int64
}

// IntakeFunction registers uploaded resumes and hands them to the parse workflow.
type IntakeFunction struct {
	storageClient    *storage.Client
	firestoreClient  *firestore.Client
	executionsClient *executions.Client
	loader           *loader.Loader
	config           IntakeConfig
}

type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

func NewIntake(ctx context.Context, cfg config.Config) (*IntakeFunction, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	if cfg.WorkflowID == "" {
		return nil, fmt.Errorf("WORKFLOW_ID environment variable must be set")
	}

	ic := IntakeConfig{
		ProjectID:         cfg.ProjectID,
		FirestoreDatabase: cfg.FirestoreDatabase,
		CollectionName:    cfg.RunsCollection,
		WorkflowID:        cfg.WorkflowID,
		WorkflowLocation:  cfg.WorkflowLocation,
		MaxFileSize:       cfg.MaxFileSize,
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, ic.ProjectID, ic.FirestoreDatabase)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	executionsClient, err := executions.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
	}

	f := &IntakeFunction{
		firestoreClient:  firestoreClient,
		storageClient:    storageClient,
		executionsClient: executionsClient,
		loader:           loader.New(),
		config:           ic,
	}
	slog.Info("Resume intake logic initialized.", "workflowId", ic.WorkflowID)
	return f, nil
}

func (f *IntakeFunction) Process(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	logCtx.Info("Processing new GCS object.")

	format, err := loader.Detect(e.Name)
	if err != nil {
		// Other objects in the bucket are not ours to process.
		logCtx.Warn("Ignoring object with unsupported file type.", "error", err)
		return nil
	}

	size, err := gcp.ObjectSize(ctx, f.storageClient, e.Bucket, e.Name)
	if err != nil {
		logCtx.Error("Failed to read object attributes", "error", err)
		return err
	}
	if err := loader.CheckSize(size, f.config.MaxFileSize); err != nil {
		docRef, createErr := f.createRun(ctx, "", e)
		if createErr != nil {
			logCtx.Error("Failed to create run record", "error", createErr)
			return createErr
		}
		// The upload is rejected; returning nil stops event redelivery.
		_ = f.handleError(ctx, logCtx.With("runId", docRef.ID), docRef, "resume rejected", err)
		return nil
	}

	tempDir, err := os.MkdirTemp("", "resume-intake-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	sourcePath := filepath.Join(tempDir, "source"+path.Ext(e.Name))
	if err := gcp.DownloadObject(ctx, f.storageClient, e.Bucket, e.Name, sourcePath); err != nil {
		logCtx.Error("Failed to download resume", "error", err)
		return err
	}

	fileHash, err := calculateFileHash(sourcePath)
	if err != nil {
		logCtx.Error("Failed to calculate file hash", "error", err)
		return fmt.Errorf("failed to calculate file hash: %w", err)
	}
	logCtx = logCtx.With("fileHash", fileHash)

	isDuplicate, runID, err := f.isDuplicate(ctx, fileHash)
	if err != nil {
		logCtx.Error("Failed to check for duplicate", "error", err)
		return err
	}
	if isDuplicate {
		logCtx.Info("Duplicate resume detected. Skipping.", "existingRunId", runID)
		return nil // Clean exit for a duplicate
	}

	docRef, err := f.createRun(ctx, fileHash, e)
	if err != nil {
		logCtx.Error("Failed to create run record", "error", err)
		return err
	}
	logCtx = logCtx.With("runId", docRef.ID)
	logCtx.Info("Created run record in Firestore.")

	if err := f.validate(ctx, logCtx, docRef, format, sourcePath); err != nil {
		// Error is already logged and handled in validate
		return err
	}

	if err := f.triggerWorkflow(ctx, logCtx, docRef, gcsURI(e.Bucket, e.Name)); err != nil {
		// Error is already logged and handled in triggerWorkflow
		return err
	}

	logCtx.Info("Hand-off to workflow complete.")
	return nil
}

// isDuplicate reports an earlier run of the same file that has not failed.
func (f *IntakeFunction) isDuplicate(ctx context.Context, fileHash string) (bool, string, error) {
	docs, err := f.firestoreClient.Collection(f.config.CollectionName).Where("fileHash", "==", fileHash).Documents(ctx).GetAll()
	if err != nil {
		return false, "", fmt.Errorf("failed to query for duplicates: %w", err)
	}
	for _, doc := range docs {
		status, _ := doc.DataAt("status")
		if s, _ := status.(string); blocksResubmission(s) {
			return true, doc.Ref.ID, nil
		}
	}
	return false, "", nil
}

// blocksResubmission is false for failed runs so the same file can be uploaded again.
func blocksResubmission(status string) bool {
	return status != models.StatusFailed
}

func (f *IntakeFunction) createRun(ctx context.Context, fileHash string, e GCSEvent) (*firestore.DocumentRef, error) {
	now := time.Now()
	run := models.Run{
		FileHash:         fileHash,
		OriginalFilename: path.Base(e.Name),
		SourceURI:        gcsURI(e.Bucket, e.Name),
		Status:           models.StatusReceived,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	docRef, _, err := f.firestoreClient.Collection(f.config.CollectionName).Add(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("failed to create run record: %w", err)
	}
	return docRef, nil
}

// validate checks that the resume can be read before any model is called.
func (f *IntakeFunction) validate(ctx context.Context, logCtx *slog.Logger, docRef *firestore.DocumentRef, format loader.Format, sourcePath string) error {
	pageCount := 1
	switch format {
	case loader.FormatPDF:
		n, err := loader.PDFPageCount(sourcePath)
		if err != nil {
			return f.handleError(ctx, logCtx, docRef, "failed to validate PDF", err)
		}
		pageCount = n
	case loader.FormatDOCX:
		if _, err := f.loader.Load(ctx, sourcePath); err != nil {
			return f.handleError(ctx, logCtx, docRef, "failed to validate DOCX", err)
		}
	}
	updates := []firestore.Update{
		{Path: "pageCount", Value: pageCount},
		{Path: "updatedAt", Value: time.Now()},
	}
	if _, err := docRef.Update(ctx, updates); err != nil {
		return f.handleError(ctx, logCtx, docRef, "failed to record page count", err)
	}
	logCtx.Info("Resume validated.", "format", string(format), "pageCount", pageCount)
	return nil
}

func (f *IntakeFunction) triggerWorkflow(ctx context.Context, logCtx *slog.Logger, docRef *firestore.DocumentRef, sourceURI string) error {
	logCtx.Info("Triggering workflow.")
	payloadBytes, err := json.Marshal(models.WorkflowArgs{RunID: docRef.ID, GCSUri: sourceURI})
	if err != nil {
		return f.handleError(ctx, logCtx, docRef, "failed to marshal workflow payload", err)
	}
	req := &executionspb.CreateExecutionRequest{
		Parent: workflowParent(f.config.ProjectID, f.config.WorkflowLocation, f.config.WorkflowID),
		Execution: &executionspb.Execution{
			Argument: string(payloadBytes),
		},
	}
	exec, err := f.executionsClient.CreateExecution(ctx, req)
	if err != nil {
		return f.handleError(ctx, logCtx, docRef, "failed to trigger workflow execution", err)
	}
	updates := []firestore.Update{
		{Path: "workflowExecutionId", Value: exec.GetName()},
		{Path: "updatedAt", Value: time.Now()},
	}
	if _, err := docRef.Update(ctx, updates); err != nil {
		logCtx.Warn("Failed to record workflow execution id.", "error", err)
	}
	return nil
}

func (f *IntakeFunction) handleError(ctx context.Context, logCtx *slog.Logger, docRef *firestore.DocumentRef, message string, originalErr error) error {
	return markFailed(ctx, logCtx, docRef, message, originalErr)
}

// markFailed logs the error, records it on the run and returns the combined error.
func markFailed(ctx context.Context, logCtx *slog.Logger, docRef *firestore.DocumentRef, message string, originalErr error) error {
	fullError := fmt.Errorf("%s: %w", message, originalErr)
	logCtx.Error(message, "error", originalErr)
	if err := updateStatus(ctx, docRef, models.StatusFailed, fullError.Error()); err != nil {
		logCtx.Error("CRITICAL: Failed to update Firestore status to FAILED after a processing error.", "updateError", err)
	}
	return fullError
}

func updateStatus(ctx context.Context, docRef *firestore.DocumentRef, status, errDetails string) error {
	updates := []firestore.Update{
		{Path: "status", Value: status},
		{Path: "updatedAt", Value: time.Now()},
	}
	if errDetails != "" {
		updates = append(updates, firestore.Update{Path: "errorDetails", Value: errDetails})
	}
	_, err := docRef.Update(ctx, updates)
	return err
}

func workflowParent(projectID, location, workflowID string) string {
	return fmt.Sprintf("projects/%s/locations/%s/workflows/%s", projectID, location, workflowID)
}

func gcsURI(bucket, object string) string {
	return fmt.Sprintf("gs://%s/%s", bucket, object)
}

func calculateFileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
