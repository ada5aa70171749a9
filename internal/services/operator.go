package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Lllllllleong/pdftoolkit/internal/document"
	"github.com/Lllllllleong/pdftoolkit/internal/failure"
	"github.com/Lllllllleong/pdftoolkit/internal/gcp"
	"github.com/Lllllllleong/pdftoolkit/internal/models"
	"github.com/Lllllllleong/pdftoolkit/internal/pipeline"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Operation names.
const (
	OpMerge          = "merge"
	OpRotate         = "rotate"
	OpDeletePages    = "delete_pages"
	OpExtractPages   = "extract_pages"
	OpEncrypt        = "encrypt"
	OpDecrypt        = "decrypt"
	OpOverlay        = "overlay"
	OpExtractText    = "extract_text"
	OpReversePages   = "reverse_pages"
	OpDuplicatePages = "duplicate_pages"
)

// Operations lists every supported operation in the order used by help text.
var Operations = []string{
	OpMerge, OpRotate, OpDeletePages, OpExtractPages, OpEncrypt,
	OpDecrypt, OpOverlay, OpExtractText, OpReversePages, OpDuplicatePages,
}

// stagingLimit bounds concurrent downloads of remote inputs.
const stagingLimit = 4

// OperatorConfig holds all configuration for the operator.
type OperatorConfig struct {
	AccessMethod       string
	TempDir            string
	ActivityProject    string
	ActivityCollection string
	UploadTimeout      time.Duration
	ProjectID          string
	WorkflowID         string
	WorkflowLocation   string
}

// LoadOperatorConfig reads the operator configuration from the environment.
// Workflow hand-off is only configured for the function surface.
func LoadOperatorConfig(accessMethod string) (*OperatorConfig, error) {
	timeout := gcp.GetEnv("PDFTOOL_UPLOAD_TIMEOUT", "50")
	seconds, err := strconv.Atoi(timeout)
	if err != nil || seconds <= 0 {
		return nil, fmt.Errorf("PDFTOOL_UPLOAD_TIMEOUT must be a positive number of seconds, got %q", timeout)
	}

	cfg := &OperatorConfig{
		AccessMethod:       accessMethod,
		TempDir:            gcp.GetEnv("PDFTOOL_TEMP_DIR", ""),
		ActivityProject:    gcp.GetEnv("PDFTOOL_ACTIVITY_PROJECT", ""),
		ActivityCollection: gcp.GetEnv("PDFTOOL_ACTIVITY_COLLECTION", "pdf_activity"),
		UploadTimeout:      time.Duration(seconds) * time.Second,
	}
	if accessMethod == models.AccessFunction {
		cfg.ProjectID = gcp.GetEnv("PROJECT_ID", "")
		cfg.WorkflowID = gcp.GetEnv("WORKFLOW_ID", "")
		cfg.WorkflowLocation = gcp.GetEnv("WORKFLOW_LOCATION", "us-central1")
		if cfg.WorkflowID != "" && cfg.ProjectID == "" {
			return nil, fmt.Errorf("PROJECT_ID environment variable must be set when WORKFLOW_ID is set")
		}
	}
	return cfg, nil
}

type objectStore interface {
	Exists(ctx context.Context, uri string) (bool, error)
	Download(ctx context.Context, uri, destPath string) error
	Upload(ctx context.Context, localPath, uri string) error
	Close() error
}

type activityRecorder interface {
	Record(ctx context.Context, rec models.ActivityRecord) error
	Close() error
}

type workflowStarter interface {
	Start(ctx context.Context, payload any) (string, error)
	Close() error
}

// Operator validates operation requests and runs them through the pipeline.
type Operator struct {
	config   OperatorConfig
	pipeline *pipeline.Pipeline
	logger   *slog.Logger

	activity activityRecorder
	workflow workflowStarter

	storeOnce sync.Once
	store     objectStore
	storeErr  error
	newStore  func(ctx context.Context) (objectStore, error)
}

// NewOperator creates an Operator. Cloud clients are only created for the
// features cfg enables; the storage client is created on first use.
func NewOperator(ctx context.Context, cfg OperatorConfig, logger *slog.Logger) (*Operator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	lib := document.NewPDFLibrary(document.Config{TempDir: cfg.TempDir, Logger: logger})
	o := newOperator(cfg, lib, logger)

	if cfg.ActivityProject != "" {
		activity, err := gcp.NewActivityLog(ctx, cfg.ActivityProject, cfg.ActivityCollection)
		if err != nil {
			return nil, fmt.Errorf("failed to create activity log: %w", err)
		}
		o.activity = activity
	}
	if cfg.WorkflowID != "" {
		trigger, err := gcp.NewWorkflowTrigger(ctx, cfg.ProjectID, cfg.WorkflowLocation, cfg.WorkflowID)
		if err != nil {
			o.Close()
			return nil, fmt.Errorf("failed to create workflow trigger: %w", err)
		}
		o.workflow = trigger
	}
	logger.Debug("Operator initialized.", "accessMethod", cfg.AccessMethod,
		"activityLog", o.activity != nil, "workflowId", cfg.WorkflowID)
	return o, nil
}

func newOperator(cfg OperatorConfig, lib document.Library, logger *slog.Logger) *Operator {
	return &Operator{
		config:   cfg,
		pipeline: pipeline.New(lib, logger),
		logger:   logger,
		newStore: func(ctx context.Context) (objectStore, error) {
			return gcp.NewObjectStore(ctx, cfg.UploadTimeout, logger)
		},
	}
}

// Close releases every cloud client the operator created.
func (o *Operator) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if o.store != nil {
		keep(o.store.Close())
	}
	if o.activity != nil {
		keep(o.activity.Close())
	}
	if o.workflow != nil {
		keep(o.workflow.Close())
	}
	return firstErr
}

func (o *Operator) objectStore(ctx context.Context) (objectStore, error) {
	o.storeOnce.Do(func() {
		o.store, o.storeErr = o.newStore(ctx)
	})
	return o.store, o.storeErr
}

// Process validates req, runs the operation and returns its result. Every
// error returned is a *failure.Error.
func (o *Operator) Process(ctx context.Context, req *models.OperationRequest) (*models.OperationResult, error) {
	start := time.Now()
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	logCtx := o.logger.With("requestId", requestID, "operation", req.Operation)
	logCtx.Info("Processing operation request.", "inputs", req.Inputs, "output", req.Output)

	err := o.process(ctx, logCtx, req)
	if err != nil {
		if _, ok := failure.As(err); !ok {
			err = failure.Wrap(failure.Unexpected, err, "An unexpected error occurred")
		}
	}
	duration := time.Since(start)
	o.recordActivity(ctx, logCtx, requestID, req, err, duration)

	if err != nil {
		logCtx.Error("Operation failed.", "error", err, "exitCode", failure.ExitCode(err))
		return nil, err
	}

	res := &models.OperationResult{
		RequestID: requestID,
		Operation: req.Operation,
		Output:    req.Output,
		Duration:  duration,
	}
	if o.workflow != nil {
		o.handOff(ctx, logCtx, res)
	}
	logCtx.Info("Operation complete.", "output", req.Output, "duration", duration.String())
	return res, nil
}

func (o *Operator) process(ctx context.Context, logCtx *slog.Logger, req *models.OperationRequest) error {
	if err := o.validate(ctx, req); err != nil {
		return err
	}

	staged, cleanup, err := o.stage(ctx, logCtx, req)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := o.dispatch(ctx, req, staged); err != nil {
		return err
	}

	if staged.output != req.Output {
		store, err := o.objectStore(ctx)
		if err != nil {
			return failure.Wrap(failure.IO, err, "Cloud Storage is unavailable")
		}
		if err := store.Upload(ctx, staged.output, req.Output); err != nil {
			return failure.Wrap(failure.IO, err, fmt.Sprintf("Error writing output %s", req.Output))
		}
		logCtx.Info("Uploaded output.", "gcsObject", req.Output)
	}
	return nil
}

func knownOperation(op string) bool {
	for _, name := range Operations {
		if op == name {
			return true
		}
	}
	return false
}

// validate checks the request in a fixed order before any document is opened:
// operation name, input existence, input count, then per-operation parameters.
func (o *Operator) validate(ctx context.Context, req *models.OperationRequest) error {
	if !knownOperation(req.Operation) {
		return failure.Newf(failure.InvalidArgument, "Unknown operation '%s'. Expected one of: %s.",
			req.Operation, strings.Join(Operations, ", "))
	}
	if len(req.Inputs) == 0 {
		return failure.New(failure.InvalidArgument, "At least one input file is required.")
	}
	if req.Output == "" {
		return failure.New(failure.InvalidArgument, "An output path is required.")
	}
	for _, in := range req.Inputs {
		if err := o.checkInput(ctx, in, "Input file not found: %s"); err != nil {
			return err
		}
	}

	if req.Operation != OpMerge && len(req.Inputs) != 1 {
		return failure.Newf(failure.InvalidArgument,
			"Operation '%s' requires exactly one primary input PDF (received %d).", req.Operation, len(req.Inputs))
	}

	switch req.Operation {
	case OpMerge:
		if len(req.Inputs) < 2 {
			return failure.New(failure.InvalidArgument, "Merge operation requires at least two input files.")
		}
	case OpRotate:
		if req.Angle == nil {
			return failure.New(failure.InvalidArgument, "Rotate operation requires an angle.")
		}
		if !pipeline.ValidAngle(*req.Angle) {
			return failure.Newf(failure.InvalidArgument, "Rotation angle must be one of 0, 90, 180 or 270, got %d.", *req.Angle)
		}
	case OpDeletePages:
		if strings.TrimSpace(req.Pages) == "" {
			return failure.New(failure.InvalidArgument, "Delete pages operation requires a page specification of the pages to delete.")
		}
	case OpExtractPages:
		if strings.TrimSpace(req.Pages) == "" {
			return failure.New(failure.InvalidArgument, "Extract pages operation requires a page specification of the pages to extract.")
		}
	case OpEncrypt:
		if req.UserPassword == "" {
			return failure.New(failure.InvalidArgument, "Encrypt operation requires a user password.")
		}
	case OpDecrypt:
		if req.Password == "" {
			return failure.New(failure.InvalidArgument, "Decrypt operation requires a password.")
		}
	case OpOverlay:
		if req.OverlaySource == "" {
			return failure.New(failure.InvalidArgument, "Overlay operation requires an overlay PDF or image.")
		}
		if err := o.checkInput(ctx, req.OverlaySource, "Overlay PDF file not found: %s"); err != nil {
			return err
		}
	case OpDuplicatePages:
		if strings.TrimSpace(req.Pages) == "" {
			return failure.New(failure.InvalidArgument,
				"Duplicate pages operation requires a page specification of the pages to duplicate.")
		}
		if req.DuplicateCopies() < 0 {
			return failure.New(failure.InvalidArgument, "Duplicate count must be a non-negative integer.")
		}
	}
	return nil
}

// checkInput verifies that path names an existing regular file or object.
func (o *Operator) checkInput(ctx context.Context, path, notFound string) error {
	if gcp.IsRemote(path) {
		if _, _, err := gcp.ParseURI(path); err != nil {
			return failure.Wrap(failure.InvalidArgument, err, "Invalid input")
		}
		store, err := o.objectStore(ctx)
		if err != nil {
			return failure.Wrap(failure.IO, err, "Cloud Storage is unavailable")
		}
		ok, err := store.Exists(ctx, path)
		if err != nil {
			return failure.Unreadable(err, "Cannot access %s", path)
		}
		if !ok {
			return failure.NotFound(notFound, path)
		}
		return nil
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return failure.NotFound(notFound, path)
	}
	if err != nil {
		return failure.Unreadable(err, "Cannot access %s", path)
	}
	if !info.Mode().IsRegular() {
		return failure.Newf(failure.InvalidArgument, "Input path is not a file: %s", path)
	}
	return nil
}

// stagedPaths are the local counterparts of a request's paths.
type stagedPaths struct {
	inputs  []string
	overlay string
	output  string
}

// stage downloads remote inputs into a per-request directory and picks a
// local path for a remote output. Local paths are used as they are.
func (o *Operator) stage(ctx context.Context, logCtx *slog.Logger, req *models.OperationRequest) (*stagedPaths, func(), error) {
	staged := &stagedPaths{
		inputs:  append([]string(nil), req.Inputs...),
		overlay: req.OverlaySource,
		output:  req.Output,
	}
	remote := map[int]string{}
	for i, in := range req.Inputs {
		if gcp.IsRemote(in) {
			remote[i] = in
		}
	}
	overlayRemote := gcp.IsRemote(req.OverlaySource)
	if len(remote) == 0 && !overlayRemote && !gcp.IsRemote(req.Output) {
		return staged, func() {}, nil
	}

	tempDir, err := os.MkdirTemp(o.config.TempDir, "pdftool-*")
	if err != nil {
		return nil, nil, failure.Wrap(failure.IO, err, "Failed to create staging directory")
	}
	cleanup := func() { os.RemoveAll(tempDir) }
	logCtx.Info("Created temp directory.", "path", tempDir)

	store, err := o.objectStore(ctx)
	if err != nil {
		cleanup()
		return nil, nil, failure.Wrap(failure.IO, err, "Cloud Storage is unavailable")
	}

	// Each object keeps its base name so messages name the same file.
	localName := func(prefix string, i int, uri string) string {
		_, object, _ := gcp.ParseURI(uri)
		return filepath.Join(tempDir, fmt.Sprintf("%s-%02d", prefix, i), path.Base(object))
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(stagingLimit)
	download := func(uri, dest string) {
		eg.Go(func() error {
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return err
			}
			if err := store.Download(gctx, uri, dest); err != nil {
				return fmt.Errorf("%s: %w", uri, err)
			}
			return nil
		})
	}

	indexes := make([]int, 0, len(remote))
	for i := range remote {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	for _, i := range indexes {
		staged.inputs[i] = localName("input", i, remote[i])
		download(remote[i], staged.inputs[i])
	}
	if overlayRemote {
		staged.overlay = localName("overlay", 0, req.OverlaySource)
		download(req.OverlaySource, staged.overlay)
	}
	if err := eg.Wait(); err != nil {
		cleanup()
		return nil, nil, failure.Unreadable(err, "Failed to download input")
	}
	logCtx.Info("Staged remote inputs.", "count", len(indexes), "overlay", overlayRemote)

	if gcp.IsRemote(req.Output) {
		staged.output = localName("output", 0, req.Output)
		if err := os.MkdirAll(filepath.Dir(staged.output), 0o755); err != nil {
			cleanup()
			return nil, nil, failure.Wrap(failure.IO, err, "Failed to create staging directory")
		}
	}
	return staged, cleanup, nil
}

func (o *Operator) dispatch(ctx context.Context, req *models.OperationRequest, staged *stagedPaths) error {
	in := staged.inputs[0]
	out := staged.output
	switch req.Operation {
	case OpMerge:
		return o.pipeline.Merge(ctx, staged.inputs, out)
	case OpRotate:
		return o.pipeline.Rotate(ctx, in, out, *req.Angle, req.Pages)
	case OpDeletePages:
		return o.pipeline.DeletePages(ctx, in, out, req.Pages)
	case OpExtractPages:
		return o.pipeline.ExtractPages(ctx, in, out, req.Pages)
	case OpEncrypt:
		return o.pipeline.Encrypt(ctx, in, out, req.UserPassword, req.OwnerPassword)
	case OpDecrypt:
		return o.pipeline.Decrypt(ctx, in, out, req.Password)
	case OpOverlay:
		return o.pipeline.Overlay(ctx, in, staged.overlay, out, req.OverlayPageNumber(), req.Pages)
	case OpExtractText:
		return o.pipeline.ExtractText(ctx, in, out, req.Pages)
	case OpReversePages:
		return o.pipeline.ReversePages(ctx, in, out)
	case OpDuplicatePages:
		return o.pipeline.DuplicatePages(ctx, in, out, req.Pages, req.DuplicateCopies())
	}
	return failure.Newf(failure.Unexpected, "Operation '%s' completed but no output file path was determined.", req.Operation)
}

// recordActivity appends the request to the activity log. Failures are logged
// and never returned.
func (o *Operator) recordActivity(ctx context.Context, logCtx *slog.Logger, id string, req *models.OperationRequest, opErr error, d time.Duration) {
	if o.activity == nil {
		return
	}
	rec := models.ActivityRecord{
		ID:             id,
		Operation:      req.Operation,
		Inputs:         req.Inputs,
		Output:         req.Output,
		Pages:          req.Pages,
		Status:         models.StatusSuccess,
		DurationMillis: d.Milliseconds(),
		AccessMethod:   o.config.AccessMethod,
		CreatedAt:      time.Now().UTC(),
	}
	if opErr != nil {
		rec.Status = models.StatusFailed
		rec.ErrorKind = failure.KindOf(opErr).String()
		rec.ErrorDetails = opErr.Error()
		rec.ExitCode = failure.ExitCode(opErr)
	}
	if err := o.activity.Record(ctx, rec); err != nil {
		logCtx.Warn("Failed to record activity.", "error", err)
	}
}

// handOff starts a workflow execution for a successful result. A failed
// hand-off is logged; the operation itself already succeeded.
func (o *Operator) handOff(ctx context.Context, logCtx *slog.Logger, res *models.OperationResult) {
	payload := map[string]interface{}{
		"requestId": res.RequestID,
		"operation": res.Operation,
		"output":    res.Output,
	}
	name, err := o.workflow.Start(ctx, payload)
	if err != nil {
		logCtx.Error("Failed to hand off to workflow.", "error", err)
		return
	}
	res.WorkflowExecution = name
	logCtx.Info("Hand-off to workflow complete.", "execution", name)
}
