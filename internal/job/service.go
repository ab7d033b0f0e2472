package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/maauso/faceswap-api/internal/job/id"
	"github.com/maauso/faceswap-api/internal/media"
	"github.com/maauso/faceswap-api/internal/notify"
)

// Workspaces allocates and releases per-job scratch directories.
type Workspaces interface {
	CreateWorkspace(ctx context.Context, jobID string) (string, error)
	RemoveWorkspace(ctx context.Context, dir string) error
}

// Fetcher downloads a remote resource to a local path.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string) error
}

// FaceReplacer swaps the avatar's face into a segment or a whole video and
// returns the path of the swapped file.
type FaceReplacer interface {
	ReplaceSegment(ctx context.Context, segmentPath, avatarPath string) (string, error)
	ReplaceWholeVideo(ctx context.Context, videoPath, avatarPath, modelPath string) (string, error)
}

// Publisher uploads the final artifact and returns its public URL.
type Publisher interface {
	Publish(ctx context.Context, localPath, jobID string) (string, error)
}

// Notifier posts the terminal payload. It never fails the job.
type Notifier interface {
	Notify(ctx context.Context, url string, payload notify.Payload)
}

// Prober reports the duration of a media file in seconds.
type Prober interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// Workspace file names.
const (
	sourceVideoName = "input_video.mp4"
	avatarBaseName  = "avatar"
	finalOutputName = "final_output.mp4"
)

// stageError carries the caller-facing failure message of a stage. Error
// always includes the cause; the reported message omits it when hideCause is
// set.
type stageError struct {
	stage     State
	msg       string
	err       error
	hideCause bool
}

func (e *stageError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *stageError) Unwrap() error {
	return e.err
}

func failed(stage State, msg string, err error) error {
	return &stageError{stage: stage, msg: msg, err: err}
}

// failedBare is failed for stages whose caller-facing message is the stage
// phrase alone. The cause still reaches the logs.
func failedBare(stage State, msg string, err error) error {
	return &stageError{stage: stage, msg: msg, err: err, hideCause: true}
}

// reportedMessage is the failure text put in the Result and the webhook.
func reportedMessage(err error) string {
	var se *stageError
	if errors.As(err, &se) && se.hideCause {
		return se.msg
	}
	return err.Error()
}

// Service runs face-swap jobs. Each Run owns its workspace exclusively, so
// concurrent runs share nothing but the collaborators.
type Service struct {
	repo       Repository
	workspaces Workspaces
	fetcher    Fetcher
	segmenter  media.Segmenter
	stitcher   media.Stitcher
	replacer   FaceReplacer
	publisher  Publisher
	notifier   Notifier
	prober     Prober
	settings   Settings
	logger     *slog.Logger

	active atomic.Int64
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithSettings sets the base settings every run starts from.
func WithSettings(s Settings) ServiceOption {
	return func(svc *Service) {
		svc.settings = s
	}
}

// WithProber enables a duration check of the source against the segment
// layout in segmented mode.
func WithProber(p Prober) ServiceOption {
	return func(svc *Service) {
		svc.prober = p
	}
}

// NewService creates a new Service.
func NewService(
	repo Repository,
	workspaces Workspaces,
	fetcher Fetcher,
	segmenter media.Segmenter,
	stitcher media.Stitcher,
	replacer FaceReplacer,
	publisher Publisher,
	notifier Notifier,
	logger *slog.Logger,
	opts ...ServiceOption,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:       repo,
		workspaces: workspaces,
		fetcher:    fetcher,
		segmenter:  segmenter,
		stitcher:   stitcher,
		replacer:   replacer,
		publisher:  publisher,
		notifier:   notifier,
		settings:   DefaultSettings(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Settings returns the base settings.
func (s *Service) Settings() Settings {
	return s.settings
}

// ActiveJobs returns the number of jobs currently being processed.
func (s *Service) ActiveJobs() int {
	return int(s.active.Load())
}

// GetJob retrieves a job by ID.
func (s *Service) GetJob(ctx context.Context, jobID string) (*Job, error) {
	return s.repo.FindByID(ctx, jobID)
}

// CreateJob registers a job in CREATED state. An empty JobID is replaced by
// a generated one.
func (s *Service) CreateJob(ctx context.Context, in Input) (*Job, error) {
	if in.JobID == "" {
		in.JobID = id.Generate()
	}
	settings := s.settings.merge(in)

	j := NewWithID(in.JobID, settings.Mode)
	j.VideoURL = in.VideoURL
	j.AvatarURL = in.AvatarURL
	j.WebhookURL = settings.webhookURL(in)

	s.logger.Info("creating new job",
		slog.String("job_id", j.ID),
		slog.String("mode", string(j.Mode)),
	)

	if err := s.repo.Save(ctx, j); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return j, nil
}

// Run creates and processes a job in one call.
func (s *Service) Run(ctx context.Context, in Input) Result {
	j, err := s.CreateJob(ctx, in)
	if err != nil {
		return Result{Status: ResultFailed, Error: fmt.Sprintf("Failed to register job: %v", err)}
	}
	in.JobID = j.ID
	return s.Process(ctx, j, in)
}

// Process drives j through every stage and returns its terminal Result.
// Stage failures never escape as errors: they become a failed Result. The
// workspace is removed and the webhook, if any, is called exactly once
// before Process returns.
func (s *Service) Process(ctx context.Context, j *Job, in Input) Result {
	s.active.Add(1)
	defer s.active.Add(-1)

	settings := s.settings.merge(in)
	logger := s.logger.With(
		slog.String("job_id", j.ID),
		slog.String("mode", string(settings.Mode)),
	)

	outputURL, err := s.execute(ctx, j, in, settings, logger)

	var result Result
	if err != nil {
		logger.Error("job failed",
			slog.String("stage", string(stageOf(err, j))),
			slog.String("error", err.Error()),
		)
		result = Result{Status: ResultFailed, Error: reportedMessage(err)}
		s.check(logger, j.Fail(result.Error))
	} else {
		logger.Info("job processed", slog.String("output_url", outputURL))
		result = Result{Status: ResultSuccess, OutputURL: outputURL}
		s.check(logger, j.Deliver(outputURL))
	}
	s.save(ctx, logger, j)

	s.notify(ctx, logger, j, result)

	s.check(logger, j.Finish())
	s.save(ctx, logger, j)
	return result
}

// execute runs the stages. The workspace is released before it returns,
// and a panic in any stage is converted into a stage error.
func (s *Service) execute(ctx context.Context, j *Job, in Input, settings Settings, logger *slog.Logger) (outputURL string, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic during job processing", slog.Any("panic", r))
			err = failed(j.GetState(), "Unexpected error during "+strings.ToLower(string(j.GetState())), fmt.Errorf("panic: %v", r))
		}
	}()

	if err := in.Validate(); err != nil {
		return "", failed(StateCreated, "Invalid job input", err)
	}

	dir, err := s.workspaces.CreateWorkspace(ctx, j.ID)
	if err != nil {
		return "", failed(StateCreated, "Failed to create workspace", err)
	}
	logger = logger.With(slog.String("workspace", dir))
	defer func() {
		if rmErr := s.workspaces.RemoveWorkspace(context.WithoutCancel(ctx), dir); rmErr != nil {
			logger.Warn("failed to remove workspace", slog.String("error", rmErr.Error()))
		}
	}()

	s.advance(ctx, logger, j, StateDownloading)
	videoPath := filepath.Join(dir, sourceVideoName)
	if err := s.fetcher.Fetch(ctx, in.VideoURL, videoPath); err != nil {
		return "", failedBare(StateDownloading, "Failed to download video", err)
	}
	avatarPath := filepath.Join(dir, avatarBaseName+imageExt(in.AvatarURL))
	if err := s.fetcher.Fetch(ctx, in.AvatarURL, avatarPath); err != nil {
		return "", failedBare(StateDownloading, "Failed to download avatar", err)
	}

	var artifact string
	switch settings.Mode {
	case ModeSegmented:
		artifact, err = s.runSegmented(ctx, logger, j, settings, dir, videoPath, avatarPath)
	default:
		artifact, err = s.runDirect(ctx, logger, j, settings, videoPath, avatarPath)
	}
	if err != nil {
		return "", err
	}

	s.advance(ctx, logger, j, StateUploading)
	outputURL, err = s.publisher.Publish(ctx, artifact, j.ID)
	if err != nil {
		return "", failed(StateUploading, "S3 upload failed", err)
	}
	return outputURL, nil
}

// runSegmented splits the source, swaps the designated segments and stitches
// them back in the original order.
func (s *Service) runSegmented(ctx context.Context, logger *slog.Logger, j *Job, settings Settings, dir, videoPath, avatarPath string) (string, error) {
	s.advance(ctx, logger, j, StateSegmenting)
	s.checkDuration(ctx, logger, videoPath, settings.Segments)

	segments, err := s.segmenter.Split(ctx, videoPath, settings.Segments)
	if err != nil {
		return "", failed(StateSegmenting, "Video segmentation failed", err)
	}

	s.advance(ctx, logger, j, StateSwapping)
	ordered := make([]string, len(segments))
	for i, seg := range segments {
		if !seg.Swap && !settings.SwapOriginals {
			ordered[i] = seg.Path
			continue
		}
		logger.Info("swapping segment", slog.String("segment", seg.Name))
		swapped, err := s.replacer.ReplaceSegment(ctx, seg.Path, avatarPath)
		if err != nil {
			return "", failed(StateSwapping, "Face-swap failed on segment "+seg.Name, err)
		}
		ordered[i] = swapped
	}

	s.advance(ctx, logger, j, StateStitching)
	final := filepath.Join(dir, finalOutputName)
	if err := s.stitcher.Concat(ctx, ordered, final); err != nil {
		return "", failed(StateStitching, "Video stitching failed", err)
	}
	return final, nil
}

// runDirect swaps the whole source in one pass.
func (s *Service) runDirect(ctx context.Context, logger *slog.Logger, j *Job, settings Settings, videoPath, avatarPath string) (string, error) {
	s.advance(ctx, logger, j, StateSwapping)
	swapped, err := s.replacer.ReplaceWholeVideo(ctx, videoPath, avatarPath, settings.ModelPath)
	if err != nil {
		return "", failed(StateSwapping, "Face-swap processing failed", err)
	}
	return swapped, nil
}

// checkDuration warns when the source ends before the segment layout does.
// Cutting past the end yields short segments rather than an error, so this
// is diagnostic only.
func (s *Service) checkDuration(ctx context.Context, logger *slog.Logger, videoPath string, spec media.SegmentSpec) {
	if s.prober == nil {
		return
	}
	duration, err := s.prober.ProbeDuration(ctx, videoPath)
	if err != nil {
		logger.Warn("failed to probe source duration", slog.String("error", err.Error()))
		return
	}
	if duration < spec.Original2.End {
		logger.Warn("source video is shorter than the segment layout",
			slog.Float64("duration_sec", duration),
			slog.Float64("layout_end_sec", spec.Original2.End),
		)
	}
}

// notify sends the terminal payload once, if a callback URL is known.
func (s *Service) notify(ctx context.Context, logger *slog.Logger, j *Job, result Result) {
	if j.WebhookURL == "" {
		logger.Warn("no webhook URL configured, skipping notification")
		return
	}

	payload := notify.Success(j.ID, result.OutputURL)
	if result.Status == ResultFailed {
		payload = notify.Failure(j.ID, result.Error)
	}
	s.notifier.Notify(context.WithoutCancel(ctx), j.WebhookURL, payload)
}

func (s *Service) advance(ctx context.Context, logger *slog.Logger, j *Job, state State) {
	s.check(logger, j.TransitionTo(state))
	logger.Info("job stage", slog.String("stage", string(state)))
	s.save(ctx, logger, j)
}

func (s *Service) save(ctx context.Context, logger *slog.Logger, j *Job) {
	if err := s.repo.Save(context.WithoutCancel(ctx), j); err != nil {
		logger.Warn("failed to save job state", slog.String("error", err.Error()))
	}
}

func (s *Service) check(logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("job state machine rejected transition", slog.String("error", err.Error()))
	}
}

// stageOf returns the stage a failure belongs to.
func stageOf(err error, j *Job) State {
	var se *stageError
	if errors.As(err, &se) {
		return se.stage
	}
	return j.GetState()
}

// imageExt keeps the avatar's extension so image loaders can sniff it,
// defaulting to .png.
func imageExt(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ".png"
	}
	switch ext := strings.ToLower(path.Ext(u.Path)); ext {
	case ".png", ".jpg", ".jpeg", ".webp", ".bmp":
		return ext
	default:
		return ".png"
	}
}
