package job

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/faceswap-api/internal/faceswap"
	"github.com/maauso/faceswap-api/internal/media"
	"github.com/maauso/faceswap-api/internal/notify"
	"github.com/maauso/faceswap-api/internal/storage"
	"github.com/maauso/faceswap-api/internal/transfer"
)

// Mocks for the pipeline collaborators.

type mockFetcher struct{ mock.Mock }

func (m *mockFetcher) Fetch(ctx context.Context, url, dest string) error {
	return m.Called(ctx, url, dest).Error(0)
}

type mockSegmenter struct{ mock.Mock }

func (m *mockSegmenter) Split(ctx context.Context, videoPath string, spec media.SegmentSpec) ([]media.Segment, error) {
	args := m.Called(ctx, videoPath, spec)
	segs, _ := args.Get(0).([]media.Segment)
	return segs, args.Error(1)
}

type mockStitcher struct{ mock.Mock }

func (m *mockStitcher) Concat(ctx context.Context, videoPaths []string, output string) error {
	return m.Called(ctx, videoPaths, output).Error(0)
}

type mockReplacer struct{ mock.Mock }

func (m *mockReplacer) ReplaceSegment(ctx context.Context, segmentPath, avatarPath string) (string, error) {
	args := m.Called(ctx, segmentPath, avatarPath)
	return args.String(0), args.Error(1)
}

func (m *mockReplacer) ReplaceWholeVideo(ctx context.Context, videoPath, avatarPath, modelPath string) (string, error) {
	args := m.Called(ctx, videoPath, avatarPath, modelPath)
	return args.String(0), args.Error(1)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, localPath, jobID string) (string, error) {
	args := m.Called(ctx, localPath, jobID)
	return args.String(0), args.Error(1)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Notify(ctx context.Context, url string, payload notify.Payload) {
	m.Called(ctx, url, payload)
}

type harness struct {
	repo      *MemoryRepository
	store     *storage.LocalStorage
	fetcher   *mockFetcher
	segmenter *mockSegmenter
	stitcher  *mockStitcher
	replacer  *mockReplacer
	publisher *mockPublisher
	notifier  *mockNotifier
	svc       *Service
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, opts ...ServiceOption) *harness {
	t.Helper()

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	h := &harness{
		repo:      NewMemoryRepository(),
		store:     store,
		fetcher:   &mockFetcher{},
		segmenter: &mockSegmenter{},
		stitcher:  &mockStitcher{},
		replacer:  &mockReplacer{},
		publisher: &mockPublisher{},
		notifier:  &mockNotifier{},
	}
	h.svc = NewService(h.repo, h.store, h.fetcher, h.segmenter, h.stitcher,
		h.replacer, h.publisher, h.notifier, testLogger(), opts...)
	return h
}

// assertWorkspacesRemoved checks no job workspace is left under the root.
func (h *harness) assertWorkspacesRemoved(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(h.store.BaseDir())
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), "faceswap_"), "workspace left behind: %s", e.Name())
	}
}

func baseName(name string) interface{} {
	return mock.MatchedBy(func(p string) bool { return filepath.Base(p) == name })
}

func segmentedSettings() Settings {
	return Settings{
		Mode:      ModeSegmented,
		Segments:  media.DefaultSegmentSpec(),
		ModelPath: "/models/wan",
	}
}

func fourSegments() []media.Segment {
	return []media.Segment{
		{Name: media.SegmentSwap1, Path: "/ws/segment_swap_1.mp4", Swap: true},
		{Name: media.SegmentOriginal1, Path: "/ws/segment_original_1.mp4"},
		{Name: media.SegmentSwap2, Path: "/ws/segment_swap_2.mp4", Swap: true},
		{Name: media.SegmentOriginal2, Path: "/ws/segment_original_2.mp4"},
	}
}

func TestService_Run_SegmentedSuccess(t *testing.T) {
	h := newHarness(t, WithSettings(segmentedSettings()))
	ctx := context.Background()
	const outputURL = "https://media.s3.eu-north-1.amazonaws.com/outputs/rec123.mp4"

	h.fetcher.On("Fetch", mock.Anything, "https://cdn/source.mp4", baseName("input_video.mp4")).Return(nil).Once()
	h.fetcher.On("Fetch", mock.Anything, "https://cdn/face.jpg", baseName("avatar.jpg")).Return(nil).Once()
	h.segmenter.On("Split", mock.Anything, baseName("input_video.mp4"), media.DefaultSegmentSpec()).
		Return(fourSegments(), nil).Once()
	h.replacer.On("ReplaceSegment", mock.Anything, "/ws/segment_swap_1.mp4", baseName("avatar.jpg")).
		Return("/ws/segment_swap_1_swapped.mp4", nil).Once()
	h.replacer.On("ReplaceSegment", mock.Anything, "/ws/segment_swap_2.mp4", baseName("avatar.jpg")).
		Return("/ws/segment_swap_2_swapped.mp4", nil).Once()
	h.stitcher.On("Concat", mock.Anything, []string{
		"/ws/segment_swap_1_swapped.mp4",
		"/ws/segment_original_1.mp4",
		"/ws/segment_swap_2_swapped.mp4",
		"/ws/segment_original_2.mp4",
	}, baseName("final_output.mp4")).Return(nil).Once()
	h.publisher.On("Publish", mock.Anything, baseName("final_output.mp4"), "rec123").Return(outputURL, nil).Once()
	h.notifier.On("Notify", mock.Anything, "https://hooks/cb", notify.Payload{
		Status:    notify.StatusComplete,
		RecordID:  "rec123",
		OutputURL: outputURL,
	}).Once()

	result := h.svc.Run(ctx, Input{
		JobID:      "rec123",
		VideoURL:   "https://cdn/source.mp4",
		AvatarURL:  "https://cdn/face.jpg",
		WebhookURL: "https://hooks/cb",
	})

	assert.Equal(t, Result{Status: ResultSuccess, OutputURL: outputURL}, result)
	h.replacer.AssertNumberOfCalls(t, "ReplaceSegment", 2)
	h.notifier.AssertNumberOfCalls(t, "Notify", 1)
	mock.AssertExpectationsForObjects(t, h.fetcher, h.segmenter, h.replacer, h.stitcher, h.publisher, h.notifier)
	h.assertWorkspacesRemoved(t)

	saved, err := h.repo.FindByID(ctx, "rec123")
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, saved.GetState())
	assert.Equal(t, outputURL, saved.OutputURL)
	assert.Equal(t, 0, h.svc.ActiveJobs())
}

func TestService_Run_SwapOriginals(t *testing.T) {
	h := newHarness(t, WithSettings(segmentedSettings()))
	swapAll := true

	h.fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	h.segmenter.On("Split", mock.Anything, mock.Anything, mock.Anything).Return(fourSegments(), nil)
	h.replacer.On("ReplaceSegment", mock.Anything, mock.Anything, mock.Anything).
		Return("/ws/swapped.mp4", nil)
	h.stitcher.On("Concat", mock.Anything, []string{
		"/ws/swapped.mp4", "/ws/swapped.mp4", "/ws/swapped.mp4", "/ws/swapped.mp4",
	}, mock.Anything).Return(nil)
	h.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return("https://x/outputs/j.mp4", nil)

	result := h.svc.Run(context.Background(), Input{
		JobID:         "j",
		VideoURL:      "https://cdn/v.mp4",
		AvatarURL:     "https://cdn/a.png",
		SwapOriginals: &swapAll,
	})

	assert.Equal(t, ResultSuccess, result.Status)
	h.replacer.AssertNumberOfCalls(t, "ReplaceSegment", 4)
	h.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Run_SegmentOverride(t *testing.T) {
	h := newHarness(t, WithSettings(segmentedSettings()))
	custom := media.SegmentSpec{
		Swap1:     media.TimeRange{Start: 0, End: 2},
		Original1: media.TimeRange{Start: 2, End: 4},
		Swap2:     media.TimeRange{Start: 4, End: 6},
		Original2: media.TimeRange{Start: 6, End: 8},
	}

	h.fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	h.segmenter.On("Split", mock.Anything, mock.Anything, custom).
		Return(nil, &media.SegmentationError{Segment: "swap_2", Err: errors.New("exit status 1")})
	h.notifier.On("Notify", mock.Anything, "https://hooks/cb", mock.Anything).Once()

	result := h.svc.Run(context.Background(), Input{
		JobID:      "j",
		VideoURL:   "https://cdn/v.mp4",
		AvatarURL:  "https://cdn/a.png",
		WebhookURL: "https://hooks/cb",
		Segments:   &custom,
	})

	assert.Equal(t, ResultFailed, result.Status)
	assert.True(t, strings.HasPrefix(result.Error, "Video segmentation failed: "), result.Error)
	h.replacer.AssertNotCalled(t, "ReplaceSegment", mock.Anything, mock.Anything, mock.Anything)
	h.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	h.assertWorkspacesRemoved(t)
}

func TestService_Run_AvatarDownloadFails(t *testing.T) {
	h := newHarness(t, WithSettings(segmentedSettings()))
	ctx := context.Background()
	timeout := &transfer.Error{Op: transfer.OpDownload, URL: "https://cdn/face.png", Err: context.DeadlineExceeded}

	h.fetcher.On("Fetch", mock.Anything, "https://cdn/source.mp4", mock.Anything).Return(nil).Once()
	h.fetcher.On("Fetch", mock.Anything, "https://cdn/face.png", mock.Anything).Return(timeout).Once()
	h.notifier.On("Notify", mock.Anything, "https://hooks/cb", mock.MatchedBy(func(p notify.Payload) bool {
		return p.Status == notify.StatusFailed &&
			p.RecordID == "rec123" &&
			p.OutputURL == "" &&
			p.ErrorMessage == "Failed to download avatar"
	})).Once()

	result := h.svc.Run(ctx, Input{
		JobID:      "rec123",
		VideoURL:   "https://cdn/source.mp4",
		AvatarURL:  "https://cdn/face.png",
		WebhookURL: "https://hooks/cb",
	})

	assert.Equal(t, ResultFailed, result.Status)
	assert.Equal(t, "Failed to download avatar", result.Error)
	assert.Empty(t, result.OutputURL)
	h.segmenter.AssertNotCalled(t, "Split", mock.Anything, mock.Anything, mock.Anything)
	h.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	h.notifier.AssertExpectations(t)
	h.assertWorkspacesRemoved(t)

	saved, err := h.repo.FindByID(ctx, "rec123")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, saved.GetState())
	assert.Equal(t, result.Error, saved.Error)
}

func TestService_Run_VideoDownloadFails(t *testing.T) {
	h := newHarness(t)

	h.fetcher.On("Fetch", mock.Anything, "https://cdn/source.mp4", mock.Anything).
		Return(&transfer.Error{Op: transfer.OpDownload, URL: "https://cdn/source.mp4", StatusCode: 404, Err: transfer.ErrUnexpectedStatus}).Once()
	h.notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything).Once()

	result := h.svc.Run(context.Background(), Input{
		JobID:      "rec1",
		VideoURL:   "https://cdn/source.mp4",
		AvatarURL:  "https://cdn/face.png",
		WebhookURL: "https://hooks/cb",
	})

	assert.Equal(t, ResultFailed, result.Status)
	assert.Equal(t, "Failed to download video", result.Error)
	h.fetcher.AssertNumberOfCalls(t, "Fetch", 1)
	h.notifier.AssertNumberOfCalls(t, "Notify", 1)
}

func TestService_Run_DirectGenerationFails(t *testing.T) {
	h := newHarness(t, WithSettings(Settings{Mode: ModeDirect, Segments: media.DefaultSegmentSpec(), ModelPath: "/models/wan"}))
	genErr := &faceswap.GenerationError{Result: faceswap.RunResult{ExitCode: 1, Stderr: "RuntimeError: CUDA error"}}

	h.fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	h.replacer.On("ReplaceWholeVideo", mock.Anything, baseName("input_video.mp4"), baseName("avatar.png"), "/models/wan").
		Return("", genErr).Once()
	h.notifier.On("Notify", mock.Anything, mock.Anything, mock.MatchedBy(func(p notify.Payload) bool {
		return p.Status == notify.StatusFailed && strings.Contains(p.ErrorMessage, "RuntimeError: CUDA error")
	})).Once()

	result := h.svc.Run(context.Background(), Input{
		JobID:      "rec9",
		VideoURL:   "https://cdn/source.mp4",
		AvatarURL:  "https://cdn/avatar",
		WebhookURL: "https://hooks/cb",
	})

	assert.Equal(t, ResultFailed, result.Status)
	assert.True(t, strings.HasPrefix(result.Error, "Face-swap processing failed"), result.Error)
	assert.Contains(t, result.Error, "RuntimeError: CUDA error")
	h.segmenter.AssertNotCalled(t, "Split", mock.Anything, mock.Anything, mock.Anything)
	h.stitcher.AssertNotCalled(t, "Concat", mock.Anything, mock.Anything, mock.Anything)
	h.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	mock.AssertExpectationsForObjects(t, h.replacer, h.notifier)
	h.assertWorkspacesRemoved(t)
}

func TestService_Run_SegmentSwapFailureNamesSegment(t *testing.T) {
	h := newHarness(t, WithSettings(segmentedSettings()))

	h.fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	h.segmenter.On("Split", mock.Anything, mock.Anything, mock.Anything).Return(fourSegments(), nil)
	h.replacer.On("ReplaceSegment", mock.Anything, "/ws/segment_swap_1.mp4", mock.Anything).
		Return("/ws/segment_swap_1_swapped.mp4", nil)
	h.replacer.On("ReplaceSegment", mock.Anything, "/ws/segment_swap_2.mp4", mock.Anything).
		Return("", &faceswap.OutputNotFoundError{Dir: "/ws/wan_process_segment_swap_2.mp4"})

	result := h.svc.Run(context.Background(), Input{
		JobID:     "j",
		VideoURL:  "https://cdn/v.mp4",
		AvatarURL: "https://cdn/a.png",
	})

	assert.Equal(t, ResultFailed, result.Status)
	assert.True(t, strings.HasPrefix(result.Error, "Face-swap failed on segment swap_2"), result.Error)
	h.stitcher.AssertNotCalled(t, "Concat", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Run_StitchAndUploadFailures(t *testing.T) {
	t.Run("stitch", func(t *testing.T) {
		h := newHarness(t, WithSettings(segmentedSettings()))
		h.fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		h.segmenter.On("Split", mock.Anything, mock.Anything, mock.Anything).Return(fourSegments(), nil)
		h.replacer.On("ReplaceSegment", mock.Anything, mock.Anything, mock.Anything).Return("/ws/s.mp4", nil)
		h.stitcher.On("Concat", mock.Anything, mock.Anything, mock.Anything).
			Return(&media.StitchError{Err: errors.New("exit status 1")})

		result := h.svc.Run(context.Background(), Input{JobID: "j", VideoURL: "https://v", AvatarURL: "https://a"})

		assert.True(t, strings.HasPrefix(result.Error, "Video stitching failed"), result.Error)
		h.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("upload", func(t *testing.T) {
		h := newHarness(t)
		h.fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		h.replacer.On("ReplaceWholeVideo", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return("/ws/input_video_swapped.mp4", nil)
		h.publisher.On("Publish", mock.Anything, "/ws/input_video_swapped.mp4", "j").
			Return("", &transfer.Error{Op: transfer.OpUpload, URL: "outputs/j.mp4", Err: errors.New("AccessDenied")})

		result := h.svc.Run(context.Background(), Input{JobID: "j", VideoURL: "https://v", AvatarURL: "https://a"})

		assert.Equal(t, ResultFailed, result.Status)
		assert.True(t, strings.HasPrefix(result.Error, "S3 upload failed"), result.Error)
		h.assertWorkspacesRemoved(t)
	})
}

func TestService_Run_UnreachableWebhookKeepsSuccess(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	dead := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	webhook := dead.URL
	dead.Close()

	fetcher := &mockFetcher{}
	fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	replacer := &mockReplacer{}
	replacer.On("ReplaceWholeVideo", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("/ws/out.mp4", nil)
	publisher := &mockPublisher{}
	publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return("https://x/outputs/j.mp4", nil)

	svc := NewService(NewMemoryRepository(), store, fetcher, &mockSegmenter{}, &mockStitcher{},
		replacer, publisher, notify.New(testLogger()), testLogger())

	result := svc.Run(context.Background(), Input{
		JobID:      "j",
		VideoURL:   "https://v",
		AvatarURL:  "https://a",
		WebhookURL: webhook,
	})

	assert.Equal(t, Result{Status: ResultSuccess, OutputURL: "https://x/outputs/j.mp4"}, result)
}

func TestService_Run_DefaultWebhook(t *testing.T) {
	settings := DefaultSettings()
	settings.DefaultWebhookURL = "https://hooks/default"
	h := newHarness(t, WithSettings(settings))

	h.fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	h.replacer.On("ReplaceWholeVideo", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("/ws/out.mp4", nil)
	h.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return("https://x/outputs/j.mp4", nil)
	h.notifier.On("Notify", mock.Anything, "https://hooks/default", mock.Anything).Once()

	result := h.svc.Run(context.Background(), Input{JobID: "j", VideoURL: "https://v", AvatarURL: "https://a"})

	assert.Equal(t, ResultSuccess, result.Status)
	h.notifier.AssertExpectations(t)
}

func TestService_Run_PanicIsContained(t *testing.T) {
	h := newHarness(t)

	h.fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	h.replacer.On("ReplaceWholeVideo", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { panic("nil pointer in model wrapper") })
	h.notifier.On("Notify", mock.Anything, mock.Anything, mock.MatchedBy(func(p notify.Payload) bool {
		return p.Status == notify.StatusFailed
	})).Once()

	var result Result
	require.NotPanics(t, func() {
		result = h.svc.Run(context.Background(), Input{
			JobID:      "j",
			VideoURL:   "https://v",
			AvatarURL:  "https://a",
			WebhookURL: "https://hooks/cb",
		})
	})

	assert.Equal(t, ResultFailed, result.Status)
	assert.Contains(t, result.Error, "nil pointer in model wrapper")
	h.notifier.AssertExpectations(t)
	h.assertWorkspacesRemoved(t)
}

func TestService_Run_InvalidInput(t *testing.T) {
	h := newHarness(t)
	h.notifier.On("Notify", mock.Anything, "https://hooks/cb", mock.Anything).Once()

	result := h.svc.Run(context.Background(), Input{
		JobID:      "j",
		VideoURL:   "https://v",
		WebhookURL: "https://hooks/cb",
	})

	assert.Equal(t, ResultFailed, result.Status)
	assert.True(t, strings.HasPrefix(result.Error, "Invalid job input"), result.Error)
	h.fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything)
	h.notifier.AssertExpectations(t)
}

func TestService_Run_GeneratesJobID(t *testing.T) {
	h := newHarness(t)
	h.fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	h.replacer.On("ReplaceWholeVideo", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("/ws/out.mp4", nil)
	h.publisher.On("Publish", mock.Anything, mock.Anything, mock.MatchedBy(func(id string) bool {
		return strings.HasPrefix(id, "job-")
	})).Return("https://x/out.mp4", nil).Once()

	result := h.svc.Run(context.Background(), Input{VideoURL: "https://v", AvatarURL: "https://a"})

	assert.Equal(t, ResultSuccess, result.Status)
	h.publisher.AssertExpectations(t)

	jobs, err := h.repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.True(t, strings.HasPrefix(jobs[0].ID, "job-"))
}

func TestService_Run_ConcurrentJobsUseDisjointWorkspaces(t *testing.T) {
	h := newHarness(t)

	var mu sync.Mutex
	dirs := make(map[string]bool)
	h.fetcher.On("Fetch", mock.Anything, mock.Anything, baseName("input_video.mp4")).
		Run(func(args mock.Arguments) {
			mu.Lock()
			defer mu.Unlock()
			dirs[filepath.Dir(args.String(2))] = true
		}).Return(nil)
	h.fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	h.replacer.On("ReplaceWholeVideo", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("/ws/out.mp4", nil)
	h.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return("https://x/out.mp4", nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.svc.Run(context.Background(), Input{JobID: "same-id", VideoURL: "https://v", AvatarURL: "https://a"})
		}()
	}
	wg.Wait()

	assert.Len(t, dirs, 5)
	h.assertWorkspacesRemoved(t)
}

func TestService_CreateJob(t *testing.T) {
	h := newHarness(t, WithSettings(Settings{Mode: ModeSegmented, DefaultWebhookURL: "https://hooks/default"}))

	j, err := h.svc.CreateJob(context.Background(), Input{
		JobID:     "rec5",
		VideoURL:  "https://v",
		AvatarURL: "https://a",
		Mode:      ModeDirect,
	})
	require.NoError(t, err)

	assert.Equal(t, StateCreated, j.GetState())
	assert.Equal(t, ModeDirect, j.Mode)
	assert.Equal(t, "https://hooks/default", j.WebhookURL)

	found, err := h.svc.GetJob(context.Background(), "rec5")
	require.NoError(t, err)
	assert.Equal(t, "https://v", found.VideoURL)
}

func TestImageExt(t *testing.T) {
	tests := map[string]string{
		"https://cdn/face.JPG":                ".jpg",
		"https://cdn/face.jpeg?sig=abc":       ".jpeg",
		"https://cdn/face.webp":               ".webp",
		"https://cdn/avatar":                  ".png",
		"https://cdn/download.php?file=a.jpg": ".png",
		"::not a url":                         ".png",
	}
	for in, want := range tests {
		assert.Equal(t, want, imageExt(in), in)
	}
}

func TestReportedMessage(t *testing.T) {
	cause := &transfer.Error{Op: transfer.OpDownload, URL: "https://cdn/face.png", Err: transfer.ErrStalled}

	download := failedBare(StateDownloading, "Failed to download avatar", cause)
	assert.Equal(t, "Failed to download avatar", reportedMessage(download))
	assert.Contains(t, download.Error(), "https://cdn/face.png")
	assert.ErrorIs(t, download, transfer.ErrStalled)

	stitch := failed(StateStitching, "Video stitching failed", errors.New("exit status 1"))
	assert.Equal(t, "Video stitching failed: exit status 1", reportedMessage(stitch))

	assert.Equal(t, "boom", reportedMessage(errors.New("boom")))
}
