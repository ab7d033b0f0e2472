package transfer

import (
	"context"

	"github.com/maauso/faceswap-api/internal/storage"
)

// ContentTypeMP4 is the content type of published artifacts.
const ContentTypeMP4 = "video/mp4"

// Publisher uploads final artifacts under a key derived from the job id.
type Publisher struct {
	store  storage.Storage
	prefix string
}

// NewPublisher creates a Publisher writing under prefix (e.g. "outputs/").
func NewPublisher(store storage.Storage, prefix string) *Publisher {
	return &Publisher{store: store, prefix: prefix}
}

// Key returns the object key of the job's artifact.
func (p *Publisher) Key(jobID string) string {
	return p.prefix + jobID + ".mp4"
}

// Publish uploads localPath as a publicly readable video and returns its URL.
// Failures are reported as an *Error with Op upload.
func (p *Publisher) Publish(ctx context.Context, localPath, jobID string) (string, error) {
	key := p.Key(jobID)
	url, err := p.store.Publish(ctx, storage.PutInput{
		Key:         key,
		LocalPath:   localPath,
		ContentType: ContentTypeMP4,
		PublicRead:  true,
	})
	if err != nil {
		return "", &Error{Op: OpUpload, URL: key, Err: err}
	}
	return url, nil
}
