// Package media provides video segmentation and concatenation on top of the
// ffmpeg CLI. Both operations use stream copy, never re-encoding.
package media

import "context"

// Segmenter cuts a source video into the four ranges of a SegmentSpec.
type Segmenter interface {
	// Split extracts every range of spec from videoPath, writing the pieces
	// next to the source. It returns exactly four segments in assembly order
	// (swap_1, original_1, swap_2, original_2) or an error; a partial list is
	// never returned.
	Split(ctx context.Context, videoPath string, spec SegmentSpec) ([]Segment, error)
}

// Stitcher joins ordered segments into a single file.
type Stitcher interface {
	// Concat losslessly concatenates videoPaths, in order, into output.
	Concat(ctx context.Context, videoPaths []string, output string) error
}
