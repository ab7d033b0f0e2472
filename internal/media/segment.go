package media

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Segment names in assembly order.
const (
	SegmentSwap1     = "swap_1"
	SegmentOriginal1 = "original_1"
	SegmentSwap2     = "swap_2"
	SegmentOriginal2 = "original_2"
)

var (
	// ErrInvalidRange is returned when a time range has end <= start or a negative start.
	ErrInvalidRange = errors.New("media: invalid time range")
	// ErrOverlappingRanges is returned when ranges are not in swap->keep->swap->keep order.
	ErrOverlappingRanges = errors.New("media: time ranges overlap or are out of order")
)

// TimeRange is a [Start, End) span over the source timeline, in seconds.
type TimeRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns End - Start.
func (r TimeRange) Duration() float64 {
	return r.End - r.Start
}

// Validate checks that the range is non-empty and starts at or after zero.
func (r TimeRange) Validate() error {
	if r.Start < 0 || r.End <= r.Start {
		return fmt.Errorf("%w: start=%s end=%s", ErrInvalidRange, formatSeconds(r.Start), formatSeconds(r.End))
	}
	return nil
}

// String renders the range in the "start-end" form accepted by EnvDecode.
func (r TimeRange) String() string {
	return formatSeconds(r.Start) + "-" + formatSeconds(r.End)
}

// EnvDecode parses "start-end" (for example "15-20" or "2.5-7"), which lets
// TimeRange be loaded directly by go-envconfig.
func (r *TimeRange) EnvDecode(val string) error {
	startStr, endStr, ok := strings.Cut(strings.TrimSpace(val), "-")
	if !ok {
		return fmt.Errorf("%w: %q is not in start-end form", ErrInvalidRange, val)
	}
	start, err := strconv.ParseFloat(strings.TrimSpace(startStr), 64)
	if err != nil {
		return fmt.Errorf("%w: start %q: %w", ErrInvalidRange, startStr, err)
	}
	end, err := strconv.ParseFloat(strings.TrimSpace(endStr), 64)
	if err != nil {
		return fmt.Errorf("%w: end %q: %w", ErrInvalidRange, endStr, err)
	}
	r.Start, r.End = start, end
	return nil
}

// SegmentSpec holds the four named ranges a segmented job cuts the source into.
type SegmentSpec struct {
	Swap1     TimeRange `json:"swap_1"`
	Original1 TimeRange `json:"original_1"`
	Swap2     TimeRange `json:"swap_2"`
	Original2 TimeRange `json:"original_2"`
}

// DefaultSegmentSpec returns the 30-second layout the worker has always used.
func DefaultSegmentSpec() SegmentSpec {
	return SegmentSpec{
		Swap1:     TimeRange{Start: 0, End: 5},
		Original1: TimeRange{Start: 5, End: 15},
		Swap2:     TimeRange{Start: 15, End: 20},
		Original2: TimeRange{Start: 20, End: 30},
	}
}

// NamedRange pairs a segment name with its range and whether it is a
// designated face-swap range.
type NamedRange struct {
	Name  string
	Range TimeRange
	Swap  bool
}

// Ranges returns the four ranges in assembly order.
func (s SegmentSpec) Ranges() []NamedRange {
	return []NamedRange{
		{Name: SegmentSwap1, Range: s.Swap1, Swap: true},
		{Name: SegmentOriginal1, Range: s.Original1},
		{Name: SegmentSwap2, Range: s.Swap2, Swap: true},
		{Name: SegmentOriginal2, Range: s.Original2},
	}
}

// Validate checks every range and that they are monotonically non-overlapping.
func (s SegmentSpec) Validate() error {
	var prevEnd float64
	for i, nr := range s.Ranges() {
		if err := nr.Range.Validate(); err != nil {
			return fmt.Errorf("%s: %w", nr.Name, err)
		}
		if i > 0 && nr.Range.Start < prevEnd {
			return fmt.Errorf("%w: %s starts at %s before previous range ends at %s",
				ErrOverlappingRanges, nr.Name, formatSeconds(nr.Range.Start), formatSeconds(prevEnd))
		}
		prevEnd = nr.Range.End
	}
	return nil
}

// TotalDuration is the sum of the four range durations.
func (s SegmentSpec) TotalDuration() float64 {
	var total float64
	for _, nr := range s.Ranges() {
		total += nr.Range.Duration()
	}
	return total
}

// Segment is one extracted piece of the source video.
type Segment struct {
	Name string
	Path string
	// Swap reports whether the segment is one of the designated swap ranges.
	Swap bool
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
