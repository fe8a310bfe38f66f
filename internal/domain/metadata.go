package domain

// FormatOption is a single selectable quality variant of a video or audio
// stream. The ID is opaque and unique within its containing list.
type FormatOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// FormatList is an ordered list of format options. Ordering is
// resolver-determined; the first entry is the default selection.
type FormatList []FormatOption

// Lookup finds a format by ID.
func (l FormatList) Lookup(id string) (FormatOption, bool) {
	for _, f := range l {
		if f.ID == id {
			return f, true
		}
	}
	return FormatOption{}, false
}

// Default returns the first entry of the list.
func (l FormatList) Default() (FormatOption, bool) {
	if len(l) == 0 {
		return FormatOption{}, false
	}
	return l[0], true
}

// Formats groups the selectable video-only and audio-only variants of a
// resolved video.
type Formats struct {
	Video FormatList `json:"video"`
	Audio FormatList `json:"audio"`
}

// VideoMetadata is the immutable result of a successful URL resolution.
// It is produced once per resolution and discarded wholesale on reset.
type VideoMetadata struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	ThumbnailURL string  `json:"thumbnail"`
	Formats      Formats `json:"formats"`
}

// HasFormats reports whether at least one downloadable variant exists.
// A resolution with zero usable formats is treated as a failure.
func (m *VideoMetadata) HasFormats() bool {
	return len(m.Formats.Video) > 0 || len(m.Formats.Audio) > 0
}
