package domain

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"
)

// VideoFormat is the output aspect ratio.
type VideoFormat string

const (
	VideoFormatLandscape VideoFormat = "16:9"
	VideoFormatPortrait  VideoFormat = "9:16"
)

// VideoType selects the editorial template of a video.
type VideoType string

const (
	VideoTypeDocumentary VideoType = "documentary"
	VideoTypeTop10       VideoType = "top10"
	VideoTypeMystery     VideoType = "mystery"
	VideoTypeNews        VideoType = "news"
	VideoTypeEducational VideoType = "educational"
)

const (
	// DefaultVoiceID is the narration voice used when the request omits one.
	DefaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
	// DefaultTargetDuration is the target length in minutes.
	DefaultTargetDuration = 10
	// MaxTargetDuration caps the target length in minutes.
	MaxTargetDuration = 60
	// DefaultLanguage is applied when neither the request nor the client locale name one.
	DefaultLanguage = "en"

	maxTitleLength  = 200
	minPromptLength = 10
)

var allowedVideoTypes = map[VideoType]struct{}{
	VideoTypeDocumentary: {},
	VideoTypeTop10:       {},
	VideoTypeMystery:     {},
	VideoTypeNews:        {},
	VideoTypeEducational: {},
}

// GenerateRequest is the immutable configuration a job is created from.
type GenerateRequest struct {
	Title              string      `json:"title"`
	Prompt             string      `json:"prompt"`
	VoiceID            string      `json:"voice_id"`
	TargetDuration     int         `json:"target_duration"`
	VideoFormat        VideoFormat `json:"video_format"`
	VideoType          VideoType   `json:"video_type"`
	Language           string      `json:"language"`
	AddBackgroundMusic bool        `json:"add_background_music"`
	AddCaptions        bool        `json:"add_captions"`
}

// Kind implements Artifact.
func (GenerateRequest) Kind() ArtifactKind { return ArtifactRequest }

// Clone returns a copy of the request.
func (r GenerateRequest) Clone() GenerateRequest { return r }

// Normalize applies server defaults. preferredLanguage is the client locale,
// used only when the request names no language.
func (r *GenerateRequest) Normalize(preferredLanguage string) {
	if r == nil {
		return
	}
	r.Title = strings.TrimSpace(r.Title)
	r.Prompt = strings.TrimSpace(r.Prompt)
	r.VoiceID = strings.TrimSpace(r.VoiceID)
	if r.VoiceID == "" {
		r.VoiceID = DefaultVoiceID
	}
	if r.TargetDuration == 0 {
		r.TargetDuration = DefaultTargetDuration
	}
	if r.VideoFormat == "" {
		r.VideoFormat = VideoFormatLandscape
	}
	if r.VideoType == "" {
		r.VideoType = VideoTypeDocumentary
	}
	r.VideoType = VideoType(strings.ToLower(string(r.VideoType)))
	r.Language = strings.TrimSpace(r.Language)
	if r.Language == "" {
		r.Language = strings.TrimSpace(preferredLanguage)
	}
	if r.Language == "" {
		r.Language = DefaultLanguage
	}
	if tag, err := language.Parse(r.Language); err == nil {
		r.Language = tag.String()
	}
}

// Validate ensures the request satisfies the generation contract.
func (r GenerateRequest) Validate() error {
	titleLen := utf8.RuneCountInString(strings.TrimSpace(r.Title))
	if titleLen == 0 {
		return ValidationError("title", "is required")
	}
	if titleLen > maxTitleLength {
		return ValidationError("title", "must be at most 200 characters")
	}
	if utf8.RuneCountInString(strings.TrimSpace(r.Prompt)) < minPromptLength {
		return ValidationError("prompt", "must be at least 10 characters")
	}
	if r.TargetDuration < 1 || r.TargetDuration > MaxTargetDuration {
		return ValidationError("target_duration", "must be between 1 and 60 minutes")
	}
	switch r.VideoFormat {
	case VideoFormatLandscape, VideoFormatPortrait:
	default:
		return ValidationError("video_format", "must be one of 16:9, 9:16")
	}
	if _, ok := allowedVideoTypes[r.VideoType]; !ok {
		return ValidationError("video_type", "must be one of documentary, top10, mystery, news, educational")
	}
	if _, err := language.Parse(r.Language); err != nil {
		return ValidationError("language", "must be a valid BCP 47 tag")
	}
	return nil
}

// Resolution returns the pixel size of the output format.
func (f VideoFormat) Resolution() (int, int) {
	if f == VideoFormatPortrait {
		return 1080, 1920
	}
	return 1920, 1080
}
