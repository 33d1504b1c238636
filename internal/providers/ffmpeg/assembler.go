// Package ffmpeg renders the edit blueprint into a narrated video with the
// ffmpeg and ffprobe binaries.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"autovideo/internal/domain"
	"autovideo/internal/infra"
	"autovideo/internal/storage"
)

const (
	assembledFile = "assembled_video.mp4"
	fillColor     = "0x0a0a0a"
	minSegment    = 0.1
	imageZoom     = 0.08
	imagePad      = 1.15
)

// Options controls the assembler.
type Options struct {
	FFmpegPath  string
	FFprobePath string
	Files       *storage.FileStore
	Logger      *infra.Logger
}

// Assembler renders one segment per scene, concatenates them and muxes the
// voiceover.
type Assembler struct {
	ffmpegPath  string
	ffprobePath string
	files       *storage.FileStore
	runner      commandRunner
	logger      *infra.Logger
}

// NewAssembler constructs an assembler that shells out to ffmpeg.
func NewAssembler(opts Options) (*Assembler, error) {
	return newAssembler(opts, &execRunner{})
}

func newAssembler(opts Options, runner commandRunner) (*Assembler, error) {
	if opts.Files == nil {
		return nil, errors.New("ffmpeg: file store is required")
	}
	ffmpegPath := strings.TrimSpace(opts.FFmpegPath)
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	ffprobePath := strings.TrimSpace(opts.FFprobePath)
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Assembler{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		files:       opts.Files,
		runner:      runner,
		logger:      logger,
	}, nil
}

// Assemble renders in.Blueprint against the narration at in.AudioPath. The
// picture is padded or cut to the narration length.
func (a *Assembler) Assemble(ctx context.Context, in domain.AssemblyInput) (domain.EditResult, error) {
	bp := in.Blueprint
	if len(bp.Scenes) == 0 {
		return domain.EditResult{}, domain.StageErrorf(domain.CategoryRender, "blueprint has no scenes")
	}
	if bp.Width <= 0 || bp.Height <= 0 {
		bp.Width, bp.Height = bp.VideoFormat.Resolution()
	}
	if bp.FPS <= 0 {
		bp.FPS = domain.DefaultFrameRate
	}
	if in.WithMusic {
		a.logger.Debug().Str("job_id", in.JobID).Msg("ffmpeg: background music requested, no bed configured")
	}

	audioSeconds, err := a.Probe(ctx, in.AudioPath)
	if err != nil {
		return domain.EditResult{}, a.fail(ctx, fmt.Errorf("probe narration: %w", err))
	}

	segDir, err := a.files.Dir(in.JobID + "/segments")
	if err != nil {
		return domain.EditResult{}, domain.NewStageError(domain.CategoryIO, err)
	}

	segments := make([]string, 0, len(bp.Scenes)+1)
	var pictureSeconds float64
	for i, scene := range bp.Scenes {
		out := filepath.Join(segDir, fmt.Sprintf("seg_%03d.mp4", i))
		duration := math.Max(scene.Duration, minSegment)
		if err := a.renderScene(ctx, in.JobID, scene, bp, duration, out); err != nil {
			return domain.EditResult{}, a.fail(ctx, err)
		}
		segments = append(segments, out)
		pictureSeconds += duration
	}
	if gap := audioSeconds - pictureSeconds; gap > minSegment {
		out := filepath.Join(segDir, "seg_pad.mp4")
		if err := a.run(ctx, "render padding", colorArgs(bp, gap, out)); err != nil {
			return domain.EditResult{}, a.fail(ctx, err)
		}
		segments = append(segments, out)
	}

	listPath := filepath.Join(segDir, "concat.txt")
	if err := os.WriteFile(listPath, []byte(concatList(segments)), 0o644); err != nil {
		return domain.EditResult{}, domain.NewStageError(domain.CategoryIO, fmt.Errorf("write concat list: %w", err))
	}
	outPath, err := a.files.Path(in.JobID + "/" + assembledFile)
	if err != nil {
		return domain.EditResult{}, domain.NewStageError(domain.CategoryIO, err)
	}
	if err := a.run(ctx, "mux", muxArgs(listPath, in.AudioPath, audioSeconds, outPath)); err != nil {
		return domain.EditResult{}, a.fail(ctx, err)
	}

	duration, err := a.Probe(ctx, outPath)
	if err != nil {
		a.logger.Warn().Err(err).Str("job_id", in.JobID).Msg("ffmpeg: probe of assembled video failed, using narration length")
		duration = audioSeconds
	}
	a.logger.Info().Str("job_id", in.JobID).Int("segments", len(segments)).Float64("seconds", duration).
		Msg("ffmpeg: video assembled")
	return domain.EditResult{VideoPath: outPath, DurationSeconds: duration}, nil
}

// renderScene tries the primary asset, then each secondary video, then a
// plain colour card.
func (a *Assembler) renderScene(ctx context.Context, jobID string, scene domain.BlueprintScene, bp domain.Blueprint, duration float64, out string) error {
	candidates := make([]*domain.AssetItem, 0, 1+len(scene.SecondaryAssets))
	if scene.PrimaryAsset != nil {
		candidates = append(candidates, scene.PrimaryAsset)
	}
	for i := range scene.SecondaryAssets {
		if scene.SecondaryAssets[i].AssetType == domain.AssetTypeVideo {
			candidates = append(candidates, &scene.SecondaryAssets[i])
		}
	}
	for _, asset := range candidates {
		if _, err := os.Stat(asset.LocalPath); err != nil {
			continue
		}
		var args []string
		if asset.AssetType == domain.AssetTypeImage {
			args = imageArgs(asset.LocalPath, bp, duration, out)
		} else {
			args = videoArgs(asset.LocalPath, bp, duration, out)
		}
		err := a.run(ctx, "render "+scene.SceneID, args)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		a.logger.Warn().Err(err).Str("job_id", jobID).Str("scene_id", scene.SceneID).Str("asset", asset.LocalPath).
			Msg("ffmpeg: asset render failed, trying next")
	}
	return a.run(ctx, "render "+scene.SceneID, colorArgs(bp, duration, out))
}

// Probe returns the container duration of path in seconds.
func (a *Assembler) Probe(ctx context.Context, path string) (float64, error) {
	args := []string{"-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", path}
	res, err := a.runner.Run(ctx, a.ffprobePath, args...)
	if err != nil {
		return 0, &CommandError{Step: "probe", Log: CommandLog{Command: a.ffprobePath, Args: args, ExitCode: res.ExitCode, Stderr: res.Stderr}, Err: err}
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(res.Stdout), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", strings.TrimSpace(res.Stdout), err)
	}
	return seconds, nil
}

func (a *Assembler) run(ctx context.Context, step string, args []string) error {
	a.logger.Debug().Str("step", step).Str("cmd", a.ffmpegPath+" "+strings.Join(args, " ")).Msg("ffmpeg: run")
	res, err := a.runner.Run(ctx, a.ffmpegPath, args...)
	if err != nil {
		return &CommandError{Step: step, Log: CommandLog{Command: a.ffmpegPath, Args: args, ExitCode: res.ExitCode, Stderr: res.Stderr}, Err: err}
	}
	return nil
}

// fail keeps context errors intact so they are reported as timeouts or
// cancellations, and tags everything else as a render failure.
func (a *Assembler) fail(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%v: %w", err, ctxErr)
	}
	return domain.NewStageError(domain.CategoryRender, err)
}

func fitFilter(w, h, fps int) string {
	return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,fps=%d,setsar=1", w, h, w, h, fps)
}

func encodeArgs(duration float64, out string) []string {
	return []string{"-t", seconds(duration), "-an", "-c:v", "libx264", "-preset", "veryfast", "-pix_fmt", "yuv420p", out}
}

func videoArgs(src string, bp domain.Blueprint, duration float64, out string) []string {
	args := []string{"-y", "-stream_loop", "-1", "-i", src, "-vf", fitFilter(bp.Width, bp.Height, bp.FPS)}
	return append(args, encodeArgs(duration, out)...)
}

func imageArgs(src string, bp domain.Blueprint, duration float64, out string) []string {
	frames := int(math.Ceil(duration * float64(bp.FPS)))
	padW := even(float64(bp.Width) * imagePad)
	padH := even(float64(bp.Height) * imagePad)
	filter := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,zoompan=z='1+%.2f*on/%d':x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':d=1:s=%dx%d:fps=%d,setsar=1",
		padW, padH, padW, padH, imageZoom, max(frames, 1), bp.Width, bp.Height, bp.FPS,
	)
	args := []string{"-y", "-loop", "1", "-framerate", strconv.Itoa(bp.FPS), "-i", src, "-vf", filter, "-tune", "stillimage"}
	return append(args, encodeArgs(duration, out)...)
}

func colorArgs(bp domain.Blueprint, duration float64, out string) []string {
	src := fmt.Sprintf("color=c=%s:s=%dx%d:r=%d", fillColor, bp.Width, bp.Height, bp.FPS)
	args := []string{"-y", "-f", "lavfi", "-i", src}
	return append(args, encodeArgs(duration, out)...)
}

func muxArgs(listPath, audioPath string, duration float64, out string) []string {
	return []string{
		"-y", "-f", "concat", "-safe", "0", "-i", listPath, "-i", audioPath,
		"-map", "0:v", "-map", "1:a", "-c:v", "copy", "-c:a", "aac", "-b:a", "192k",
		"-t", seconds(duration), "-movflags", "+faststart", out,
	}
}

func concatList(paths []string) string {
	var sb strings.Builder
	for _, p := range paths {
		fmt.Fprintf(&sb, "file '%s'\n", strings.ReplaceAll(p, "'", `'\''`))
	}
	return sb.String()
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func even(v float64) int {
	n := int(math.Round(v))
	return n + n%2
}
