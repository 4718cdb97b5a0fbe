package engine

import (
	"context"
	"fmt"
	"mime"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/Snider/Slicer/pkg/logger"
)

const (
	// WorkDir is the engine's working directory; outputs land here.
	WorkDir = "/"
	// MountDir is where the input is bound into the engine filesystem.
	MountDir = "/input"
	// defaultExt is used when the input name has no usable extension.
	defaultExt = ".mp4"
)

var (
	safeExt    = regexp.MustCompile(`^\.[a-z0-9]{1,5}$`)
	outputName = regexp.MustCompile(`^output_\d{3,}\.[a-z0-9]{1,5}$`)
)

// Segment is one produced clip. Ownership of Data passes to the caller.
type Segment struct {
	Name     string
	Data     []byte
	MIMEType string
}

// Job is one in-flight segmentation request.
type Job struct {
	Input    Input
	Duration int
}

// ProgressFunc receives completion percentages at fixed checkpoints.
type ProgressFunc func(percent int)

// InputName returns the fixed ASCII name an input is staged under. The
// extension is kept so the output container matches the input's.
func InputName(original string) string {
	return "input" + Ext(original)
}

// Ext returns the lower-cased extension of name, or ".mp4" when it has
// none or it is not plain ASCII alphanumerics.
func Ext(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if !safeExt.MatchString(ext) {
		return defaultExt
	}
	return ext
}

// OutputPattern is the segment muxer's output filename template.
func OutputPattern(ext string) string {
	return "output_%03d" + ext
}

// IsOutputName reports whether name was produced by OutputPattern.
func IsOutputName(name string) bool {
	return outputName.MatchString(name)
}

// SegmentArgs builds the stream-copy segmentation command line for input
// (relative to the working directory).
func SegmentArgs(input string, seconds int, ext string) []string {
	return []string{
		"-i", input,
		"-c", "copy",
		"-map", "0",
		"-f", "segment",
		"-segment_time", strconv.Itoa(seconds),
		"-reset_timestamps", "1",
		OutputPattern(ext),
	}
}

// MIMEType returns the container MIME type for a segment extension.
func MIMEType(ext string) string {
	switch ext {
	case ".mp4":
		return "video/mp4"
	case ".m4v":
		return "video/x-m4v"
	case ".mov":
		return "video/quicktime"
	case ".mkv":
		return "video/x-matroska"
	case ".webm":
		return "video/webm"
	case ".ts":
		return "video/mp2t"
	case ".avi":
		return "video/x-msvideo"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// Segment splits in into segments of the given length with a stream copy,
// bootstrapping the session first if needed. The input is mounted, not
// copied, into the engine; every produced segment is read and then deleted
// from engine memory before the next one is read. Progress is reported at
// 10 (command issued), 80 (command returned) and 100 (done); 100 is never
// reported for a failed job.
//
// Only one job may run per session; a concurrent call fails with ErrBusy.
func (s *Session) Segment(ctx context.Context, in Input, seconds int, onProgress ProgressFunc) ([]Segment, error) {
	if in == nil {
		return nil, &SegmentError{Op: "validate", Err: fmt.Errorf("no input file")}
	}
	if seconds < 1 {
		return nil, &SegmentError{Op: "validate", Err: fmt.Errorf("segment duration must be at least 1 second, got %d", seconds)}
	}
	if !s.busy.CompareAndSwap(false, true) {
		return nil, &SegmentError{Op: "busy", Err: ErrBusy}
	}
	defer s.busy.Store(false)

	if err := s.Bootstrap(ctx); err != nil {
		return nil, err
	}

	report := func(percent int) {
		if onProgress != nil {
			onProgress(percent)
		}
	}

	ext := Ext(in.Name())
	job := Job{Input: Rename(in, InputName(in.Name())), Duration: seconds}
	s.log.Info("segmenting file", "file", in.Name(), "bytes", in.Size(), "seconds", seconds)

	segments, err := s.run(ctx, job, ext, report)
	if err != nil {
		s.log.Error("segmentation failed", "file", in.Name(), "err", err)
		return nil, err
	}

	report(100)
	s.log.Log(ctx, logger.LevelSuccess, "segmentation complete", "file", in.Name(), "segments", len(segments))
	return segments, nil
}

func (s *Session) run(ctx context.Context, job Job, ext string, report func(int)) ([]Segment, error) {
	var created, mounted bool
	fail := func(op string, err error) ([]Segment, error) {
		s.unmount(ctx, created, mounted, true)
		s.purge(ctx)
		return nil, &SegmentError{Op: op, Err: err}
	}

	if err := s.engine.CreateDir(ctx, MountDir); err != nil {
		return fail("mkdir", err)
	}
	created = true
	if err := s.engine.Mount(ctx, MountDir, job.Input); err != nil {
		return fail("mount", err)
	}
	mounted = true

	input := strings.TrimPrefix(path.Join(MountDir, job.Input.Name()), "/")
	report(10)
	if err := s.engine.Exec(ctx, SegmentArgs(input, job.Duration, ext)); err != nil {
		return fail("exec", err)
	}
	report(80)

	s.unmount(ctx, created, mounted, false)
	created, mounted = false, false

	entries, err := s.engine.ListDir(ctx, WorkDir)
	if err != nil {
		return fail("list", err)
	}
	var segments []Segment
	for _, entry := range entries {
		if entry.IsDir || !IsOutputName(entry.Name) {
			continue
		}
		name := path.Join(WorkDir, entry.Name)
		data, err := s.engine.ReadFile(ctx, name)
		if err != nil {
			return fail("read", err)
		}
		segments = append(segments, Segment{
			Name:     entry.Name,
			Data:     data,
			MIMEType: MIMEType(path.Ext(entry.Name)),
		})
		if err := s.engine.DeleteFile(ctx, name); err != nil {
			return fail("delete", err)
		}
	}
	return segments, nil
}

// unmount releases the mount point. Errors are logged, never returned; on
// the failure path they are only logged at debug level so the original
// cause stays the one reported.
func (s *Session) unmount(ctx context.Context, created, mounted, failing bool) {
	warn := s.log.Warn
	if failing {
		warn = s.log.Debug
	}
	if mounted {
		if err := s.engine.Unmount(ctx, MountDir); err != nil {
			warn("could not unmount input", "dir", MountDir, "err", err)
		}
	}
	if created {
		if err := s.engine.RemoveDir(ctx, MountDir); err != nil {
			warn("could not remove mount point", "dir", MountDir, "err", err)
		}
	}
}

// purge deletes numbered outputs a failed job left in engine memory.
func (s *Session) purge(ctx context.Context) {
	entries, err := s.engine.ListDir(ctx, WorkDir)
	if err != nil {
		s.log.Debug("could not list working directory for cleanup", "err", err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir || !IsOutputName(entry.Name) {
			continue
		}
		if err := s.engine.DeleteFile(ctx, path.Join(WorkDir, entry.Name)); err != nil {
			s.log.Debug("could not delete leftover segment", "name", entry.Name, "err", err)
		}
	}
}
