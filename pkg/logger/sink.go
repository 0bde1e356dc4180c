package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/sirupsen/logrus"
)

// Sink is a destination for log records. Sinks are attached to the root
// logger as hooks, so every entry reaches each sink whose Levels accept it.
type Sink interface {
	logrus.Hook
	Name() string
	Close() error
}

// ConsoleSink writes formatted entries to an interactive stream.
type ConsoleSink struct {
	mu        sync.Mutex
	out       io.Writer
	formatter logrus.Formatter
	levels    []logrus.Level
}

var _ Sink = (*ConsoleSink)(nil)

// NewConsoleSink creates a console sink. Format is "text" or "json".
func NewConsoleSink(out io.Writer, format string, minimum logrus.Level) *ConsoleSink {
	var formatter logrus.Formatter = &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.DateTime,
	}

	if format == "json" {
		formatter = &logrus.JSONFormatter{}
	}

	return &ConsoleSink{
		out:       out,
		formatter: formatter,
		levels:    LevelsFrom(minimum),
	}
}

// Name returns the sink name.
func (s *ConsoleSink) Name() string {
	return "console"
}

// Levels returns the levels this sink accepts.
func (s *ConsoleSink) Levels() []logrus.Level {
	return s.levels
}

// Fire writes the entry to the console stream.
func (s *ConsoleSink) Fire(entry *logrus.Entry) error {
	line, err := s.formatter.Format(entry)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.out.Write(line)

	return err
}

// Close is a no-op; the console stream is owned by the caller.
func (s *ConsoleSink) Close() error {
	return nil
}

// FileSinkOptions configures a rotating file sink.
type FileSinkOptions struct {
	// Name is the file prefix, e.g. "app" for logs/app.2024-05-01.log.
	Name string
	Dir  string

	// MaxFiles is the number of files kept. Zero keeps files for seven days.
	MaxFiles int
	Levels   []logrus.Level

	// Now overrides the clock used to name files.
	Now func() time.Time

	// OnRotate is called when the sink moves on from one file to the next.
	// Opening the first file is not a rotation.
	OnRotate func(sink, previous, current string)
}

// FileSink writes JSON lines to one file per calendar day and keeps an
// audit manifest of the files it has written under <dir>/.audit.
type FileSink struct {
	name      string
	mu        sync.Mutex
	writer    *rotatelogs.RotateLogs
	formatter logrus.Formatter
	levels    []logrus.Level
	audit     *Audit
	now       func() time.Time
	current   string
	onRotate  func(sink, previous, current string)
}

var _ Sink = (*FileSink)(nil)

type clockFunc func() time.Time

func (f clockFunc) Now() time.Time {
	return f()
}

// NewFileSink creates a rotating file sink.
func NewFileSink(opts FileSinkOptions) (*FileSink, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("file sink name is required")
	}

	if opts.MaxFiles < 0 {
		return nil, fmt.Errorf("file sink %s: max files must not be negative", opts.Name)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	rotateOpts := []rotatelogs.Option{
		rotatelogs.WithClock(clockFunc(now)),
		rotatelogs.WithRotationTime(24 * time.Hour),
	}

	if opts.MaxFiles > 0 {
		rotateOpts = append(rotateOpts, rotatelogs.WithRotationCount(uint(opts.MaxFiles)))
	}

	pattern := filepath.Join(opts.Dir, opts.Name+".%Y-%m-%d.log")

	writer, err := rotatelogs.New(pattern, rotateOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating rotating writer for %s: %w", opts.Name, err)
	}

	return &FileSink{
		name:   opts.Name,
		writer: writer,
		formatter: &logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		},
		levels:   opts.Levels,
		audit:    NewAudit(filepath.Join(opts.Dir, ".audit", opts.Name+".json"), opts.MaxFiles),
		now:      now,
		onRotate: opts.OnRotate,
	}, nil
}

// Name returns the sink name.
func (s *FileSink) Name() string {
	return s.name
}

// Levels returns the levels this sink accepts.
func (s *FileSink) Levels() []logrus.Level {
	return s.levels
}

// Audit returns the sink's audit manifest.
func (s *FileSink) Audit() *Audit {
	return s.audit
}

// Fire writes the entry as one JSON line.
func (s *FileSink) Fire(entry *logrus.Entry) error {
	line, err := s.formatter.Format(entry)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.writer.Write(line); err != nil {
		return err
	}

	if file := s.writer.CurrentFileName(); file != s.current {
		previous := s.current
		s.current = file

		if err := s.audit.Record(file, s.now()); err != nil {
			fmt.Fprintf(os.Stderr, "logger: %s: %v\n", s.name, err)
		}

		if s.onRotate != nil && previous != "" {
			s.onRotate(s.name, previous, file)
		}
	}

	return nil
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writer.Close()
}
