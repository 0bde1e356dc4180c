// Package logger provides the logging service: a per-severity façade over a
// logrus logger whose output is fanned out to independent sinks.
package logger

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Sink file names.
const (
	GeneralFile = "app"
	ErrorFile   = "app-error"
)

// Options configures the logging service.
type Options struct {
	Level  string
	Format string

	// Dir is the directory rotated files are written to. Empty disables the
	// file sinks.
	Dir      string
	MaxFiles int

	// Console defaults to os.Stdout.
	Console io.Writer
	Now     func() time.Time

	OnRotate func(sink, previous, current string)
}

// Service is the logging façade used by the application.
type Service struct {
	log   *logrus.Logger
	sinks []Sink
}

// New creates the logging service with a console sink and, when a directory
// is configured, a general and an error-only rotating file sink.
func New(opts Options) (*Service, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	sinks := []Sink{NewConsoleSink(console, opts.Format, level)}

	if opts.Dir != "" {
		general, err := NewFileSink(FileSinkOptions{
			Name:     GeneralFile,
			Dir:      opts.Dir,
			MaxFiles: opts.MaxFiles,
			Levels:   LevelsFrom(level),
			Now:      opts.Now,
			OnRotate: opts.OnRotate,
		})
		if err != nil {
			return nil, err
		}

		errorOnly, err := NewFileSink(FileSinkOptions{
			Name:     ErrorFile,
			Dir:      opts.Dir,
			MaxFiles: opts.MaxFiles,
			Levels:   errorLevels,
			Now:      opts.Now,
			OnRotate: opts.OnRotate,
		})
		if err != nil {
			_ = general.Close()

			return nil, err
		}

		sinks = append(sinks, general, errorOnly)
	}

	return NewWithSinks(level, sinks...), nil
}

// NewWithSinks creates the logging service over the given sinks.
func NewWithSinks(level logrus.Level, sinks ...Sink) *Service {
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(level)

	for _, sink := range sinks {
		log.AddHook(sink)
	}

	return &Service{
		log:   log,
		sinks: sinks,
	}
}

// Logger returns the underlying logger for components that take a
// logrus.FieldLogger.
func (s *Service) Logger() *logrus.Logger {
	return s.log
}

// Sinks returns the attached sinks.
func (s *Service) Sinks() []Sink {
	return s.sinks
}

// Verbose logs at the most detailed level.
func (s *Service) Verbose(msg string, context ...string) {
	s.entry(context).Trace(msg)
}

// Debug logs a debug message.
func (s *Service) Debug(msg string, context ...string) {
	s.entry(context).Debug(msg)
}

// Info logs an informational message.
func (s *Service) Info(msg string, context ...string) {
	s.entry(context).Info(msg)
}

// Warn logs a warning.
func (s *Service) Warn(msg string, context ...string) {
	s.entry(context).Warn(msg)
}

// Error logs an error. Either a stack trace or a context string may be
// given; both end up in the "context" field, with the stack also kept under
// "stack" when both are present.
func (s *Service) Error(msg, stack, context string) {
	fields := logrus.Fields{}

	switch {
	case context != "" && stack != "":
		fields["context"] = context
		fields["stack"] = stack
	case context != "":
		fields["context"] = context
	case stack != "":
		fields["context"] = stack
	}

	s.log.WithFields(fields).Error(msg)
}

// Close closes every sink.
func (s *Service) Close() error {
	var errs []error

	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s sink: %w", sink.Name(), err))
		}
	}

	return errors.Join(errs...)
}

func (s *Service) entry(context []string) *logrus.Entry {
	entry := logrus.NewEntry(s.log)

	if len(context) > 0 && context[0] != "" {
		entry = entry.WithField("context", context[0])
	}

	return entry
}
