package logger

import (
	"io"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewFileSink returns a writer that appends to a size-rotated log file and
// mirrors every line to stderr.
func NewFileSink(filename string, maxSizeMB, maxAgeDays int) io.WriteCloser {
	return &fileSink{
		rotator: &lumberjack.Logger{
			Filename: filename,
			MaxSize:  maxSizeMB, // megabytes
			MaxAge:   maxAgeDays,
		},
	}
}

type fileSink struct {
	rotator *lumberjack.Logger
}

func (s *fileSink) Write(p []byte) (int, error) {
	_, _ = os.Stderr.Write(p)
	return s.rotator.Write(p)
}

func (s *fileSink) Close() error {
	return s.rotator.Close()
}
