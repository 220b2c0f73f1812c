package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	log "github.com/sirupsen/logrus"
)

// Setup sets the log level and output. With a non-empty file the log is
// written to file.YYYYMMDD, rotated daily and kept for a week, with file
// itself linked to the current day.
func Setup(level, file string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	out, err := Writer(file)
	if err != nil {
		return err
	}
	log.SetOutput(out)
	return nil
}

// Writer returns stdout for an empty file name and a daily rotating file
// writer otherwise.
func Writer(file string) (io.Writer, error) {
	if file == "" {
		return os.Stdout, nil
	}
	rl, err := rotatelogs.New(
		file+".%Y%m%d",
		rotatelogs.WithLinkName(file),
		rotatelogs.WithRotationTime(24*time.Hour),
		rotatelogs.WithMaxAge(7*24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", file, err)
	}
	return rl, nil
}
