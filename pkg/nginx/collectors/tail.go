package collectors

import (
	"io"
	"os"
	"strings"

	"github.com/core-tools/hsu-nginx-agent/pkg/errors"
)

// logTailer reads lines appended to a file since the previous read. Opening
// starts at the current end of file: only lines written after construction
// are observed.
type logTailer struct {
	filename string
	file     *os.File
	offset   int64
}

func newLogTailer(filename string) (*logTailer, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, classifyFileError(filename, err)
	}

	offset, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		file.Close()
		return nil, errors.NewIOError("failed to seek log file", err).WithContext("filename", filename)
	}

	return &logTailer{
		filename: filename,
		file:     file,
		offset:   offset,
	}, nil
}

// ReadNewLines returns the complete lines appended since the last call.
// Truncation or rotation resets the tail to the start of the new file.
func (t *logTailer) ReadNewLines() ([]string, error) {
	info, err := os.Stat(t.filename)
	if err != nil {
		return nil, classifyFileError(t.filename, err)
	}

	if info.Size() < t.offset {
		// rotated or truncated
		file, err := os.Open(t.filename)
		if err != nil {
			return nil, classifyFileError(t.filename, err)
		}
		t.file.Close()
		t.file = file
		t.offset = 0
	}

	if _, err := t.file.Seek(t.offset, io.SeekStart); err != nil {
		return nil, errors.NewIOError("failed to seek log file", err).WithContext("filename", t.filename)
	}

	data, err := io.ReadAll(t.file)
	if err != nil {
		return nil, errors.NewIOError("failed to read log file", err).WithContext("filename", t.filename)
	}
	if len(data) == 0 {
		return nil, nil
	}

	text := string(data)
	complete := text
	if !strings.HasSuffix(text, "\n") {
		// hold back the trailing partial line until it is terminated
		if idx := strings.LastIndexByte(text, '\n'); idx >= 0 {
			complete = text[:idx+1]
		} else {
			complete = ""
		}
	}
	t.offset += int64(len(complete))

	if complete == "" {
		return nil, nil
	}
	lines := strings.Split(strings.TrimSuffix(complete, "\n"), "\n")
	return lines, nil
}

func (t *logTailer) Close() error {
	return t.file.Close()
}

// classifyFileError maps file open/stat failures onto the domain error types
// collector assembly uses for its containment decision
func classifyFileError(filename string, err error) error {
	if os.IsNotExist(err) {
		return errors.NewIOError("log file does not exist", err).WithContext("filename", filename)
	}
	if os.IsPermission(err) {
		return errors.NewPermissionError("no permission to read log file", err).WithContext("filename", filename)
	}
	return errors.NewIOError("failed to open log file", err).WithContext("filename", filename)
}
