package api

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ethpandaops/bootstrapoor/pkg/config"
)

// maxFieldValue bounds the size of a single non-file form value.
const maxFieldValue = 1 << 20

var (
	// ErrTooManyFiles is returned when a form carries more files than allowed.
	ErrTooManyFiles = errors.New("too many files")

	// ErrTooManyFields is returned when a form carries more fields than allowed.
	ErrTooManyFields = errors.New("too many fields")

	// ErrFileTooLarge is returned when a single file exceeds the size limit.
	ErrFileTooLarge = errors.New("file too large")
)

// UploadLimitError reports which limit a multipart form exceeded.
type UploadLimitError struct {
	Err      error
	Limit    int64
	Filename string
}

func (e *UploadLimitError) Error() string {
	if e.Filename != "" {
		return fmt.Sprintf("%v: %s (limit %d)", e.Err, e.Filename, e.Limit)
	}

	return fmt.Sprintf("%v (limit %d)", e.Err, e.Limit)
}

func (e *UploadLimitError) Unwrap() error {
	return e.Err
}

// UploadedFile describes a file part that was received.
type UploadedFile struct {
	Field       string `json:"field" example:"avatar"`
	Filename    string `json:"filename" example:"avatar.png"`
	ContentType string `json:"contentType" example:"image/png"`
	Size        int64  `json:"size" example:"1024"`
	SHA256      string `json:"sha256" example:"9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"`
}

// UploadResult describes a received multipart form.
type UploadResult struct {
	Fields map[string]string `json:"fields"`
	Files  []UploadedFile    `json:"files"`
}

// ReadMultipart streams the multipart body of r, enforcing limits as parts
// arrive. File contents are hashed and discarded, never buffered.
func ReadMultipart(r *http.Request, limits config.UploadConfig) (*UploadResult, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}

	result := &UploadResult{
		Fields: make(map[string]string, limits.MaxFields),
		Files:  make([]UploadedFile, 0, limits.MaxFiles),
	}

	fields := 0

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("reading multipart: %w", err)
		}

		if part.FileName() == "" {
			fields++
			if fields > limits.MaxFields {
				_ = part.Close()

				return nil, &UploadLimitError{Err: ErrTooManyFields, Limit: int64(limits.MaxFields)}
			}

			value, err := io.ReadAll(io.LimitReader(part, maxFieldValue))
			_ = part.Close()

			if err != nil {
				return nil, fmt.Errorf("reading field %s: %w", part.FormName(), err)
			}

			result.Fields[part.FormName()] = string(value)

			continue
		}

		if len(result.Files) >= limits.MaxFiles {
			_ = part.Close()

			return nil, &UploadLimitError{Err: ErrTooManyFiles, Limit: int64(limits.MaxFiles)}
		}

		file, err := readFilePart(part.FormName(), part.FileName(), part.Header.Get("Content-Type"), part, limits.MaxFileSize)
		_ = part.Close()

		if err != nil {
			return nil, err
		}

		result.Files = append(result.Files, file)
	}

	return result, nil
}

func readFilePart(field, filename, contentType string, r io.Reader, maxSize int64) (UploadedFile, error) {
	hash := sha256.New()

	n, err := io.Copy(hash, io.LimitReader(r, maxSize+1))
	if err != nil {
		return UploadedFile{}, fmt.Errorf("reading file %s: %w", filename, err)
	}

	if n > maxSize {
		return UploadedFile{}, &UploadLimitError{Err: ErrFileTooLarge, Limit: maxSize, Filename: filename}
	}

	return UploadedFile{
		Field:       field,
		Filename:    filename,
		ContentType: contentType,
		Size:        n,
		SHA256:      hex.EncodeToString(hash.Sum(nil)),
	}, nil
}
