package common

import (
	"fmt"
	"os"
	"path/filepath"

	"callscreen/internal/errors"
	"callscreen/internal/types"
	"callscreen/internal/utils"
)

// FileProcessor reads résumés from disk and writes command output.
type FileProcessor struct {
	logger  *errors.Logger
	maxSize int64
}

// NewFileProcessor creates a file processor. maxSize bounds input files;
// 0 means unlimited.
func NewFileProcessor(logger *errors.Logger, maxSize int64) *FileProcessor {
	if logger == nil {
		logger = errors.Discard()
	}
	return &FileProcessor{logger: logger, maxSize: maxSize}
}

// ReadDocument loads a résumé. Only PDF content is accepted.
func (fp *FileProcessor) ReadDocument(filename string) (types.Document, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return types.Document{}, errors.NewIOError(errors.ErrCodeFileNotFound,
			fmt.Sprintf("File not found: %s", filename), err)
	}
	if err := utils.ValidateInputFile(filename, fp.maxSize); err != nil {
		return types.Document{}, errors.NewValidationError("INVALID_INPUT_FILE",
			fmt.Sprintf("Invalid file %s", filename), err)
	}

	isPDF, err := utils.IsPDFFile(filename)
	if err != nil {
		return types.Document{}, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read file: %s", filename), err)
	}
	if !isPDF {
		return types.Document{}, errors.NewValidationError(errors.ErrCodeUnsupportedDoc,
			fmt.Sprintf("%s is not a PDF document", filename), nil)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return types.Document{}, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Failed to read file content: %s", filename), err)
	}
	fp.logger.Debug("Résumé loaded", "filename", filename, "size", utils.FormatFileSize(int64(len(data))))

	return types.Document{
		Name:     filepath.Base(filename),
		MIMEType: "application/pdf",
		Data:     data,
	}, nil
}

// WriteFile writes content to a file with directory creation
func (fp *FileProcessor) WriteFile(filename, content string) error {
	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return errors.NewIOError("DIRECTORY_CREATE_FAILED",
				fmt.Sprintf("Cannot create directory: %s", dir), err)
		}
	}

	if err := os.WriteFile(filename, []byte(content), 0600); err != nil {
		return errors.NewIOError("FILE_WRITE_FAILED",
			fmt.Sprintf("Cannot write file: %s", filename), err)
	}
	return nil
}

// ValidateOutputFile validates output file path
func (fp *FileProcessor) ValidateOutputFile(filename string) error {
	if filename == "" {
		return nil // stdout is valid
	}

	if err := utils.ValidateOutputFile(filename); err != nil {
		return errors.NewValidationError("INVALID_OUTPUT_FILE",
			fmt.Sprintf("Invalid output file: %s", filename), err)
	}
	return nil
}
