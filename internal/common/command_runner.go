package common

import (
	"context"
	"fmt"

	"callscreen/internal/errors"
	"callscreen/internal/types"
)

// DocumentOperationFunc turns a loaded résumé into a printable result.
type DocumentOperationFunc[Output any] func(context.Context, types.Document) (Output, error)

// RunDocumentCommand loads the résumé at filename, runs op on it and writes
// the formatted result.
func RunDocumentCommand[Output any](
	ctx context.Context,
	logger *errors.Logger,
	cmdConfig CommandConfig,
	filename string,
	maxSize int64,
	op DocumentOperationFunc[Output],
) error {
	if logger == nil {
		logger = errors.Discard()
	}
	doc, err := NewFileProcessor(logger, maxSize).ReadDocument(filename)
	if err != nil {
		return err
	}

	logger.Info("Processing résumé",
		"filename", doc.Name,
		"bytes", len(doc.Data),
		"output_format", cmdConfig.OutputFormat)

	result, err := op(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to process %s: %w", doc.Name, err)
	}
	return NewOutputHandler(logger).HandleOutput(result, cmdConfig)
}
