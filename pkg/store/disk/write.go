package disk

import (
	"context"
	"errors"
	"io"
	"os"

	"filesvc/pkg/log"
	"filesvc/pkg/store"
)

// ChunkSize is the default number of bytes moved per read/write step (1 MiB).
const ChunkSize = 1024 * 1024

// WriteBounded copies src to a new file at dst using ChunkSize chunks.
// See WriteBoundedChunk.
func WriteBounded(ctx context.Context, src io.Reader, dst string, maxBytes int64) (int64, error) {
	return WriteBoundedChunk(ctx, src, dst, maxBytes, ChunkSize)
}

// WriteBoundedChunk copies src to a new file at dst, chunkSize bytes at a time,
// and returns the number of bytes written.
//
// dst must not exist. If more than maxBytes arrive the copy stops, dst is
// removed and store.TooLargeError is returned; nothing past the limit is ever
// written. Any read, write, sync or close failure, or ctx being done, removes
// dst and returns *store.IOError. The result never depends on chunkSize.
func WriteBoundedChunk(ctx context.Context, src io.Reader, dst string, maxBytes int64, chunkSize int) (int64, error) {
	if chunkSize <= 0 {
		chunkSize = ChunkSize
	}

	//nolint:gosec // dst is built from a generated id, not user input
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		log.Error().Err(err).Str("path", dst).Msg("Failed to create destination file")
		return 0, &store.IOError{Op: "create", Path: dst, Err: err}
	}

	buf := make([]byte, chunkSize)
	var total int64

	for {
		if err := ctx.Err(); err != nil {
			return 0, abortWrite(out, dst, &store.IOError{Op: "read", Path: dst, Err: err})
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			total += int64(n)
			if total > maxBytes {
				log.Info().Str("path", dst).Int64("limit", maxBytes).Msg("Upload exceeds size limit")
				return 0, abortWrite(out, dst, store.TooLargeError{Limit: maxBytes})
			}

			if _, err := out.Write(buf[:n]); err != nil {
				log.Error().Err(err).Str("path", dst).Msg("Failed to write chunk")
				return 0, abortWrite(out, dst, &store.IOError{Op: "write", Path: dst, Err: err})
			}
		}

		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			log.Error().Err(readErr).Str("path", dst).Msg("Failed to read upload stream")
			return 0, abortWrite(out, dst, &store.IOError{Op: "read", Path: dst, Err: readErr})
		}
	}

	if err := out.Sync(); err != nil {
		log.Error().Err(err).Str("path", dst).Msg("Failed to sync destination file")
		return 0, abortWrite(out, dst, &store.IOError{Op: "sync", Path: dst, Err: err})
	}

	if err := out.Close(); err != nil {
		log.Error().Err(err).Str("path", dst).Msg("Failed to close destination file")
		removePartial(dst)
		return 0, &store.IOError{Op: "close", Path: dst, Err: err}
	}

	return total, nil
}

// abortWrite releases the handle, removes the partial file and returns cause.
func abortWrite(out *os.File, dst string, cause error) error {
	if err := out.Close(); err != nil {
		log.Warn().Err(err).Str("path", dst).Msg("Failed to close partial file")
	}
	removePartial(dst)
	return cause
}
