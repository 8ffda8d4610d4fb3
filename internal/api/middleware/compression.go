// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"compress/flate"
	"compress/gzip"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

type CompressionAlgorithm int

const (
	AlgorithmNone CompressionAlgorithm = iota
	AlgorithmGzip
	AlgorithmBrotli
	AlgorithmZstd
	AlgorithmDeflate
)

// compressionWriter buffers until minSize bytes are written, then decides
// whether to compress based on the response content type.
type compressionWriter struct {
	http.ResponseWriter
	algorithm CompressionAlgorithm
	minSize   int
	level     int

	status  int
	buf     []byte
	writer  io.Writer
	decided bool
}

func (w *compressionWriter) WriteHeader(code int) {
	if w.status != 0 {
		return
	}
	w.status = code
}

func (w *compressionWriter) Write(data []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}

	if w.decided {
		return w.writer.Write(data)
	}

	w.buf = append(w.buf, data...)
	if len(w.buf) < w.minSize {
		return len(data), nil
	}

	if err := w.decide(true); err != nil {
		return 0, err
	}
	return len(data), nil
}

// decide picks the output writer and flushes the buffered prefix. large is
// false when the response ended below minSize.
func (w *compressionWriter) decide(large bool) error {
	w.decided = true

	if large && w.compressible() {
		w.Header().Del("Content-Length")
		w.writer = w.newEncoder()
	}
	if w.writer == nil {
		w.writer = w.ResponseWriter
	}

	w.ResponseWriter.WriteHeader(w.status)

	if len(w.buf) == 0 {
		return nil
	}
	_, err := w.writer.Write(w.buf)
	w.buf = nil
	return err
}

func (w *compressionWriter) compressible() bool {
	if w.Header().Get("Content-Encoding") != "" {
		return false
	}
	contentType := w.Header().Get("Content-Type")
	return strings.Contains(contentType, "text/") ||
		strings.Contains(contentType, "application/json") ||
		strings.Contains(contentType, "application/yaml")
}

func (w *compressionWriter) newEncoder() io.Writer {
	switch w.algorithm {
	case AlgorithmZstd:
		encoder, err := zstd.NewWriter(w.ResponseWriter, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(w.level)))
		if err != nil {
			return nil
		}
		w.Header().Set("Content-Encoding", "zstd")
		return encoder

	case AlgorithmBrotli:
		w.Header().Set("Content-Encoding", "br")
		return brotli.NewWriterLevel(w.ResponseWriter, w.level)

	case AlgorithmGzip:
		gz, err := gzip.NewWriterLevel(w.ResponseWriter, w.level)
		if err != nil {
			return nil
		}
		w.Header().Set("Content-Encoding", "gzip")
		return gz

	case AlgorithmDeflate:
		fw, err := flate.NewWriter(w.ResponseWriter, w.level)
		if err != nil {
			return nil
		}
		w.Header().Set("Content-Encoding", "deflate")
		return fw
	}
	return nil
}

func (w *compressionWriter) Flush() {
	if !w.decided {
		// a flush means the handler is streaming; stop buffering
		_ = w.decide(len(w.buf) >= w.minSize)
	}
	if flusher, ok := w.writer.(interface{ Flush() error }); ok {
		_ = flusher.Flush()
	}
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *compressionWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *compressionWriter) finish() error {
	if !w.decided {
		if w.status == 0 {
			return nil
		}
		if err := w.decide(false); err != nil {
			return err
		}
	}
	if closer, ok := w.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// negotiateAlgorithm picks zstd, then brotli, then gzip, then deflate among
// the encodings the client accepts with a non-zero quality.
func negotiateAlgorithm(acceptEncoding string, preferZstd, preferBrotli bool) CompressionAlgorithm {
	encodings := parseAcceptEncoding(acceptEncoding)

	if preferZstd && encodings["zstd"] > 0 {
		return AlgorithmZstd
	}
	if preferBrotli && encodings["br"] > 0 {
		return AlgorithmBrotli
	}
	if encodings["gzip"] > 0 {
		return AlgorithmGzip
	}
	if encodings["deflate"] > 0 {
		return AlgorithmDeflate
	}

	return AlgorithmNone
}

func parseAcceptEncoding(acceptEncoding string) map[string]float64 {
	encodings := make(map[string]float64)

	for part := range strings.SplitSeq(acceptEncoding, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		encoding, params, _ := strings.Cut(part, ";")
		encoding = strings.ToLower(strings.TrimSpace(encoding))

		q := 1.0
		if v, ok := strings.CutPrefix(strings.TrimSpace(params), "q="); ok {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed >= 0 && parsed <= 1 {
				q = parsed
			}
		}

		if encoding == "*" {
			for _, e := range []string{"zstd", "br", "gzip", "deflate"} {
				if _, set := encodings[e]; !set {
					encodings[e] = q
				}
			}
			continue
		}
		encodings[encoding] = q
	}

	return encodings
}

// SelectiveCompress compresses text and JSON responses of at least minSize
// bytes with the best algorithm the client accepts.
func SelectiveCompress(minSize, level int, preferZstd, preferBrotli bool) func(http.Handler) http.Handler {
	level = min(max(level, 1), 9)
	if minSize < 0 {
		minSize = 1024
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			algorithm := negotiateAlgorithm(r.Header.Get("Accept-Encoding"), preferZstd, preferBrotli)
			if algorithm == AlgorithmNone || r.Header.Get("Accept") == "text/event-stream" {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Add("Vary", "Accept-Encoding")

			wrapped := &compressionWriter{
				ResponseWriter: w,
				algorithm:      algorithm,
				minSize:        minSize,
				level:          level,
			}

			next.ServeHTTP(wrapped, r)

			_ = wrapped.finish()
		})
	}
}
