package compress

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Formats lists the accepted compression names, "none" first.
var Formats = []string{"none", "gz", "xz", "zst"}

// Valid reports whether format is one of Formats.
func Valid(format string) bool {
	for _, f := range Formats {
		if f == format {
			return true
		}
	}
	return false
}

// Extension returns the file suffix for format, including the leading dot.
// "none" has no suffix.
func Extension(format string) string {
	if format == "none" || format == "" {
		return ""
	}
	return "." + format
}

// Compress compresses a byte slice using the specified format ("none", "gz",
// "xz" or "zst"). An unknown format is an error.
//
// Example:
//
//	compressedData, err := compress.Compress(bundle, "xz")
//	if err != nil {
//		// handle error
//	}
func Compress(data []byte, format string) ([]byte, error) {
	var buf bytes.Buffer
	var writer io.WriteCloser
	var err error

	switch format {
	case "none", "":
		return data, nil
	case "gz":
		writer = gzip.NewWriter(&buf)
	case "xz":
		writer, err = xz.NewWriter(&buf)
	case "zst":
		writer, err = zstd.NewWriter(&buf)
	default:
		return nil, fmt.Errorf("unsupported compression format %q", format)
	}
	if err != nil {
		return nil, err
	}

	if _, err := writer.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decompress decompresses a byte slice, detecting gz, xz or zstd from the
// header magic bytes. Data in no recognized format is returned unmodified.
//
// Example:
//
//	tarball, err := compress.Decompress(fileData)
//	if err != nil {
//		// handle error
//	}
func Decompress(data []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(data, []byte{0x1f, 0x8b}):
		reader, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer reader.Close()
		return io.ReadAll(reader)
	case bytes.HasPrefix(data, []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}):
		reader, err := xz.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		return io.ReadAll(reader)
	case bytes.HasPrefix(data, []byte{0x28, 0xb5, 0x2f, 0xfd}):
		reader, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer reader.Close()
		return io.ReadAll(reader)
	}
	return data, nil
}
