package book

import (
	"bytes"
	"fmt"
	"os"
)

var (
	gzipMagic   = []byte{0x1f, 0x8b}
	sqliteMagic = []byte("SQLite format 3\x00")
)

// Open loads an accounting file, detecting the on-disk format from the
// file header. The returned book remembers its path and format so Save can
// write it back in place.
func Open(path string) (*Book, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading book %s: %w", path, err)
	}

	format, err := detectFormat(data)
	if err != nil {
		return nil, fmt.Errorf("opening book %s: %w", path, err)
	}

	var b *Book
	switch format {
	case FormatSQLite:
		b, err = openSQLite(path)
	default:
		b, err = decodeXML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("opening book %s: %w", path, err)
	}

	b.path = path
	b.format = format
	return b, nil
}

// Save writes the book back to the path it was opened from.
func (b *Book) Save() error {
	if b.path == "" {
		return fmt.Errorf("book has no path")
	}
	return b.SaveTo(b.path)
}

// SaveTo writes the book to path in the book's format.
func (b *Book) SaveTo(path string) error {
	if b.format == FormatSQLite {
		if err := b.saveSQLite(path); err != nil {
			return fmt.Errorf("saving book %s: %w", path, err)
		}
		b.path = path
		return nil
	}

	data, err := encodeXML(b, b.format == FormatXMLGzip)
	if err != nil {
		return fmt.Errorf("saving book %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("saving book %s: %w", path, err)
	}
	b.path = path
	return nil
}

func detectFormat(data []byte) (Format, error) {
	switch {
	case bytes.HasPrefix(data, sqliteMagic):
		return FormatSQLite, nil
	case bytes.HasPrefix(data, gzipMagic):
		return FormatXMLGzip, nil
	case bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte("<")):
		return FormatXML, nil
	default:
		return FormatXML, fmt.Errorf("unrecognized file format")
	}
}
