package roll

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var yearPattern = regexp.MustCompile(`(19|20)\d{2}`)

// DerivePath builds the output path by substituting the target year into
// the source filename. "books-2025.gnucash" becomes "books-2026.gnucash";
// a filename with no year gets "-<year>" appended before the extension.
func DerivePath(source string, year int) string {
	dir := filepath.Dir(source)
	base := filepath.Base(source)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	target := strconv.Itoa(year)
	if locs := yearPattern.FindAllStringIndex(stem, -1); len(locs) > 0 {
		last := locs[len(locs)-1]
		stem = stem[:last[0]] + target + stem[last[1]:]
	} else {
		stem = stem + "-" + target
	}
	return filepath.Join(dir, stem+ext)
}

// copyFile copies src to dst byte for byte, refusing to overwrite dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	return out.Close()
}
