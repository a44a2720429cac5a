package internal

import (
	"bytes"
	"os"
	"strings"
)

// SourceCode stores the content of a source code file.
type SourceCode struct {
	Lines []string
}

// ReadSourceCode reads the content of a file and returns it as a `SourceCode` struct.
func ReadSourceCode(filename string) (*SourceCode, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return NewSourceCode(content), nil
}

func NewSourceCode(content []byte) *SourceCode {
	return &SourceCode{Lines: strings.Split(string(content), "\n")}
}

// Position converts a byte offset into a 1-based line and column.
// Offsets past the end are clamped.
func Position(source []byte, offset int) (line, col int) {
	if offset > len(source) {
		offset = len(source)
	}
	if offset < 0 {
		offset = 0
	}
	before := source[:offset]
	line = bytes.Count(before, []byte{'\n'}) + 1
	col = offset - (bytes.LastIndexByte(before, '\n') + 1) + 1
	return line, col
}
