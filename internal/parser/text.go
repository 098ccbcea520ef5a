package parser

import (
	"bufio"
	"io"
	"strings"
)

// TextParser handles plain text files. Line structure is kept as-is.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), " \t"))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return &Document{
		Title: stem(filename),
		Text:  strings.Join(lines, "\n"),
	}, nil
}
