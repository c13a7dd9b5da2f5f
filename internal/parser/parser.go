package parser

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/conorfennell/recall/internal/domain"
	"github.com/m-mizutani/goerr/v2"
)

const (
	sourcePrefix  = "Q:"
	targetPrefix  = "A:"
	patternPrefix = "C:"
	levelPrefix   = "L:"
	separator     = "---"
)

type state int

const (
	seeking state = iota
	readingSource
	readingTarget
	readingPattern
	readingLevel // continuation lines after a level are dropped
)

// ParseFile reads a deck file from the given path and extracts all items.
func ParseFile(path string) ([]domain.Content, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open deck file", goerr.V("path", path))
	}
	defer file.Close()

	items, err := Parse(file)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse deck file", goerr.V("path", path))
	}
	return items, nil
}

// Parse reads a deck from an io.Reader and extracts all items.
//
// An item starts with a "Q:" line holding the source text, followed by
// optional "A:" (target text), "C:" (pattern) and "L:" (level) lines.
// Q, A and C blocks may span several lines. Items are separated by "---"
// or by the next "Q:" line. Text outside an item is ignored.
func Parse(r io.Reader) ([]domain.Content, error) {
	scanner := bufio.NewScanner(r)
	var items []domain.Content
	var current domain.Content
	var block []string
	currentState := seeking

	flushBlock := func() {
		if len(block) == 0 {
			return
		}
		text := strings.TrimRight(strings.Join(block, "\n"), "\n")
		switch currentState {
		case readingSource:
			current.SourceText = text
		case readingTarget:
			current.TargetText = text
		case readingPattern:
			current.Pattern = text
		}
		block = nil
	}

	finishItem := func() {
		flushBlock()
		if strings.TrimSpace(current.SourceText) != "" {
			items = append(items, current)
		}
		current = domain.Content{}
		currentState = seeking
	}

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		switch {
		case line == separator:
			finishItem()

		case strings.HasPrefix(line, sourcePrefix):
			if currentState != seeking { // a new source always starts a new item
				finishItem()
			}
			currentState = readingSource
			block = append(block, trimPrefix(line, sourcePrefix))

		case strings.HasPrefix(line, targetPrefix):
			flushBlock()
			currentState = readingTarget
			block = append(block, trimPrefix(line, targetPrefix))

		case strings.HasPrefix(line, patternPrefix):
			flushBlock()
			currentState = readingPattern
			block = append(block, trimPrefix(line, patternPrefix))

		case strings.HasPrefix(line, levelPrefix):
			flushBlock()
			raw := strings.TrimSpace(trimPrefix(line, levelPrefix))
			level, err := strconv.Atoi(raw)
			if err != nil || level < 0 {
				return nil, goerr.New("invalid level",
					goerr.V("line", lineNo),
					goerr.V("value", raw),
					goerr.T(domain.TagValidation))
			}
			current.Level = level
			if currentState != seeking {
				currentState = readingLevel
			}

		case currentState != seeking:
			block = append(block, line)
		}
	}

	finishItem() // the last item in the file has no trailing separator

	if err := scanner.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to read deck")
	}

	return items, nil
}

func trimPrefix(line, prefix string) string {
	content := line[len(prefix):]
	return strings.TrimPrefix(content, " ")
}
