package domain

import (
	"errors"
	"fmt"
	"strings"
)

// BlockLanguage tags the fenced code blocks that hold a tracker.
const BlockLanguage = "clockify-timer"

// EmptyBlock is inserted by the insert command.
const EmptyBlock = "```" + BlockLanguage + "\n```\n"

// ErrStaleBlock is returned when a block's recorded lines no longer hold its fences.
var ErrStaleBlock = errors.New("block location is stale")

// Block locates one tracker code block inside a document.
type Block struct {
	Index     int    // ordinal among tracker blocks in the document
	LineStart int    // 0-based line of the opening fence
	LineEnd   int    // 0-based line of the closing fence
	Body      string // raw text between the fences
}

func isTrackerFence(line string) bool {
	l := strings.TrimSpace(line)
	if !strings.HasPrefix(l, "```") {
		return false
	}
	return strings.TrimSpace(strings.TrimPrefix(l, "```")) == BlockLanguage
}

func isClosingFence(line string) bool {
	return strings.TrimSpace(line) == "```"
}

// FindBlocks returns every closed tracker block in content, in document order.
// Fences inside other code blocks are ignored.
func FindBlocks(content string) []Block {
	lines := strings.Split(content, "\n")
	var blocks []Block
	for i := 0; i < len(lines); i++ {
		l := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(l, "```") {
			continue
		}
		end := -1
		for j := i + 1; j < len(lines); j++ {
			if isClosingFence(lines[j]) {
				end = j
				break
			}
		}
		if end < 0 {
			break
		}
		if isTrackerFence(lines[i]) {
			blocks = append(blocks, Block{
				Index:     len(blocks),
				LineStart: i,
				LineEnd:   end,
				Body:      strings.Join(lines[i+1:end], "\n"),
			})
		}
		i = end
	}
	return blocks
}

// Rewritten returns the location of b after its body was replaced by body.
func (b Block) Rewritten(body string) Block {
	b.LineEnd = b.LineStart + 1 + strings.Count(body, "\n") + 1
	b.Body = body
	return b
}

// CheckBlock reports ErrStaleBlock unless lines [b.LineStart, b.LineEnd] of
// content are still a tracker block with no fence between its two fences.
func CheckBlock(content string, b Block) error {
	return checkLines(strings.Split(content, "\n"), b)
}

func checkLines(lines []string, b Block) error {
	if b.LineStart < 0 || b.LineEnd <= b.LineStart || b.LineEnd >= len(lines) {
		return fmt.Errorf("%w: lines %d-%d of %d", ErrStaleBlock, b.LineStart, b.LineEnd, len(lines))
	}
	if !isTrackerFence(lines[b.LineStart]) || !isClosingFence(lines[b.LineEnd]) {
		return fmt.Errorf("%w: lines %d-%d are not a %s block", ErrStaleBlock, b.LineStart, b.LineEnd, BlockLanguage)
	}
	for i := b.LineStart + 1; i < b.LineEnd; i++ {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), "```") {
			return fmt.Errorf("%w: fence inside lines %d-%d", ErrStaleBlock, b.LineStart, b.LineEnd)
		}
	}
	return nil
}

// ReplaceBlock rewrites the region [b.LineStart, b.LineEnd] of content with
// the original fences around body. Every line outside the region is kept
// verbatim. A region that fails CheckBlock is left alone and ErrStaleBlock
// is returned.
func ReplaceBlock(content string, b Block, body string) (string, error) {
	lines := strings.Split(content, "\n")
	if err := checkLines(lines, b); err != nil {
		return content, err
	}
	out := make([]string, 0, len(lines)-(b.LineEnd-b.LineStart)+2)
	out = append(out, lines[:b.LineStart+1]...)
	out = append(out, body)
	out = append(out, lines[b.LineEnd:]...)
	return strings.Join(out, "\n"), nil
}

// InsertBlock inserts an empty tracker block before the given 0-based line.
// A line past the end appends the block.
func InsertBlock(content string, line int) string {
	if content == "" {
		return EmptyBlock
	}
	lines := strings.Split(content, "\n")
	if line < 0 {
		line = 0
	}
	if line >= len(lines) {
		if strings.HasSuffix(content, "\n") {
			return content + EmptyBlock
		}
		return content + "\n" + EmptyBlock
	}
	out := make([]string, 0, len(lines)+2)
	out = append(out, lines[:line]...)
	out = append(out, "```"+BlockLanguage, "```")
	out = append(out, lines[line:]...)
	return strings.Join(out, "\n")
}
