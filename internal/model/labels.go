package model

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// UnknownLabel is reported for any output index that has no label.
const UnknownLabel = "Unknown"

// Labels maps output indices to class names.
type Labels []string

// LoadLabels reads a newline-delimited label file, one class per line.
func LoadLabels(path string) (Labels, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open labels: %w", err)
	}
	defer f.Close()

	var labels Labels
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		labels = append(labels, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}
	return labels, nil
}

// Name returns the label at i, or UnknownLabel when i is out of range.
func (l Labels) Name(i int) string {
	if i < 0 || i >= len(l) {
		return UnknownLabel
	}
	return l[i]
}

func normalizeKey(label string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(label)), " ", "_")
}
