package moderation

import (
	"bufio"
	"bytes"
	"embed"
	"strings"
)

//go:embed data/*.txt
var wordFiles embed.FS

// LoadDefaultWords reads the embedded blacklist files, one term per line,
// ignoring blanks and comment lines.
func LoadDefaultWords() ([]string, error) {
	entries, err := wordFiles.ReadDir("data")
	if err != nil {
		return nil, err
	}

	unique := make(map[string]struct{})
	var words []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		content, err := wordFiles.ReadFile("data/" + entry.Name())
		if err != nil {
			return nil, err
		}
		scanner := bufio.NewScanner(bytes.NewReader(content))
		for scanner.Scan() {
			word := strings.TrimSpace(scanner.Text())
			if word == "" || strings.HasPrefix(word, "#") {
				continue
			}
			if _, ok := unique[word]; ok {
				continue
			}
			unique[word] = struct{}{}
			words = append(words, word)
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}
	return words, nil
}
