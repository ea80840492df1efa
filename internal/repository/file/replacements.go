package file

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadReplacements reads the word-replacement file of
// "original=replacement phone" lines and returns the ordered pairs for
// the given account. Order is preserved so earlier rules win when
// replacements overlap.
func LoadReplacements(path, phone string) ([][2]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open replacements %s: %w", path, err)
	}
	defer f.Close()

	var pairs [][2]string
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("replacements %s line %d: want \"original=replacement phone\", got %q", path, lineNo, line)
		}
		if fields[1] != phone {
			continue
		}
		rule := strings.SplitN(fields[0], "=", 2)
		if len(rule) != 2 || rule[0] == "" {
			return nil, fmt.Errorf("replacements %s line %d: bad rule %q", path, lineNo, fields[0])
		}
		pairs = append(pairs, [2]string{rule[0], rule[1]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read replacements %s: %w", path, err)
	}
	return pairs, nil
}
