package curriculum

import (
	"fmt"
	"os"
	"strings"
)

// LoadFramework reads the fixed curriculum framework every lesson is
// built around.
func LoadFramework(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("could not read curriculum framework %s: %w", path, err)
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		return "", fmt.Errorf("curriculum framework %s is empty", path)
	}
	return content, nil
}
