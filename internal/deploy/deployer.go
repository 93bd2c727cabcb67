package deploy

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Deployer publishes generated lesson pages to the local filesystem
// and hands back a file:// URL the user can open directly.
type Deployer struct {
	dir string
}

func NewDeployer(dir string) (*Deployer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create deploy directory %s: %w", dir, err)
	}
	return &Deployer{dir: dir}, nil
}

func (d *Deployer) Deploy(html string) (string, error) {
	if html == "" {
		return "", fmt.Errorf("nothing to deploy: webpage is empty")
	}
	filename := fmt.Sprintf("lesson_%s.html", time.Now().Format("20060102_150405"))
	path := filepath.Join(d.dir, filename)
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return "", fmt.Errorf("could not write webpage: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("could not resolve deploy path: %w", err)
	}
	return "file://" + abs, nil
}
