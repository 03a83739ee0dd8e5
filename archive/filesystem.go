package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/relabs-tech/sensorhub/core/logger"
)

// LocalFilesystem archives raw responses below a base folder.
type LocalFilesystem struct {
	baseFolder string
}

// NewLocalFilesystem returns a new LocalFilesystem
func NewLocalFilesystem(baseFolder string) (*LocalFilesystem, error) {
	if baseFolder == "" {
		return nil, fmt.Errorf("baseFolder must not be empty")
	}
	logger.Default().Debugln("filesystem archive enabled: ", baseFolder)
	return &LocalFilesystem{baseFolder: baseFolder}, nil
}

// Save writes the body to {baseFolder}/{endpoint}/{timestamp}[_{suffix}].json.
func (f LocalFilesystem) Save(endpoint, suffix string, raw []byte) error {
	path := filepath.Join(f.baseFolder, filepath.FromSlash(key(endpoint, suffix, time.Now())))
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("cannot create archive directory: %w", err)
	}
	if err := os.WriteFile(path, prettyOrRaw(raw), 0600); err != nil {
		return fmt.Errorf("cannot write archive file: %w", err)
	}
	logger.Default().Debugf("archived %d bytes to %s", len(raw), path)
	return nil
}
