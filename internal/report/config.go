package report

import (
	"fmt"
	"strings"

	"github.com/animus-labs/animus-prune/internal/platform/objectstore"
)

// Config selects and parameterises the pass report sink.
type Config struct {
	Destination Destination
	Path        string
	Prefix      string
	Minio       objectstore.Config
}

func (c Config) Validate() error {
	destination, err := ParseDestination(string(c.Destination))
	if err != nil {
		return err
	}
	switch destination {
	case DestinationFile:
		if strings.TrimSpace(c.Path) == "" {
			return fmt.Errorf("report path is required for destination %s", destination)
		}
	case DestinationMinio:
		if err := c.Minio.Validate(); err != nil {
			return fmt.Errorf("report minio: %w", err)
		}
	}
	return nil
}
