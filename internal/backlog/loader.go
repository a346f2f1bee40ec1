package backlog

import (
	"bytes"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/redgreen/internal/errors"
)

// Load reads, parses, and validates the backlog file at path. The
// returned backlog's stories are ordered by priority.
func Load(path string) (*Backlog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read backlog %s", path)
	}
	b, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "backlog %s", path)
	}
	return b, nil
}

// Parse decodes and validates a backlog document. The returned backlog's
// stories are ordered by priority, file order kept for ties.
func Parse(data []byte) (*Backlog, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.NewValidationError("backlog document is empty").
			WithField("stories")
	}

	var b Backlog
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, errors.Wrapf(err, "parse backlog")
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}

	b.sortByPriority()
	return &b, nil
}
