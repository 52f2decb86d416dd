package mirror

import (
	"fmt"

	"github.com/elajah-datadog/dogflare/internal/config"
	"github.com/elajah-datadog/dogflare/internal/core"
)

// NewMirrorFromConfig creates a Mirror implementation based on the mirror
// config type. Returns (nil, nil) for type "none" or empty: mirroring is
// optional. encryptor is only consulted when cfg.Encrypt is set.
func NewMirrorFromConfig(cfg config.MirrorConfig, encryptor core.Encryptor) (core.Mirror, error) {
	var m core.Mirror
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "memory":
		m = NewMemoryMirror(cfg.Name)
	case "s3":
		s3m, err := NewS3Mirror(cfg)
		if err != nil {
			return nil, err
		}
		m = s3m
	case "filesystem":
		if cfg.FSMirrorRoot == "" {
			return nil, fmt.Errorf("filesystem mirror requires fs_mirror_root to be set")
		}
		fsm, err := NewFileSystemMirror(cfg.Name, cfg.FSMirrorRoot)
		if err != nil {
			return nil, err
		}
		m = fsm
	default:
		return nil, fmt.Errorf("unknown mirror type: %s", cfg.Type)
	}

	if cfg.Encrypt {
		if encryptor == nil {
			return nil, fmt.Errorf("mirror encryption enabled but no encryptor configured")
		}
		m = NewEncryptingMirror(m, encryptor)
	}
	return m, nil
}
