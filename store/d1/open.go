package d1

import (
	"errors"
	"time"

	"github.com/opendots/opendots-backend/config"
)

// Open returns the executor selected by cfg: a local SQLite file when
// D1LocalPath is set, the REST API otherwise. The close func is never nil.
func Open(cfg *config.CloudflareConfig) (Executor, func() error, error) {
	if cfg.D1LocalPath != "" {
		local, err := OpenLocal(cfg.D1LocalPath)
		if err != nil {
			return nil, nil, err
		}
		return local, local.Close, nil
	}
	if cfg.AccountID == "" || cfg.D1DatabaseID == "" || cfg.APIToken == "" {
		return nil, nil, errors.New("d1 requires account id, database id and api token")
	}
	timeout := time.Duration(cfg.D1TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := NewHTTPClient(cfg.AccountID, cfg.D1DatabaseID, cfg.APIToken, timeout)
	return client, func() error { return nil }, nil
}
