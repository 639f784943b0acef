package app

import (
	"toastd/internal/config"
	"toastd/internal/storage"
	logx "toastd/pkg/logx"
)

// openStore opens the configured snapshot store. It returns (nil, nil) when
// storage is disabled.
func openStore(cfg *config.Config, log logx.Logger) (storage.Store, error) {
	sc, err := cfg.StorageOptions()
	if err != nil {
		return nil, err
	}
	st, err := storage.Open(sc, log)
	if err != nil {
		return nil, err
	}
	if st != nil {
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}
	return st, nil
}
