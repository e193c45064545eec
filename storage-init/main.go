package main

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"task-tracker/config"
	"task-tracker/storage"
)

// storage-init prepares the configured backend ahead of the first server
// start: it creates the Azure table or SQLite schema, or checks that Redis
// answers, and reports what is currently stored.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	log.WithField("backend", cfg.Backend).Info("storage init starting")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	kv, closeStore, err := cfg.OpenStore(ctx, log.StandardLogger())
	if err != nil {
		log.Fatalf("open storage: %v", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.WithError(err).Warn("close storage")
		}
	}()

	for _, key := range []string{storage.SessionKey, storage.TasksKey} {
		data, ok, err := kv.Get(ctx, key)
		if err != nil {
			log.WithError(err).WithField("key", key).Fatal("probe failed")
		}
		log.WithFields(log.Fields{"key": key, "present": ok, "bytes": len(data)}).Info("probed key")
	}

	log.Info("storage init complete")
}
