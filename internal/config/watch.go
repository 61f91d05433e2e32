package config

import (
	"context"
	"os"
	"time"
)

// Watch polls the config file and calls onUpdate with every version that
// loads cleanly after a modification. Broken edits are reported through
// onError and the previous version stays in effect.
func Watch(ctx context.Context, path string, interval time.Duration, onUpdate func(*Config), onError func(error)) error {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	lastMod := info.ModTime()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(path)
				if err != nil {
					continue // transient errors
				}
				if !info.ModTime().After(lastMod) {
					continue
				}
				lastMod = info.ModTime()
				cfg, err := Load(path)
				if err != nil {
					if onError != nil {
						onError(err)
					}
					continue
				}
				onUpdate(cfg)
			}
		}
	}()
	return nil
}
