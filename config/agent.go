/*
Copyright 2016 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Agent holds the current config and watches its source file for changes,
// swapping in the newly parsed config whenever one is observed. Readers
// always see a fully-loaded config, never a half-parsed one.
type Agent struct {
	mu sync.RWMutex
	c  *Config
}

// Start loads path once, synchronously, then launches a background watch
// that reloads whenever the file changes. Returns an error if the initial
// load fails or the file watch cannot be set up; watch failures after
// that are logged, not fatal, since the agent still serves the last-good
// config.
func (a *Agent) Start(path string) error {
	c, err := Load(path)
	if err != nil {
		return err
	}
	a.set(c)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return err
	}
	go a.watch(watcher, path)
	return nil
}

func (a *Agent) watch(watcher *fsnotify.Watcher, path string) {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			c, err := Load(path)
			if err != nil {
				logrus.WithError(err).Warn("Error reloading config, keeping previous config.")
				continue
			}
			a.set(c)
			logrus.Info("Reloaded config.")
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logrus.WithError(err).Warn("Error watching config file.")
		}
	}
}

func (a *Agent) set(c *Config) {
	a.mu.Lock()
	a.c = c
	a.mu.Unlock()
}

// Config returns the most recently loaded config.
func (a *Agent) Config() *Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.c
}
