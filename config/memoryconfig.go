// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package config

import (
	"os"
	"sync"
)

// MemoryConfig is never written. It holds the file configuration overlaid
// with environment credentials, which must not end up in the configuration file.
type MemoryConfig struct {
	appName        string
	appConfig      AppConfig
	appConfigMutex sync.Mutex
}

func NewMemoryConfig(appName string, c AppConfig) Config {
	c.Sanitize()
	return &MemoryConfig{
		appName:   appName,
		appConfig: c.deepCopy(),
	}
}

// WithEnvironment returns a copy of base with the environment applied.
func WithEnvironment(base Config, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	appConfig, err := base.Copy(false)
	if err != nil {
		return nil, err
	}
	err = appConfig.ApplyEnvironment(getenv)
	if err != nil {
		return nil, err
	}
	return NewMemoryConfig(base.GetAppName(), appConfig), nil
}

func (m *MemoryConfig) GetAppName() string {
	return m.appName
}

func (m *MemoryConfig) Lock() (*AppConfig, error) {
	m.appConfigMutex.Lock()
	appConfigCopy := m.appConfig.deepCopy()
	return &appConfigCopy, nil
}

func (m *MemoryConfig) Unlock(c *AppConfig, forceWriting bool) error {
	m.appConfig = *c
	m.appConfigMutex.Unlock()
	return nil
}

func (m *MemoryConfig) Copy(forceReading bool) (AppConfig, error) {
	m.appConfigMutex.Lock()
	defer m.appConfigMutex.Unlock()
	return m.appConfig.deepCopy(), nil
}
