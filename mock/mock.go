// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package mock

import (
	"net/http"

	"financebuddy/config"
	"financebuddy/stockval"
)

const TestApiKey = "test-key"
const TestApiSecret = "test-secret"

// NewBrokerConfig returns a test configuration pointing the broker to a mock server.
func NewBrokerConfig(brokerId stockval.BrokerId, dataUrl string) config.Config {
	c := config.NewTestConfig()
	appConfig, _ := c.Lock()
	brokerConfig := appConfig.BrokerConfig[brokerId]
	brokerConfig.DataUrl = dataUrl
	brokerConfig.ApiKey = TestApiKey
	brokerConfig.ApiSecret = TestApiSecret
	appConfig.BrokerConfig[brokerId] = brokerConfig
	_ = c.Unlock(appConfig, true)
	return c
}

// NewUnconfiguredBroker returns a test configuration without credentials for the broker.
func NewUnconfiguredBroker(brokerId stockval.BrokerId) config.Config {
	c := config.NewTestConfig()
	appConfig, _ := c.Lock()
	brokerConfig := appConfig.BrokerConfig[brokerId]
	brokerConfig.ApiKey = ""
	brokerConfig.ApiSecret = ""
	appConfig.BrokerConfig[brokerId] = brokerConfig
	_ = c.Unlock(appConfig, true)
	return c
}

// JsonReply returns a handler writing a fixed json reply.
func JsonReply(reply string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reply))
	}
}
