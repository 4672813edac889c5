// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) Lothar May

package main

import (
	"os"

	"financebuddy/config"
	"financebuddy/initapp"

	log "github.com/sirupsen/logrus"
)

func main() {
	a := initapp.NewInitApp(config.NewGlobalConfig())
	if err := a.Initialize(); err != nil {
		log.Fatalf("initialization failed: %v", err)
	}
	if err := newRootCommand(a.NewService).Execute(); err != nil {
		os.Exit(1)
	}
}
