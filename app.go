package main

import (
	"net/http"

	"learn.windowlimiter/config"
	"learn.windowlimiter/types"
)

// configPath is the location of the YAML configuration file.
type configPath string

// application is the fully wired server: its configuration, the limiters
// built from it and the HTTP handler that serves them.
type application struct {
	Config   *config.File
	Limiters map[string]types.AdmissionController
	Handler  http.Handler
}
