package main

import _ "embed"

// embeddedConfig holds the YAML configuration embedded at build time.
// default_config.yaml ships sensible defaults; packaging scripts may
// overwrite it with a site-specific configuration before compiling.
//
//go:embed default_config.yaml
var embeddedConfig []byte
