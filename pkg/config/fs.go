package config

import "github.com/spf13/afero"

// Swapped for an in-memory filesystem in tests.
var fs = afero.NewOsFs()
