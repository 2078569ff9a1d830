package profile

import _ "embed"

// Selector candidates are tried in declared order; first visible match wins.
// Free-text matching inside the workflows is the fallback when all of these
// miss, so the lists favor precision over coverage.
//
//go:embed defaults.yaml
var defaultsYAML []byte
