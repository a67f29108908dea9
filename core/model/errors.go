package model

import "errors"

// ErrInvalidScenario marks malformed or internally inconsistent scenario
// input. It is fatal and raised before any timestep runs; per-timestep
// anomalies are reported as warnings on result rows instead.
var ErrInvalidScenario = errors.New("invalid scenario")
