package models

import "errors"

// ErrInvalidConfig marks malformed engine configuration: bad window
// sizes, weights that do not sum to 1, unknown metric keys in a policy.
// Data sparsity is never an error; it surfaces as nil fields instead.
var ErrInvalidConfig = errors.New("invalid configuration")
