// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package app

import "context"

// Runner defines the minimal lifecycle contract for runnable applications.
type Runner interface {
	// Run starts the application and blocks until ctx ends or serving fails.
	Run(ctx context.Context) error
}
