// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package server

import "errors"

var (
	errNoHTTPHandler = errors.New("no HTTP handler for the sync API")
	errNoHTTPAddress = errors.New("sync API address is empty")
	errListen        = errors.New("sync API cannot bind its address")
)
