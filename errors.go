// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package counter

import (
	"errors"
)

var ErrBusy = errors.New("operation excluded by a pending alarm")
var ErrUnsupported = errors.New("channel not supported or counter not started")
var ErrInvalidTicks = errors.New("alarm ticks beyond the current top period")
var ErrTooLate = errors.New("top period already elapsed")
