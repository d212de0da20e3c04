// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a BSD-style license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package counter

import (
	"fmt"

	"github.com/intuitivelabs/slog"
)

// Log is the logger used by the counter package.
// The level can be changed at runtime with slog.SetLevel(&Log, level).
var Log slog.Log

func init() {
	slog.Init(&Log, slog.LNOTICE, slog.LbackTraceS|slog.LlocInfoS,
		slog.LStdErr)
}

// DBGon returns true if debug messages are enabled.
func DBGon() bool {
	return Log.DBGon()
}

// WARNon returns true if warning messages are enabled.
func WARNon() bool {
	return Log.WARNon()
}

// ERRon returns true if error messages are enabled.
func ERRon() bool {
	return Log.ERRon()
}

// DBG logs a debug message.
func DBG(f string, a ...interface{}) {
	Log.LLog(slog.LDBG, 1, "DBG: "+NAME+": ", f, a...)
}

// WARN logs a warning message.
func WARN(f string, a ...interface{}) {
	Log.LLog(slog.LWARN, 1, "WARNING: "+NAME+": ", f, a...)
}

// ERR logs an error message.
func ERR(f string, a ...interface{}) {
	Log.LLog(slog.LERR, 1, "ERROR: "+NAME+": ", f, a...)
}

// BUG logs a bug (broken invariant) message.
func BUG(f string, a ...interface{}) {
	Log.LLog(slog.LBUG, 1, "BUG: "+NAME+": ", f, a...)
}

// PANIC logs a bug message and panics.
func PANIC(f string, a ...interface{}) {
	Log.LLog(slog.LBUG, 1, "PANIC: "+NAME+": ", f, a...)
	panic(fmt.Sprintf("PANIC: "+NAME+": "+f, a...))
}
