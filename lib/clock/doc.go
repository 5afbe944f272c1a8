// Copyright 2026 The Capsule Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for testability.
//
// Production code accepts a Clock parameter instead of calling
// time.Now directly. Real() provides wall-clock behavior; Fake()
// provides a deterministic clock that moves only when the test tells
// it to. The protocol has no timers or periodic work, so the
// interface is deliberately just Now: the replay-window check is a
// data-level temporal gate, not a control-flow timeout.
package clock
