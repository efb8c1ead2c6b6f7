// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli

import (
	"io"

	"github.com/schollz/progressbar/v3"
)

// A tracker draws a progress bar while a scan runs.  A nil *tracker is
// valid and draws nothing; newTracker returns nil unless w is a terminal.
type tracker struct {
	bar *progressbar.ProgressBar
}

func newTracker(w io.Writer, label string, total int) *tracker {
	if !isTerminal(w) || total == 0 {
		return nil
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(label),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return &tracker{bar: bar}
}

// Tick increments the progress by 1.  Safe for concurrent use.
func (t *tracker) Tick() {
	if t == nil {
		return
	}
	t.bar.Add(1)
}

// Finish clears the bar.
func (t *tracker) Finish() {
	if t == nil {
		return
	}
	t.bar.Finish()
	t.bar.Clear()
}
