// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// This file defines the Log struct and associated methods.  Every refactoring
// and every project scan returns a Log, which holds the messages to show the
// user alongside the opportunities found: rejected criteria, methods that
// failed to analyze, slices discarded because their source changed.
//
// Entries logged while a program is loaded (translation diagnostics) are
// marked "initial".  They describe problems in the input rather than
// problems found by the analysis, so a scan over code with syntax errors
// still reports its opportunities.

package refactoring

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/godoctor/slicedoctor/text"
)

// A Severity indicates whether a log entry describes an informational message,
// a warning, or an error.
type Severity int

const (
	Info    Severity = iota // informational message
	Warning                 // warning, something to be cautious of
	Error                   // the analysis could not be completed
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	default:
		return "error"
	}
}

// An Entry is a single message in a Log.  If Filename is nonempty, the entry
// refers to that file, and to a line or a region of it when Line or Position
// is set.
type Entry struct {
	isInitial bool
	Severity  Severity     `json:"severity"`
	Message   string       `json:"message"`
	Filename  string       `json:"filename,omitempty"`
	Line      int          `json:"line,omitempty"`
	Position  *text.Extent `json:"position,omitempty"`
}

// A Log is used to store informational messages, warnings, and errors that
// will be presented to the user.
type Log struct {
	Entries []*Entry `json:"entries"`
}

func (entry *Entry) String() string {
	var buffer bytes.Buffer
	switch entry.Severity {
	case Info:
		// No prefix
	case Warning:
		buffer.WriteString("Warning: ")
	case Error:
		buffer.WriteString("Error: ")
	}
	if entry.Filename != "" {
		buffer.WriteString(entry.Filename)
		switch {
		case entry.Line > 0:
			fmt.Fprintf(&buffer, ":%d", entry.Line)
		case entry.Position != nil:
			buffer.WriteString(", ")
			buffer.WriteString(entry.Position.String())
		}
		buffer.WriteString(": ")
	}
	buffer.WriteString(entry.Message)
	return buffer.String()
}

// NewLog returns a new Log with no entries.
func NewLog() *Log {
	return &Log{Entries: []*Entry{}}
}

// Info adds an informational message (an entry with Info severity) to a log.
func (log *Log) Info(entry interface{}) {
	log.log(Info, "%v", entry)
}

// Warnf adds an entry with Warning severity to a log.
func (log *Log) Warnf(format string, v ...interface{}) {
	log.log(Warning, format, v...)
}

// Warn adds an entry with Warning severity to a log.
func (log *Log) Warn(entry interface{}) {
	log.log(Warning, "%v", entry)
}

// Errorf adds an entry with Error severity to a log.
func (log *Log) Errorf(format string, v ...interface{}) {
	log.log(Error, format, v...)
}

// Error adds an entry with Error severity to a log.
func (log *Log) Error(entry interface{}) {
	log.log(Error, "%v", entry)
}

func (log *Log) log(severity Severity, format string, v ...interface{}) {
	log.Entries = append(log.Entries, &Entry{
		Severity: severity,
		Message:  fmt.Sprintf(format, v...),
	})
}

// Associate associates the most recently-logged entry with the given filename.
func (log *Log) Associate(filename string) {
	if len(log.Entries) == 0 {
		return
	}
	entry := log.Entries[len(log.Entries)-1]
	entry.Filename = displayablePath(filename)
}

// AssociateExtent associates the most recently-logged entry with the given
// region of the given file.
func (log *Log) AssociateExtent(filename string, extent text.Extent) {
	if len(log.Entries) == 0 {
		return
	}
	entry := log.Entries[len(log.Entries)-1]
	entry.Filename = displayablePath(filename)
	entry.Position = &extent
}

// AssociateLine associates the most recently-logged entry with a line of the
// given file.
func (log *Log) AssociateLine(filename string, line int) {
	if len(log.Entries) == 0 {
		return
	}
	entry := log.Entries[len(log.Entries)-1]
	entry.Filename = displayablePath(filename)
	entry.Line = line
}

// Append adds all of the entries of another log to this one.
func (log *Log) Append(other *Log) {
	if other != nil {
		log.Entries = append(log.Entries, other.Entries...)
	}
}

// displayablePath returns a path for the given file relative to the current
// directory, if possible, and the original filename otherwise.  It is intended
// for use in error messages.
func displayablePath(file string) string {
	cwd, err := os.Getwd()
	if err != nil {
		return file
	}

	absPath, err := filepath.Abs(file)
	if err != nil {
		return file
	}

	relativePath, err := filepath.Rel(cwd, absPath)
	if err != nil || relativePath == "" {
		return file
	}

	return relativePath
}

// MarkInitial marks all entries that have been logged so far as initial
// entries.  Subsequent entries will not be marked as initial unless this
// method is called again at a later point in time.
func (log *Log) MarkInitial() {
	for _, entry := range log.Entries {
		entry.isInitial = true
	}
}

func (log *Log) String() string {
	var buffer bytes.Buffer
	for _, entry := range log.Entries {
		buffer.WriteString(entry.String())
		buffer.WriteString("\n")
	}
	return buffer.String()
}

// ContainsErrors returns true if the log contains at least one error.  The
// error may be an initial entry, or it may not.
func (log *Log) ContainsErrors() bool {
	return log.contains(func(entry *Entry) bool {
		return entry.Severity >= Error
	})
}

// Counts returns the number of entries of each severity, indexed by
// Severity.
func (log *Log) Counts() [Error + 1]int {
	var counts [Error + 1]int
	for _, entry := range log.Entries {
		counts[entry.Severity]++
	}
	return counts
}

// Analysis returns the entries that were not marked initial.
func (log *Log) Analysis() []*Entry {
	var entries []*Entry
	for _, entry := range log.Entries {
		if !entry.isInitial {
			entries = append(entries, entry)
		}
	}
	return entries
}

func (log *Log) contains(predicate func(*Entry) bool) bool {
	for _, entry := range log.Entries {
		if predicate(entry) {
			return true
		}
	}
	return false
}
