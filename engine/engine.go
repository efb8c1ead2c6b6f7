// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package engine is the programmatic entrypoint to slicedoctor: a registry
// of the available refactorings, and a project-wide Scan that runs the
// Extract Method analysis on every method of a program.
package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/godoctor/slicedoctor/refactoring"
)

var (
	mu sync.RWMutex
	// Constructors for all available refactorings, keyed by a unique,
	// one-word, all-lowercase name.  Refactorings keep per-run state, so
	// each lookup returns a new instance.
	refactorings = map[string]func() refactoring.Refactoring{
		"extract": func() refactoring.Refactoring { return new(refactoring.ExtractMethod) },
		"debug":   func() refactoring.Refactoring { return new(refactoring.Debug) },
	}
)

// AllRefactorings returns all of the refactorings that can be performed.
// The keys of the returned map are short, single-word, all-lowercase names
// (extract, debug); the values implement the Refactoring interface.
func AllRefactorings() map[string]refactoring.Refactoring {
	mu.RLock()
	defer mu.RUnlock()
	result := make(map[string]refactoring.Refactoring, len(refactorings))
	for name, fn := range refactorings {
		result[name] = fn()
	}
	return result
}

// Names returns the short names of all refactorings in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(refactorings))
	for name := range refactorings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetRefactoring returns a new instance of the Refactoring keyed by the
// given short name, or nil if there is none.
func GetRefactoring(shortName string) refactoring.Refactoring {
	mu.RLock()
	defer mu.RUnlock()
	if fn, ok := refactorings[shortName]; ok {
		return fn()
	}
	return nil
}

// AddRefactoring allows custom refactorings to be added to the engine.
// Invoke this method before starting the command line driver.
func AddRefactoring(shortName string, newRefac func() refactoring.Refactoring) error {
	mu.Lock()
	defer mu.Unlock()
	if fn, ok := refactorings[shortName]; ok {
		return fmt.Errorf("the short name %q is already associated with a refactoring (%s)",
			shortName, fn().Description().Name)
	}
	refactorings[shortName] = newRefac
	return nil
}
