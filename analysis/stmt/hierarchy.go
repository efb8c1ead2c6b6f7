// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stmt

import "strings"

// Names of the roots of the exception hierarchy.
const (
	Throwable        = "Throwable"
	Exception        = "Exception"
	RuntimeException = "RuntimeException"
	Error            = "Error"
)

// builtinExceptions maps well-known library exception types to their
// superclasses.
var builtinExceptions = map[string]string{
	Exception:        Throwable,
	Error:            Throwable,
	RuntimeException: Exception,

	"IOException":                     Exception,
	"FileNotFoundException":           "IOException",
	"EOFException":                    "IOException",
	"UnsupportedEncodingException":    "IOException",
	"MalformedURLException":           "IOException",
	"SocketException":                 "IOException",
	"UnknownHostException":            "IOException",
	"SQLException":                    Exception,
	"InterruptedException":            Exception,
	"CloneNotSupportedException":      Exception,
	"ReflectiveOperationException":    Exception,
	"ClassNotFoundException":          "ReflectiveOperationException",
	"NoSuchMethodException":           "ReflectiveOperationException",
	"IllegalAccessException":          "ReflectiveOperationException",
	"InstantiationException":          "ReflectiveOperationException",
	"TimeoutException":                Exception,
	"ExecutionException":              Exception,
	"ParseException":                  Exception,
	"URISyntaxException":              Exception,
	"GeneralSecurityException":        Exception,
	"IllegalArgumentException":        RuntimeException,
	"NumberFormatException":           "IllegalArgumentException",
	"IllegalStateException":           RuntimeException,
	"NullPointerException":            RuntimeException,
	"ClassCastException":              RuntimeException,
	"ArithmeticException":             RuntimeException,
	"IndexOutOfBoundsException":       RuntimeException,
	"ArrayIndexOutOfBoundsException":  "IndexOutOfBoundsException",
	"StringIndexOutOfBoundsException": "IndexOutOfBoundsException",
	"UnsupportedOperationException":   RuntimeException,
	"ConcurrentModificationException": RuntimeException,
	"NoSuchElementException":          RuntimeException,
	"UncheckedIOException":            RuntimeException,
	"SecurityException":               RuntimeException,
	"AssertionError":                  Error,
	"OutOfMemoryError":                "VirtualMachineError",
	"StackOverflowError":              "VirtualMachineError",
	"VirtualMachineError":             Error,
	"LinkageError":                    Error,
}

// A Hierarchy records the superclass of each known exception type.  Types
// are identified by their simple names.  A type that is not recorded is
// assumed to extend Exception directly (and is therefore checked).
//
// A Hierarchy is populated by a front end before analysis begins and is
// only read afterward, so it is safe to share among goroutines once loading
// is complete.
type Hierarchy struct {
	supers map[string]string
}

// NewHierarchy returns a Hierarchy containing the standard library
// exception types.
func NewHierarchy() *Hierarchy {
	h := &Hierarchy{supers: make(map[string]string, len(builtinExceptions))}
	for sub, super := range builtinExceptions {
		h.supers[sub] = super
	}
	return h
}

// AddSubtype records that sub directly extends super.  Existing entries
// for sub are replaced.
func (h *Hierarchy) AddSubtype(sub, super string) {
	sub, super = SimpleName(sub), SimpleName(super)
	if sub == "" || super == "" || sub == super || sub == Throwable {
		return
	}
	// Refuse to introduce a cycle
	if h.IsSubtype(super, sub) {
		return
	}
	h.supers[sub] = super
}

// Super returns the direct superclass of the given type.
func (h *Hierarchy) Super(t string) string {
	t = SimpleName(t)
	if t == Throwable || t == "" {
		return ""
	}
	if s, ok := h.supers[t]; ok {
		return s
	}
	return Exception
}

// IsSubtype returns true iff sub is super or a (transitive) subclass of it.
func (h *Hierarchy) IsSubtype(sub, super string) bool {
	sub, super = SimpleName(sub), SimpleName(super)
	if sub == "" || super == "" {
		return false
	}
	for t := sub; t != ""; t = h.Super(t) {
		if t == super {
			return true
		}
	}
	return false
}

// IsChecked returns true iff t is a checked exception type.  The unknown
// type (the empty string) is considered checked.
func (h *Hierarchy) IsChecked(t string) bool {
	if t == "" {
		return true
	}
	return !h.IsSubtype(t, RuntimeException) && !h.IsSubtype(t, Error)
}

// CatchesUnchecked returns true iff a catch clause for type t may handle
// some unchecked exception, i.e., t is a subtype or supertype of
// RuntimeException or Error.
func (h *Hierarchy) CatchesUnchecked(t string) bool {
	return h.IsSubtype(t, RuntimeException) || h.IsSubtype(t, Error) ||
		h.IsSubtype(RuntimeException, t) || h.IsSubtype(Error, t)
}

// Catches returns true iff a catch clause for type caught certainly handles
// an exception whose static type is raised.
func (h *Hierarchy) Catches(caught, raised string) bool {
	return raised != "" && h.IsSubtype(raised, caught)
}

// Compatible returns true iff a catch clause for type caught may handle an
// exception whose static type is raised: either it certainly does, or the
// raised exception's dynamic type may be a subclass of caught.  The unknown
// type is compatible with every type.
func (h *Hierarchy) Compatible(raised, caught string) bool {
	return raised == "" || h.IsSubtype(raised, caught) || h.IsSubtype(caught, raised)
}

// SimpleName strips package qualifiers and type arguments from a type
// name, e.g., java.io.IOException becomes IOException.
func SimpleName(t string) string {
	t = strings.TrimSpace(t)
	if i := strings.IndexByte(t, '<'); i >= 0 {
		t = t[:i]
	}
	if i := strings.LastIndexByte(t, '.'); i >= 0 {
		t = t[i+1:]
	}
	return t
}
