// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The slicedoctor command finds Extract Method opportunities in Java code.
package main

import (
	"os"

	"github.com/godoctor/slicedoctor/engine/cli"
)

func main() {
	os.Exit(cli.Run(os.Stdin, os.Stdout, os.Stderr, os.Args))
}
