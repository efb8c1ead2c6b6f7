// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package protocol provides the server side of a JSON command protocol
// through which a text editor can drive slicedoctor.  Each command is a JSON
// object with a "command" key; each reply is a JSON object with a "reply"
// key whose value is "OK" or "Error".
//
// A session opens the protocol, selects a directory on disk ("local" mode)
// or an in-memory file system that the editor fills with "put" ("web"
// mode), and then runs refactorings or scans against it.
package protocol

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/go-git/go-billy/v5"

	"github.com/godoctor/slicedoctor/config"
)

type Reply struct {
	Params map[string]interface{}
}

func (r Reply) String() string {
	replyJson, _ := json.Marshal(r.Params)
	return string(replyJson)
}

func errorReply(err error) Reply {
	return Reply{map[string]interface{}{"reply": "Error", "message": err.Error()}}
}

// State is the state of a protocol session.  State is 0 before "open",
// 1 after it, and 2 once "setdir" has configured a file system.
type State struct {
	State      int
	Mode       string
	Dir        string
	Filesystem billy.Filesystem
	Config     *config.Config
	// Files stored with "put", in the order first stored
	Buffers []string

	ctx context.Context
}

func (s *State) context() context.Context {
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

// Run runs a protocol session.  If args is empty, commands are read from in,
// one per line, until EOF or a "close" command, and each reply is written
// to out.  Otherwise, args[0] is a JSON array of commands, which are run in
// order; only the reply to the last command (or to the first failing
// command) is written.
func Run(ctx context.Context, in io.Reader, out io.Writer, cfg *config.Config, args []string) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	// single command console
	if len(args) == 0 {
		runSingle(ctx, in, out, cfg)
		return
	}
	cmdList := setup()
	// list of commands
	var argJson []map[string]interface{}
	err := json.Unmarshal([]byte(args[0]), &argJson)
	if err != nil {
		printReply(out, errorReply(err))
		return
	}
	state := &State{State: 1, Config: cfg, ctx: ctx}
	for i, cmdObj := range argJson {
		cmd, ok := commandOf(cmdList, cmdObj)
		if !ok {
			printReply(out, errorReply(errInvalidCommand))
			return
		}
		resultReply, err := cmd.Run(state, cmdObj)
		if err != nil {
			printReply(out, resultReply)
			return
		}
		// last command?
		if i == len(argJson)-1 {
			printReply(out, resultReply)
		}
	}
}

func runSingle(ctx context.Context, in io.Reader, out io.Writer, cfg *config.Config) {
	cmdList := setup()
	state := &State{State: 0, Config: cfg, ctx: ctx}
	ioreader := bufio.NewReader(in)
	for ctx.Err() == nil {
		input, err := ioreader.ReadBytes('\n')
		if len(input) == 0 && err == io.EOF {
			break
		} else if err != nil && err != io.EOF {
			printReply(out, errorReply(err))
			break
		}
		var inputJson map[string]interface{}
		if err := json.Unmarshal(input, &inputJson); err != nil {
			printReply(out, errorReply(err))
			continue
		}
		// if close command, just exit
		if inputJson["command"] == "close" {
			break
		}
		cmd, ok := commandOf(cmdList, inputJson)
		if !ok {
			printReply(out, errorReply(errInvalidCommand))
			continue
		}
		result, _ := cmd.Run(state, inputJson)
		printReply(out, result)
	}
}

// little helpers
func setup() map[string]Command {
	cmds := make(map[string]Command)
	cmds["about"] = &About{}
	cmds["open"] = &Open{}
	cmds["list"] = &List{}
	cmds["setdir"] = &Setdir{}
	cmds["params"] = &Params{}
	cmds["put"] = &Put{}
	cmds["xrun"] = &XRun{}
	cmds["scan"] = &Scan{}
	return cmds
}

func commandOf(cmdList map[string]Command, input map[string]interface{}) (Command, bool) {
	name, ok := input["command"].(string)
	if !ok {
		return nil, false
	}
	cmd, ok := cmdList[name]
	return cmd, ok
}

func printReply(out io.Writer, reply Reply) {
	fmt.Fprintf(out, "%s\n", reply)
}
