// Copyright 2015 Auburn University. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package protocol

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"sort"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/godoctor/slicedoctor/analysis/loader"
	"github.com/godoctor/slicedoctor/analysis/slicing"
	"github.com/godoctor/slicedoctor/engine"
	"github.com/godoctor/slicedoctor/refactoring"
)

var errInvalidCommand = errors.New("Invalid JSON command")

type Command interface {
	Run(*State, map[string]interface{}) (Reply, error)
	Validate(*State, map[string]interface{}) (bool, error)
}

// -=-= About =-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=

const aboutText = "slicedoctor finds Extract Method opportunities in Java code"

type About struct{}

func (a *About) Run(state *State, input map[string]interface{}) (Reply, error) {
	if valid, err := a.Validate(state, input); !valid {
		return errorReply(err), err
	}
	return Reply{map[string]interface{}{"reply": "OK", "text": aboutText}}, nil
}

func (a *About) Validate(state *State, input map[string]interface{}) (bool, error) {
	if state.State < 1 {
		return false, errors.New("The about command requires a state of non-zero")
	}
	return true, nil
}

// -=-= List =-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-

type List struct {
	Hidden bool `json:"hidden"`
}

func (l *List) Run(state *State, input map[string]interface{}) (Reply, error) {
	if valid, err := l.Validate(state, input); !valid {
		return errorReply(err), err
	}
	hidden, _ := input["hidden"].(bool)

	namesList := make([]map[string]string, 0)
	for _, shortName := range engine.Names() {
		d := engine.GetRefactoring(shortName).Description()
		if d.Hidden && !hidden {
			continue
		}
		namesList = append(namesList, map[string]string{
			"shortName": shortName,
			"name":      d.Name,
			"synopsis":  d.Synopsis,
		})
	}
	return Reply{map[string]interface{}{"reply": "OK", "transformations": namesList}}, nil
}

func (l *List) Validate(state *State, input map[string]interface{}) (bool, error) {
	if state.State < 1 {
		return false, errors.New("The list command requires a state of non-zero")
	}
	if h, found := input["hidden"]; found {
		if _, ok := h.(bool); !ok {
			return false, errors.New("\"hidden\" key must be a boolean")
		}
	}
	return true, nil
}

// -=-= Open =-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-

type Open struct{}

func (o *Open) Run(state *State, input map[string]interface{}) (Reply, error) {
	state.State = 1
	return Reply{map[string]interface{}{"reply": "OK"}}, nil
}

func (o *Open) Validate(state *State, input map[string]interface{}) (bool, error) {
	return true, nil
}

// -=-= Params =-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-

type Params struct {
	Transformation string `json:"transformation"`
}

func (p *Params) Run(state *State, input map[string]interface{}) (Reply, error) {
	if valid, err := p.Validate(state, input); !valid {
		return errorReply(err), err
	}
	r := engine.GetRefactoring(input["transformation"].(string))
	params := make([]map[string]interface{}, 0)
	for _, param := range r.Description().Params {
		params = append(params, map[string]interface{}{
			"label":   param.Label,
			"prompt":  param.Prompt,
			"type":    reflect.TypeOf(param.DefaultValue).String(),
			"default": param.DefaultValue,
		})
	}
	return Reply{map[string]interface{}{"reply": "OK", "params": params}}, nil
}

func (p *Params) Validate(state *State, input map[string]interface{}) (bool, error) {
	if state.State < 1 {
		return false, errors.New("The params command requires a state of non-zero")
	}
	return validTransformation(input)
}

// -=-= Put -=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-

type Put struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

func (p *Put) Run(state *State, input map[string]interface{}) (Reply, error) {
	if valid, err := p.Validate(state, input); !valid {
		return errorReply(err), err
	}
	filename := input["filename"].(string)
	content := input["content"].(string)
	if err := util.WriteFile(state.Filesystem, filename, []byte(content), 0o644); err != nil {
		return errorReply(err), err
	}
	for _, f := range state.Buffers {
		if f == filename {
			return Reply{map[string]interface{}{"reply": "OK"}}, nil
		}
	}
	state.Buffers = append(state.Buffers, filename)
	return Reply{map[string]interface{}{"reply": "OK"}}, nil
}

func (p *Put) Validate(state *State, input map[string]interface{}) (bool, error) {
	if state.State < 2 || state.Mode != "web" {
		return false, errors.New("put can only be executed in web mode")
	}
	filename, ok := input["filename"].(string)
	if !ok || filename == "" {
		return false, errors.New("\"filename\" key must be a nonempty string")
	}
	if !loader.IsJava(filename) {
		return false, fmt.Errorf("%s: %w", filename, loader.ErrNotJava)
	}
	if _, ok := input["content"].(string); !ok {
		return false, errors.New("\"content\" key must be a string")
	}
	return true, nil
}

// -=-= Setdir =-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-

type Setdir struct {
	Mode string `json:"mode" chk:"^(local|web)$"`
}

func (s *Setdir) Run(state *State, input map[string]interface{}) (Reply, error) {
	if valid, err := s.Validate(state, input); !valid {
		return errorReply(err), err
	}

	mode := input["mode"].(string)
	state.Mode = mode
	state.Buffers = nil

	switch mode {
	case "local":
		// local mode? get directory and local filesystem
		state.Dir = input["directory"].(string)
		state.Filesystem = osfs.New(state.Dir)
	case "web":
		// web mode? files come from put
		state.Dir = "."
		state.Filesystem = memfs.New()
	}

	state.State = 2
	return Reply{map[string]interface{}{"reply": "OK"}}, nil
}

func (s *Setdir) Validate(state *State, input map[string]interface{}) (bool, error) {
	if state.State < 1 {
		return false, errors.New("State must be non-zero for \"setdir\" command")
	}

	mode, ok := input["mode"].(string)
	if !ok {
		return false, errors.New("\"mode\" key is required")
	}
	// validate the mode value
	field, _ := reflect.TypeOf(s).Elem().FieldByName("Mode")
	modeValidator := regexp.MustCompile(field.Tag.Get("chk"))
	if !modeValidator.MatchString(mode) {
		return false, errors.New("\"mode\" key must be \"web|local\"")
	}
	// check for directory key if mode == local
	if mode == "local" {
		dir, ok := input["directory"].(string)
		if !ok {
			return false, errors.New("\"directory\" key required if \"mode\" is local")
		}
		info, err := os.Stat(dir)
		if err != nil {
			return false, err
		}
		if !info.IsDir() {
			return false, fmt.Errorf("%s is not a directory", dir)
		}
	}
	return true, nil
}

// -=-= XRun =-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-

type XRun struct {
	Transformation string                 `json:"transformation"`
	Textselection  map[string]interface{} `json:"textselection"`
	Arguments      []interface{}          `json:"arguments"`
	Var            string                 `json:"var"`
}

func (x *XRun) Run(state *State, input map[string]interface{}) (Reply, error) {
	if valid, err := x.Validate(state, input); !valid {
		return errorReply(err), err
	}

	ts := input["textselection"].(map[string]interface{})
	prog, err := loadFile(state, ts["filename"].(string))
	if err != nil {
		return errorReply(err), err
	}
	sel, err := parseSelection(prog, ts)
	if err != nil {
		return errorReply(err), err
	}

	args, _ := input["arguments"].([]interface{})
	variable, _ := input["var"].(string)
	refac := engine.GetRefactoring(input["transformation"].(string))
	result := refac.Run(&refactoring.Config{
		Program:  prog,
		Method:   prog.MethodAt(sel.filename, sel.line),
		Line:     sel.line,
		Var:      variable,
		Analysis: state.Config.Analysis,
		Args:     args,
	})

	slices := make([]engine.SliceSummary, 0)
	for _, group := range [][]*slicing.Slice{result.Opportunities, result.Rejected} {
		for _, s := range group {
			slices = append(slices, engine.Summarize(prog, s))
		}
	}
	reply := map[string]interface{}{
		"reply":       "OK",
		"description": refac.Description().Name,
		"log":         logEntries(result.Log),
		"slices":      slices,
	}
	if result.DebugOutput.Len() > 0 {
		reply["output"] = result.DebugOutput.String()
	}
	return Reply{reply}, nil
}

func (x *XRun) Validate(state *State, input map[string]interface{}) (bool, error) {
	if state.State < 2 {
		return false, errors.New("State of 2 (file system configured) is required")
	}
	if valid, err := validTransformation(input); !valid {
		return false, err
	}
	ts, ok := input["textselection"].(map[string]interface{})
	if !ok {
		return false, errors.New("\"textselection\" key is required")
	}
	if _, ok := ts["filename"].(string); !ok {
		return false, errors.New("File is not given")
	}
	if args, found := input["arguments"]; found {
		if _, ok := args.([]interface{}); !ok {
			return false, errors.New("\"arguments\" key must be an array")
		}
	}
	if v, found := input["var"]; found {
		if _, ok := v.(string); !ok {
			return false, errors.New("\"var\" key must be a string")
		}
	}
	return true, nil
}

// -=-= Scan =-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-

// Scan runs a project scan over every Java file in the session's file
// system: the directory in local mode, or the files put in web mode.
type Scan struct{}

func (s *Scan) Run(state *State, input map[string]interface{}) (Reply, error) {
	if valid, err := s.Validate(state, input); !valid {
		return errorReply(err), err
	}

	names, err := javaFiles(state)
	if err != nil {
		return errorReply(err), err
	}
	srcs := make([]loader.Source, 0, len(names))
	for _, name := range names {
		src, err := util.ReadFile(state.Filesystem, name)
		if err != nil {
			return errorReply(err), err
		}
		srcs = append(srcs, loader.Source{Name: name, Src: src})
	}
	prog, err := loader.LoadSources(state.context(), srcs, loader.WithWorkers(state.Config.WorkerCount()))
	if err != nil {
		return errorReply(err), err
	}

	result, err := engine.Scan(state.context(), prog, engine.ScanOptions{
		Analysis: state.Config.Analysis,
		Workers:  state.Config.Workers,
		ReadFile: func(name string) ([]byte, error) {
			return util.ReadFile(state.Filesystem, name)
		},
	})
	if err != nil {
		return errorReply(err), err
	}

	opportunities := make([]engine.SliceSummary, 0, len(result.Opportunities))
	for _, sl := range result.Opportunities {
		opportunities = append(opportunities, engine.Summarize(prog, sl))
	}
	groups := make([]map[string]interface{}, 0, len(result.Groups))
	for _, g := range result.Groups {
		members := make([]engine.SliceSummary, 0, len(g.Members))
		for _, sl := range g.Members {
			members = append(members, engine.Summarize(prog, sl))
		}
		groups = append(groups, map[string]interface{}{"signature": g.Signature, "slices": members})
	}
	counts := result.Log.Counts()
	return Reply{map[string]interface{}{
		"reply":         "OK",
		"files":         len(prog.Files),
		"methods":       result.Methods,
		"stale":         result.Stale,
		"errors":        counts[refactoring.Error],
		"warnings":      counts[refactoring.Warning],
		"diagnostics":   len(result.Log.Entries) - len(result.Log.Analysis()),
		"opportunities": opportunities,
		"groups":        groups,
		"log":           logEntries(result.Log),
	}}, nil
}

func (s *Scan) Validate(state *State, input map[string]interface{}) (bool, error) {
	if state.State < 2 {
		return false, errors.New("State of 2 (file system configured) is required")
	}
	return true, nil
}

// -=-= Helpers =-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-=-

func validTransformation(input map[string]interface{}) (bool, error) {
	name, ok := input["transformation"].(string)
	if !ok {
		return false, errors.New("Transformation key not found")
	}
	if engine.GetRefactoring(name) == nil {
		return false, errors.New("Transformation given is not a valid refactoring name")
	}
	return true, nil
}

// javaFiles returns the names, relative to the session's file system, of
// the Java files a scan covers.
func javaFiles(state *State) ([]string, error) {
	if state.Mode == "web" {
		names := append([]string(nil), state.Buffers...)
		sort.Strings(names)
		return names, nil
	}
	found, err := loader.Discover([]string{state.Dir}, state.Config)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(found))
	for _, path := range found {
		rel, err := filepath.Rel(state.Dir, path)
		if err != nil {
			return nil, err
		}
		names = append(names, filepath.ToSlash(rel))
	}
	return names, nil
}

func loadFile(state *State, filename string) (*loader.Program, error) {
	src, err := util.ReadFile(state.Filesystem, filename)
	if err != nil {
		return nil, err
	}
	return loader.LoadSource(filename, src)
}

type selection struct {
	filename string
	line     int
}

// takes a map for a text selection, either {filename, line} or
// {filename, offset}, and returns the selected line.  JSON numbers arrive
// as float64.
func parseSelection(prog *loader.Program, input map[string]interface{}) (selection, error) {
	filename := input["filename"].(string)
	if line, found := input["line"]; found {
		l, ok := line.(float64)
		if !ok || l < 1 {
			return selection{}, fmt.Errorf("Invalid line given: %v", line)
		}
		return selection{filename, int(l)}, nil
	}
	if offset, found := input["offset"]; found {
		o, ok := offset.(float64)
		f := prog.File(filename)
		if !ok || o < 0 || f == nil || int(o) > len(f.Src) {
			return selection{}, fmt.Errorf("Invalid offset given: %v", offset)
		}
		return selection{filename, f.Lines.Position(int(o)).Line}, nil
	}
	// no position: whole file
	return selection{filename: filename}, nil
}

func logEntries(log *refactoring.Log) []map[string]interface{} {
	logs := make([]map[string]interface{}, 0)
	if log == nil {
		return logs
	}
	for _, entry := range log.Entries {
		e := map[string]interface{}{"severity": entry.Severity.String(), "message": entry.Message}
		if entry.Filename != "" {
			e["filename"] = entry.Filename
		}
		if entry.Line > 0 {
			e["line"] = entry.Line
		}
		logs = append(logs, e)
	}
	return logs
}
