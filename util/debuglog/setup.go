// Copyright 2019 eBay Inc.
// Primary authors: Simon Fell, Diego Ongaro,
//                  Raymond Kroeker, and Sathish Kandasamy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package debuglog configures Logrus. It configures Logrus to print out file
// and line info, to use UTC timestamps with subsecond precision, etc.
//
// This should be used from every main package. When you import this package, it
// will run Configure with default options. Users should document that in their
// import lines or call Configure again explicitly.
package debuglog

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

func init() {
	if err := Configure(Options{}); err != nil {
		panic(err)
	}
}

// Options are used to control the debug logger's behavior. The default Options
// are represented by the zero value.
type Options struct {
	// If true, the logger will highlight some output with ANSI colors. This
	// might not work in all situations, such as when writing into a file.
	//
	// This may be overridden by setting the environment variable
	// "CLICOLOR_FORCE" to "1".
	ForceColors bool

	// If not nil, this will set up the given logger. If nil, it will set up the
	// default Logrus logger (see logrus.StandardLogger()).
	//
	// This is primarily used for unit testing.
	Logger *logrus.Logger

	// If non-empty, the name of the minimum level to log, such as "debug".
	// If empty, the logger's level is left as it is.
	Level string

	// Either TextFormat or JSONFormat. Defaults to TextFormat if empty.
	Format string
}

// Log formats.
const (
	// TextFormat logs one line of key=value pairs per entry.
	TextFormat = "text"
	// JSONFormat logs one JSON object per entry, for log collectors.
	JSONFormat = "json"
)

// Configure sets up the debug logger. It's safe to call more than once: it
// replaces any hooks of the logger. It should not be called concurrently
// (results are undefined if called concurrently with different Options). It
// returns an error if Level isn't a valid level name or Format isn't a known
// format, in which case the logger is left unchanged.
func Configure(opts Options) error {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	format := opts.Format
	if format == "" {
		format = TextFormat
	}
	var formatter logrus.Formatter
	switch format {
	case TextFormat:
		formatter = &logrus.TextFormatter{
			FullTimestamp:             true,
			TimestampFormat:           timestampFormat,
			ForceColors:               opts.ForceColors,
			EnvironmentOverrideColors: true,
		}
	case JSONFormat:
		formatter = &logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
		}
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	if opts.Level != "" {
		level, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return err
		}
		opts.Logger.SetLevel(level)
	}
	opts.Logger.SetReportCaller(true)
	hooks := make(logrus.LevelHooks)
	hooks.Add(utcHook{})
	hooks.Add(newFilenameHook())
	opts.Logger.ReplaceHooks(hooks)
	opts.Logger.SetFormatter(formatter)
	opts.Logger.WithFields(logrus.Fields{
		"forceColors": opts.ForceColors,
		"format":      format,
	}).Debug("Initialized Logrus")
	return nil
}

const timestampFormat = "2006-01-02 15:04:05.000000 MST"

// utcHook implements logrus.Hook. Its purpose is to convert the timestamp to
// UTC.
type utcHook struct{}

func (utcHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (utcHook) Fire(entry *logrus.Entry) error {
	entry.Time = entry.Time.UTC()
	return nil
}

// filenameHook implements logrus.Hook. Its purpose is to strip the prefix of
// the file path up to the root of the module, which is otherwise repeated
// with just about every log message.
type filenameHook struct {
	prefix string
}

func newFilenameHook() filenameHook {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return filenameHook{
			prefix: "",
		}
	}
	localPath := "util/debuglog/setup.go"
	if !strings.HasSuffix(file, localPath) {
		panic(fmt.Sprintf("Trying to calculate filename prefix for logging "+
			"but this code got moved. Got %v which doesn't end in %v",
			file, localPath))
	}
	return filenameHook{
		prefix: file[:len(file)-len(localPath)],
	}
}

func (hook filenameHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (hook filenameHook) Fire(entry *logrus.Entry) error {
	if entry.HasCaller() {
		entry.Caller.File = strings.TrimPrefix(entry.Caller.File, hook.prefix)
	}
	return nil
}
