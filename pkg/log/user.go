// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"context"
	"io"
	"os"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"

	"github.com/walteh/smartscp/pkg/status"
)

// 📢 UserLogger prints end-of-run feedback: warnings, the summary and failures
type UserLogger struct {
	log zerolog.Logger // for debug/error logging
	out io.Writer
}

// 🎯 NewUserLogger creates a new user logger writing to stdout
func NewUserLogger(ctx context.Context) *UserLogger {
	return NewUserLoggerTo(ctx, os.Stdout)
}

// 🎯 NewUserLoggerTo creates a new user logger writing to out
func NewUserLoggerTo(ctx context.Context, out io.Writer) *UserLogger {
	return &UserLogger{
		log: *zerolog.Ctx(ctx),
		out: out,
	}
}

// ⚠️ LogWarnings prints one line per recorded warning
func (u *UserLogger) LogWarnings(warnings []status.Warning) {
	if len(warnings) == 0 {
		return
	}
	printer := pterm.Warning.WithPrefix(pterm.Prefix{Text: "⚠️"}).WithWriter(u.out)
	for _, w := range warnings {
		printer.Println(status.FormatWarning(w))
	}
}

// 🙈 LogIgnored lists ignored paths, only at debug level
func (u *UserLogger) LogIgnored(paths []string) {
	for _, p := range paths {
		u.log.Debug().Str("path", p).Msg("ignored")
	}
}

// 📊 LogSummary prints the end-of-run summary
func (u *UserLogger) LogSummary(summary string, dryRun bool) {
	prefix := "📦"
	if dryRun {
		prefix = "🧪"
	}
	pterm.Success.WithPrefix(pterm.Prefix{Text: prefix}).WithWriter(u.out).Println(summary)
	u.log.Info().Bool("dry_run", dryRun).Msg(summary)
}

// ❌ LogFailure prints a fatal error
func (u *UserLogger) LogFailure(description string, err error) {
	pterm.Error.WithPrefix(pterm.Prefix{Text: "❌"}).WithWriter(u.out).Println(description)
	if err != nil {
		pterm.Error.WithWriter(u.out).Println(err)
	}
	u.log.Error().Err(err).Msg(description)
}
