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

package main

import (
	"context"
	"os"

	"github.com/walteh/smartscp/pkg/log"
)

func main() {
	flags := &rootFlags{}
	rootCmd := newRootCmd(flags)

	// Setup logging before anything can log
	args := os.Args[1:]
	logger := setupLogging(wantsDebug(args))
	ctx := logger.WithContext(context.Background())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.NewUserLoggerTo(ctx, os.Stderr).LogFailure("smartscp failed", err)
		os.Exit(1)
	}
}
