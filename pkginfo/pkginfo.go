// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package pkginfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// ProgramName identifies pvedgar in version output and outbound requests
const ProgramName = "pvedgar"

var (
	BuildDate  string
	CommitHash string
	Version    string
)

func version() string {
	if Version == "" {
		return "dev"
	}
	return Version
}

// UserAgent prefixes contact with a product token, e.g.
// "pvedgar/1.2.0 Jane Doe jane@example.com". EDGAR rejects requests whose
// agent carries no contact.
func UserAgent(contact string) string {
	contact = strings.TrimSpace(contact)
	if strings.HasPrefix(contact, ProgramName+"/") {
		return contact
	}
	return fmt.Sprintf("%s/%s %s", ProgramName, version(), contact)
}

// BuildVersionString returns a version info string suitable for printing on the command line
func BuildVersionString() string {
	osArch := runtime.GOOS + "/" + runtime.GOARCH

	return fmt.Sprintf(`%s %s %s

Build Date: %s
Commit: %s
Built with: %s`, ProgramName, version(), osArch, BuildDate, CommitHash, runtime.Version())
}

// GetDependencyList returns every module linked into the binary, each of the
// form `path="version"`
func GetDependencyList() []string {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		log.Error().Msg("could not get package build info")
		return nil
	}

	deps := make([]string, 0, len(buildInfo.Deps))
	for _, dep := range buildInfo.Deps {
		deps = append(deps, fmt.Sprintf("%s=%q", dep.Path, dep.Version))
	}

	sort.Strings(deps)
	return deps
}
