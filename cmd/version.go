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
package cmd

import (
	"fmt"
	"strings"

	"github.com/penny-vault/pvedgar/pkginfo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	showDeps      bool
	shortVersion  bool
	showUserAgent bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version info",
	Run: func(cmd *cobra.Command, args []string) {
		if shortVersion {
			fmt.Println(pkginfo.Version)
		} else {
			fmt.Println(pkginfo.BuildVersionString())
		}

		if showUserAgent {
			fmt.Printf("\nUser-Agent: %s\n", pkginfo.UserAgent(viper.GetString("edgar.user_agent")))
		}

		if showDeps {
			fmt.Printf("\n\n")
			fmt.Println(strings.Join(pkginfo.GetDependencyList(), "\n"))
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&showDeps, "deps", "d", false, "print dependencies")
	versionCmd.Flags().BoolVarP(&shortVersion, "short", "s", false, "only print version number")
	versionCmd.Flags().BoolVarP(&showUserAgent, "show-agent", "a", false, "print the User-Agent sent to EDGAR")
}
