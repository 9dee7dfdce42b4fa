// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/dasien/ClaudeMultiAgentUI-sub000/cmd/cmat"

func main() {
	cmd.Execute()
}
