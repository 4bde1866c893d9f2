// SPDX-License-Identifier: MPL-2.0

// Command scriptc compiles shell scripts into validated artifacts and runs
// them.
package main

import cmd "github.com/invowk/scriptc/cmd/scriptc"

func main() {
	cmd.Execute()
}
