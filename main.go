// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/simplensm/simplensm/cmd/simplensm"

func main() {
	cmd.Execute()
}
