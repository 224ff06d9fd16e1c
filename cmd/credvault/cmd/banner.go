package cmd

import (
	"fmt"
	"io"
)

const banner = `
                      _                  _ _
  ___ _ __ ___  __| |_   ____ _ _   _| | |_
 / __| '__/ _ \/ _` + "`" + ` \ \ / / _` + "`" + ` | | | | | __|
| (__| | |  __/ (_| |\ V / (_| | |_| | | |_
 \___|_|  \___|\__,_| \_/ \__,_|\__,_|_|\__|
`

func printBanner(w io.Writer) {
	fmt.Fprintf(w, "\x1b[34m%s\x1b[0m\n", banner)
	fmt.Fprintf(w, "\x1b[32m  Credential Vault - Version %s\x1b[0m\n\n", Version)
}
