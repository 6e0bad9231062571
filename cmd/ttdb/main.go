// cmd/ttdb is the interactive REPL client: it reads commands from stdin,
// forwards each to a running ttdbd over its Unix socket via pkg/client, and
// prints the single reply.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"ttdb/pkg/client"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ttdb: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("ttdb", pflag.ExitOnError)
	socketPath := flags.String("socket", "./ttdb_socket", "location of the Unix socket to connect to")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	c, err := client.Dial(*socketPath)
	if err != nil {
		return err
	}
	defer c.Close()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		// END is a client-local command that closes the connection; it is
		// never sent over the wire (spec.md §6).
		if strings.EqualFold(line, "END") {
			return nil
		}

		reply, err := c.Do(line)
		if err != nil {
			return err
		}
		fmt.Println(reply)
	}
	return scanner.Err()
}
