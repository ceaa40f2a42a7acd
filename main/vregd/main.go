// Copyright © 2025 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// This is the voltage regulator daemon.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/platinasystems/vreg/cmd/vregd"
)

func main() {
	c := &vregd.Command{}
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		c.Close()
	}()
	if err := c.Main(os.Args[1:]...); err != nil {
		fmt.Fprintln(os.Stderr, c, ":", err)
		os.Exit(1)
	}
}
