// tapectl sends one control command to a running tapelightd.
//
//	tapectl -to localhost:9000 /device/tape1/brightness 0.8
//	tapectl /device/tape1/segment/main/effect rainbow
//	tapectl /effect/rainbow1/segment/main/speed 25
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/coreman2200/tapelight/internal/osc"
)

func main() {
	to := flag.String("to", "localhost:9000", "daemon control address")
	flag.Parse()

	argv := flag.Args()
	if len(argv) < 1 {
		fmt.Fprintln(os.Stderr, "usage: tapectl [-to host:port] /address [args...]")
		os.Exit(2)
	}

	c, err := osc.Dial(*to)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tapectl:", err)
		os.Exit(1)
	}
	defer c.Close()

	// Numeric-looking arguments go as float64, everything else as string.
	var args []any
	for _, a := range argv[1:] {
		if f, err := strconv.ParseFloat(a, 64); err == nil {
			args = append(args, f)
		} else {
			args = append(args, a)
		}
	}
	if err := c.Send(argv[0], args...); err != nil {
		fmt.Fprintln(os.Stderr, "tapectl:", err)
		os.Exit(1)
	}
}
