// Command vmsimctl runs and inspects virtual memory simulations.
package main

import "github.com/sarchlab/vmemsim/cmd/vmsimctl/cmd"

func main() {
	cmd.Execute()
}
