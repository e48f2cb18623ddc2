// The main package for the odms executable.
package main

import (
	"github.com/jlanderson1802/OD-Market-Share-Estimator/cmd"
)

func main() {
	cmd.Execute()
}
