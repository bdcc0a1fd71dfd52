package main

import (
	cmd "github.com/greenlight-dev/greenlight/cmd"
)

func main() {
	cmd.Execute()
}
