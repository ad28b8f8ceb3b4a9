package main

import "crm-bridge/cmd"

func main() {
	cmd.Execute()
}
