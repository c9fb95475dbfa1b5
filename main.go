package main

import "github.com/mangoautomation/dashboard-data-apis/cmd"

func main() {
	cmd.Execute()
}
