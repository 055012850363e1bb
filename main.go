package main

import "github.com/ValentinKolb/csIPC/cmd"

func main() {
	cmd.Execute()
}
