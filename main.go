package main

import "github.com/ValentinKolb/ixKV/cmd"

func main() {
	cmd.Execute()
}
