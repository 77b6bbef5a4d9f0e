package main

// main runs the convctl root command. Build metadata lives in root.go and is
// injected with -ldflags.
func main() {
	Execute()
}
