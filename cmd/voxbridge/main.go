// Package main is the entry point for voxbridge.
package main

func main() {
	Execute()
}
