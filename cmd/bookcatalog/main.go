// Package main provides the entry point for the bookcatalog CLI.
package main

func main() {
	Execute()
}
