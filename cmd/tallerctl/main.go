// Command tallerctl runs one-off reports, imports and rate refreshes against
// the configured backend.
package main

func main() {
	Execute()
}
