// Command meterclient reads smart meter data from the metering REST API.
//
// It can print metering point details and measurement series, copy series
// into TimescaleDB, and serve the stored samples over HTTP.
//
// Usage:
//
//	meterclient [command] [flags]
//
// The commands are:
//
//	meters [meterID]   print metering point details
//	series             print a measurement series
//	sync               store a measurement series in the database
//	serve              bootstrap, schedule syncs and serve stored samples
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
