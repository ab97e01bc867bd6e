// Package cli implements the retrograde command line interface.
//
// Commands share a small set of global flags (--verbose, --format) and
// report failures through ExitError so main can map them to process exit
// codes: 0 for success, 1 for simulation or assertion failures, 2 for
// command errors such as missing files.
package cli
