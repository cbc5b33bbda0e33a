// Package cli implements the mockidp command tree.
//
// Commands register themselves on rootCmd from init. serve is the default
// when no subcommand is given. Every command that prints data honours the
// persistent --json flag.
package cli
