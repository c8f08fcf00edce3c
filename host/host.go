// Package host selects the process.Provider for the running operating system.
package host
