// Package toolfactory provides the configuration and construction of the tools registry, and restores tools from snapshots.
package toolfactory
