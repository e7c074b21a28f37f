// Package testutil provides fluent builders and run harnesses shared by the
// package tests. Not part of the public API.
package testutil
