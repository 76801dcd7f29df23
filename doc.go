// Package main provides the appdist CLI tool for signing, notarizing and
// packaging macOS application bundles.
//
// For the library API, see the subpackages:
//
//	import "github.com/appdist/appdist/pkg/sign"
//	import "github.com/appdist/appdist/pkg/dmg"
//	import "github.com/appdist/appdist/pkg/notarize"
//
// # Installation
//
// Install the CLI:
//
//	go install github.com/appdist/appdist@latest
package main
