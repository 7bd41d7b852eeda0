// Package errors provides standardized error definitions for the
// window-counter server. All error definitions are centralized here to
// ensure consistency across packages.
package errors
