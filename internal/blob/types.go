// Package blob is the only entry point to the blob backends. Callers depend on
// Store and open a backend with Open.
package blob

import (
	"mchroma/internal/blob/core"
)

type (
	Driver           = core.Driver
	PutOptions       = core.PutOptions
	SignedURLOptions = core.SignedURLOptions
	Info             = core.Info
	Store            = core.Store
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory

	ContentTypeCSV  = core.ContentTypeCSV
	ContentTypeText = core.ContentTypeText
)

var (
	ErrUnsupported = core.ErrUnsupported
	ErrExists      = core.ErrExists
	ErrNotFound    = core.ErrNotFound
)
