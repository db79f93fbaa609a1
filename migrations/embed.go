// Package migrations embeds the database schema so the service binary
// migrates itself on startup.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed *.sql
var files embed.FS

func FS() fs.FS {
	return files
}
