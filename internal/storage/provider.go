// Package storage defines the chart library file-system abstraction.
package storage

import "github.com/starford/numeral/internal/models"

// Ext is the file extension of chart files.
const Ext = ".chart"

// Provider is the interface for chart library file operations.
type Provider interface {
	// List returns metadata for every chart file under dir (relative to the library root).
	List(dir string) ([]models.ChartFile, error)
	// Read returns the raw bytes of the file at path (relative to the library root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to the library root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to the library root).
	Delete(path string) error
}
