// Package draftkey produces the storage-address prefixes and object keys a
// submission uploads under. Every upload of one submission shares a single
// entity prefix: the server-assigned ID when editing, otherwise the
// client-generated draft identity.
package draftkey

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator defines the interface for key generation strategies
type Generator interface {
	// EntityPrefix returns the address prefix shared by every upload of one
	// submission.
	EntityPrefix(collection, entityID string) string

	// ImageKey creates a key for an image upload under the entity prefix.
	ImageKey(prefix, fileName string) string

	// SectionKey creates a key for a serialized rich-text blob under the
	// entity prefix.
	SectionKey(prefix string) string
}

// DefaultGenerator lays keys out as
// {collection}/{entity}/images/{id}_{filename} and
// {collection}/{entity}/sections/{id}.html.
type DefaultGenerator struct{}

// NewDefaultGenerator creates the standard key generator.
func NewDefaultGenerator() *DefaultGenerator {
	return &DefaultGenerator{}
}

func (g *DefaultGenerator) EntityPrefix(collection, entityID string) string {
	return fmt.Sprintf("%s/%s", sanitizePathComponent(collection), sanitizePathComponent(entityID))
}

func (g *DefaultGenerator) ImageKey(prefix, fileName string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	if fileName != "" {
		return fmt.Sprintf("%s/images/%s_%s", prefix, id, sanitizeFilename(fileName))
	}
	return fmt.Sprintf("%s/images/%s", prefix, id)
}

func (g *DefaultGenerator) SectionKey(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s/sections/%s.html", prefix, id)
}

// CustomFuncGenerator allows callers to provide their own key layout.
type CustomFuncGenerator struct {
	EntityPrefixFunc func(collection, entityID string) string
	ImageKeyFunc     func(prefix, fileName string) string
	SectionKeyFunc   func(prefix string) string
}

func (g *CustomFuncGenerator) EntityPrefix(collection, entityID string) string {
	return g.EntityPrefixFunc(collection, entityID)
}

func (g *CustomFuncGenerator) ImageKey(prefix, fileName string) string {
	return g.ImageKeyFunc(prefix, fileName)
}

func (g *CustomFuncGenerator) SectionKey(prefix string) string {
	return g.SectionKeyFunc(prefix)
}

// Helper functions for path sanitization
func sanitizeFilename(filename string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return replacer.Replace(filename)
}

func sanitizePathComponent(component string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return strings.ToLower(replacer.Replace(component))
}
