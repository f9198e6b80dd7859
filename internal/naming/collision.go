package naming

import (
	"fmt"
	"log/slog"
)

// CollisionResolver tracks registered names and resolves collisions
// by applying numeric suffixes when duplicates are detected.
type CollisionResolver struct {
	seenTypes   map[string]string            // Go type name → source table
	seenMethods map[string]map[string]string // type name → method name → source
	logger      *slog.Logger
}

// NewCollisionResolver creates a new collision resolver.
func NewCollisionResolver(logger *slog.Logger) *CollisionResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &CollisionResolver{
		seenTypes:   make(map[string]string),
		seenMethods: make(map[string]map[string]string),
		logger:      logger,
	}
}

// RegisterType registers a Go type name and returns the resolved name.
// If a collision occurs, applies a numeric suffix and logs a warning.
func (c *CollisionResolver) RegisterType(typeName, tableName string) string {
	return c.resolveCollision(typeName, c.seenTypes, "table:"+tableName)
}

// RegisterMethod records a generated method on a type. It reports false when the
// name was already taken by a different source; methods are never renamed because
// other generated code refers to them by name.
func (c *CollisionResolver) RegisterMethod(typeName, methodName, source string) bool {
	if c.seenMethods[typeName] == nil {
		c.seenMethods[typeName] = make(map[string]string)
	}
	if existing, ok := c.seenMethods[typeName][methodName]; ok {
		return existing == source
	}
	c.seenMethods[typeName][methodName] = source
	return true
}

// resolveCollision attempts to register a name in the given map.
// Registering the same source twice returns the name it already holds.
// If the name belongs to another source, finds the next available numeric suffix.
func (c *CollisionResolver) resolveCollision(name string, seen map[string]string, source string) string {
	existingSource, exists := seen[name]
	if !exists {
		seen[name] = source
		return name
	}
	if existingSource == source {
		return name
	}

	for i := 2; ; i++ {
		suffixed := fmt.Sprintf("%s%d", name, i)
		owner, taken := seen[suffixed]
		if taken && owner == source {
			return suffixed
		}
		if !taken {
			c.logger.Warn("naming collision detected, applying suffix",
				slog.String("name", name),
				slog.String("existing_source", existingSource),
				slog.String("new_source", source),
				slog.String("renamed", suffixed),
			)
			seen[suffixed] = source
			return suffixed
		}
	}
}
