package permissions

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Actions a permission name may carry.
const (
	ActionCreate = "create"
	ActionView   = "view"
	ActionGet    = "get"
	ActionModify = "modify"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

var actions = []string{ActionCreate, ActionView, ActionGet, ActionModify, ActionUpdate, ActionDelete}

var namePattern = regexp.MustCompile(`^([a-z]+)-(` + strings.Join(actions, "|") + `)$`)

var (
	// ErrInvalidName marks names that do not match <entity>-<action>.
	ErrInvalidName = errors.New("permission: name must match <entity>-<action>")
	// ErrUnknownEntity marks names whose entity is not registered.
	ErrUnknownEntity = errors.New("permission: unknown entity")

	errEmptyEntity     = errors.New("permission: entity name is required")
	errInvalidEntity   = errors.New("permission: entity name must contain letters only")
	errDuplicateEntity = errors.New("permission: entity already registered")
)

// Entity is a record type that permissions can be granted on.
type Entity struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type entityRegistry struct {
	mu       sync.RWMutex
	entities map[string]Entity
}

var globalRegistry = &entityRegistry{
	entities: make(map[string]Entity),
}

var entityPattern = regexp.MustCompile(`^[a-z]+$`)

// RegisterEntity makes an entity type available for permission names. Names are lower-cased.
func RegisterEntity(name, description string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return errEmptyEntity
	}
	if !entityPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", errInvalidEntity, name)
	}

	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	if _, exists := globalRegistry.entities[name]; exists {
		return fmt.Errorf("%w: %s", errDuplicateEntity, name)
	}
	globalRegistry.entities[name] = Entity{Name: name, Description: strings.TrimSpace(description)}
	return nil
}

// IsEntity reports whether name is a registered entity.
func IsEntity(name string) bool {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	_, ok := globalRegistry.entities[name]
	return ok
}

// Entities lists registered entities sorted by name.
func Entities() []Entity {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	out := make([]Entity, 0, len(globalRegistry.entities))
	for _, entity := range globalRegistry.entities {
		out = append(out, entity)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Actions returns the accepted permission actions.
func Actions() []string {
	return append([]string(nil), actions...)
}

// Name joins an entity and action into a permission name.
func Name(entity, action string) string {
	return entity + "-" + action
}

// Parse splits a permission name, checking the pattern and the entity registry.
func Parse(name string) (entity, action string, err error) {
	match := namePattern.FindStringSubmatch(name)
	if match == nil {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if !IsEntity(match[1]) {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownEntity, match[1])
	}
	return match[1], match[2], nil
}

// ValidateName reports whether name is an acceptable permission name.
func ValidateName(name string) error {
	_, _, err := Parse(name)
	return err
}

// reset clears registry entries. Intended for testing only.
func reset() {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	globalRegistry.entities = make(map[string]Entity)
}
