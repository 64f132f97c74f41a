package detection

import (
	"errors"
	"path/filepath"
	"strings"
)

// Category is one of the fixed wildlife classes the detector can report.
type Category string

const (
	Bull     Category = "Bull"
	Nilgai   Category = "Nilgai"
	Pig      Category = "Pig"
	Peacock  Category = "Peacock"
	Squirrel Category = "Squirrel"
	Jackal   Category = "Jackal"
	Cat      Category = "Cat"
	Dog      Category = "Dog"
	Goat     Category = "Goat"
	Mouse    Category = "Mouse"
	Insect   Category = "Insect"
	Person   Category = "Person"
	Elephant Category = "Elephant"
	Monkey   Category = "Monkey"
	Bird     Category = "Bird"

	// Unknown is recorded when a file name does not match any category.
	Unknown Category = "Unknown"
)

// ErrUnknownCategory is returned when a name is not a recognised category.
var ErrUnknownCategory = errors.New("unknown category")

// allCategories is in counter column order.
var allCategories = [...]Category{
	Bull, Nilgai, Pig, Peacock, Squirrel, Jackal, Cat, Dog,
	Goat, Mouse, Insect, Person, Elephant, Monkey, Bird, Unknown,
}

var categoryByLower = func() map[string]Category {
	m := make(map[string]Category, len(allCategories))
	for _, c := range allCategories {
		m[strings.ToLower(string(c))] = c
	}
	return m
}()

// Categories returns every category, Unknown last.
func Categories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories[:])
	return out
}

// ParseCategory matches name case-insensitively against the known categories.
func ParseCategory(name string) (Category, bool) {
	c, ok := categoryByLower[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// CategoryFromPath maps an image path such as /ngl/Jackal.jpg to its category.
func CategoryFromPath(path string) Category {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if c, ok := ParseCategory(stem); ok {
		return c
	}
	return Unknown
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	p, ok := ParseCategory(string(c))
	return ok && p == c
}

func (c Category) String() string { return string(c) }
