package aggregate

import (
	"strings"
)

// Level identifies a spatial grouping of devices. Canonical names are the
// English column names; Spanish synonyms are accepted on input because the
// original deployments used them.
type Level string

const (
	LevelRoom       Level = "room"
	LevelDepartment Level = "department"
	LevelFloor      Level = "floor"
	LevelBuilding   Level = "building"
)

var levelSynonyms = map[string]Level{
	"room":         LevelRoom,
	"sala":         LevelRoom,
	"department":   LevelDepartment,
	"departamento": LevelDepartment,
	"floor":        LevelFloor,
	"piso":         LevelFloor,
	"building":     LevelBuilding,
	"edificio":     LevelBuilding,
}

// ParseLevel resolves a level name or synonym, case-insensitively.
// Returns ErrInvalidLevel for anything unrecognized.
func ParseLevel(s string) (Level, error) {
	if lvl, ok := levelSynonyms[strings.ToLower(strings.TrimSpace(s))]; ok {
		return lvl, nil
	}
	return "", ErrInvalidLevel
}

// Column returns the device table column this level groups by.
func (l Level) Column() string {
	return string(l)
}
