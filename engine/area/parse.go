package area

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nathoo/tilecore/types"
)

var flagNames = []struct {
	name string
	flag types.TileFlags
}{
	{"nowalk", types.FlagNowalk},
	{"nowalk_player", types.FlagNowalkPlayer},
	{"nowalk_npc", types.FlagNowalkNPC},
}

// ParseFlags parses a comma-separated flag list such as
// "nowalk,nowalk_npc". Unknown names are an error.
func ParseFlags(s string) (types.TileFlags, error) {
	var flags types.TileFlags
	for _, part := range strings.Split(s, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		found := false
		for _, fn := range flagNames {
			if fn.name == name {
				flags |= fn.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("invalid tile flag %q", name)
		}
	}
	return flags, nil
}

// FormatFlags is the inverse of ParseFlags.
func FormatFlags(flags types.TileFlags) string {
	var names []string
	for _, fn := range flagNames {
		if flags&fn.flag != 0 {
			names = append(names, fn.name)
		}
	}
	return strings.Join(names, ",")
}

// ParseExit parses "area,x,y,orientation", e.g.
// "areas/secret_room.tmx,4,5,0.0".
func ParseExit(s string) (types.ExitLink, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return types.ExitLink{}, fmt.Errorf("exit %q: want area,x,y,orientation", s)
	}
	target := strings.TrimSpace(parts[0])
	if target == "" {
		return types.ExitLink{}, fmt.Errorf("exit %q: empty area", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return types.ExitLink{}, fmt.Errorf("exit %q: x: %w", s, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return types.ExitLink{}, fmt.Errorf("exit %q: y: %w", s, err)
	}
	o, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
	if err != nil {
		return types.ExitLink{}, fmt.Errorf("exit %q: orientation: %w", s, err)
	}
	return types.ExitLink{Area: target, X: x, Y: y, Orientation: o}, nil
}

// FormatExit is the inverse of ParseExit.
func FormatExit(e types.ExitLink) string {
	return fmt.Sprintf("%s,%d,%d,%s", e.Area, e.X, e.Y, strconv.FormatFloat(e.Orientation, 'f', -1, 64))
}

var exitDirNames = [types.ExitDirections]string{"", "up", "down", "left", "right"}

// ParseExitDirection maps "", "up", "down", "left", "right" to a direction.
func ParseExitDirection(s string) (types.ExitDirection, error) {
	for i, n := range exitDirNames {
		if n == s {
			return types.ExitDirection(i), nil
		}
	}
	return 0, fmt.Errorf("invalid exit direction %q", s)
}

// ExitDirectionName returns the content name of dir ("" for normal).
func ExitDirectionName(dir types.ExitDirection) string {
	if dir < 0 || dir >= types.ExitDirections {
		return ""
	}
	return exitDirNames[dir]
}
