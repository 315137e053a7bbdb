// Package parser converts player command lines into Commands.
// Intentionally dumb: no grammar, just word lookup.
package parser

import (
	"strings"

	"github.com/nathoo/tilecore/types"
)

// Verbs understood by Parse.
const (
	VerbLook  = "look"
	VerbGo    = "go"
	VerbUse   = "use"
	VerbFire  = "fire"
	VerbGoto  = "goto"
	VerbMap   = "map"
	VerbAgain = "again"
)

// Command is one parsed player command.
type Command struct {
	Verb string
	Dir  types.ExitDirection // set for VerbGo
	Args []string            // remaining words, original case
}

var directions = map[string]types.ExitDirection{
	"n": types.ExitUp, "north": types.ExitUp, "up": types.ExitUp, "u": types.ExitUp,
	"s": types.ExitDown, "south": types.ExitDown, "down": types.ExitDown, "d": types.ExitDown,
	"w": types.ExitLeft, "west": types.ExitLeft, "left": types.ExitLeft,
	"e": types.ExitRight, "east": types.ExitRight, "right": types.ExitRight,
}

var verbAliases = map[string]string{
	"l":        VerbLook,
	"x":        VerbLook,
	"examine":  VerbLook,
	"walk":     VerbGo,
	"move":     VerbGo,
	"step":     VerbGo,
	"press":    VerbUse,
	"push":     VerbUse,
	"activate": VerbUse,
	"trigger":  VerbFire,
	"run":      VerbFire,
	"teleport": VerbGoto,
	"warp":     VerbGoto,
	"m":        VerbMap,
	"g":        VerbAgain,
}

// Parse converts a raw command line into a Command. A bare direction is
// shorthand for "go <direction>". Unknown verbs are returned as typed so
// the caller can report them.
func Parse(input string) Command {
	fields := strings.Fields(strings.TrimSpace(input))
	if len(fields) == 0 {
		return Command{}
	}

	verb := strings.ToLower(fields[0])
	args := fields[1:]

	if dir, ok := directions[verb]; ok && len(args) == 0 {
		return Command{Verb: VerbGo, Dir: dir}
	}
	if alias, ok := verbAliases[verb]; ok {
		verb = alias
	}

	cmd := Command{Verb: verb, Args: args}
	if verb == VerbGo {
		cmd.Args = nil
		if len(args) == 1 {
			cmd.Dir = directions[strings.ToLower(args[0])]
		}
	}
	return cmd
}

// DirectionName returns the compass name of a step direction.
func DirectionName(dir types.ExitDirection) string {
	switch dir {
	case types.ExitUp:
		return "north"
	case types.ExitDown:
		return "south"
	case types.ExitLeft:
		return "west"
	case types.ExitRight:
		return "east"
	}
	return ""
}
