package bridge

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// CommandKind is the verb of an outbound command string.
type CommandKind string

const (
	CommandTrigger CommandKind = "trigger"
	CommandStop    CommandKind = "stop"
	CommandWarning CommandKind = "warning"
)

// ErrMalformedCommand is returned by ParseCommand for strings it cannot decode.
var ErrMalformedCommand = errors.New("malformed command")

// Command is a decoded outbound command.
type Command struct {
	Kind   CommandKind
	Name   string // sound name or URI (trigger, stop)
	Volume int32  // trigger
	Index  int32  // trigger
	Text   string // warning
}

// TriggerCommand encodes "trigger,<name>,<volume>,<index>".
// The index is always written so names ending in ",<digits>" stay unambiguous.
func TriggerCommand(name string, volume, index int32) string {
	return fmt.Sprintf("%s,%s,%d,%d", CommandTrigger, name, volume, index)
}

// StopCommand encodes "stop,<name>".
func StopCommand(name string) string {
	return fmt.Sprintf("%s,%s", CommandStop, name)
}

// WarningCommand encodes a free-form diagnostic.
func WarningCommand(text string) string {
	return fmt.Sprintf("%s,%s", CommandWarning, text)
}

// ParseCommand decodes a command string. Triggers with four or more fields
// carry volume and index in the last two; with three fields the index is 0.
func ParseCommand(s string) (Command, error) {
	verb, rest, found := strings.Cut(s, ",")
	if !found {
		return Command{}, fmt.Errorf("%w: %q", ErrMalformedCommand, s)
	}

	switch CommandKind(verb) {
	case CommandWarning:
		return Command{Kind: CommandWarning, Text: rest}, nil

	case CommandStop:
		if rest == "" {
			return Command{}, fmt.Errorf("%w: stop without name", ErrMalformedCommand)
		}
		return Command{Kind: CommandStop, Name: rest}, nil

	case CommandTrigger:
		fields := strings.Split(rest, ",")
		if len(fields) < 2 {
			return Command{}, fmt.Errorf("%w: %q", ErrMalformedCommand, s)
		}
		cmd := Command{Kind: CommandTrigger}
		numeric := fields[len(fields)-1:]
		nameFields := fields[:len(fields)-1]
		if len(fields) >= 3 {
			numeric = fields[len(fields)-2:]
			nameFields = fields[:len(fields)-2]
		}
		volume, err := strconv.ParseInt(numeric[0], 10, 32)
		if err != nil {
			return Command{}, fmt.Errorf("%w: volume %q: %v", ErrMalformedCommand, numeric[0], err)
		}
		cmd.Volume = int32(volume)
		if len(numeric) == 2 {
			index, err := strconv.ParseInt(numeric[1], 10, 32)
			if err != nil {
				return Command{}, fmt.Errorf("%w: index %q: %v", ErrMalformedCommand, numeric[1], err)
			}
			cmd.Index = int32(index)
		}
		cmd.Name = strings.Join(nameFields, ",")
		if cmd.Name == "" {
			return Command{}, fmt.Errorf("%w: trigger without name", ErrMalformedCommand)
		}
		return cmd, nil

	default:
		return Command{}, fmt.Errorf("%w: unknown verb %q", ErrMalformedCommand, verb)
	}
}
