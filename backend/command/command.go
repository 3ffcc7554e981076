// Package command parses decoded protocol lines into chat commands.
package command

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxNameLength is the exclusive upper bound (in runes) for room and user names.
const MaxNameLength = 20

var (
	ErrMalformed = errors.New("malformed command")

	errEmpty       = errors.New("command cannot be empty")
	errRoomName    = errors.New("invalid room name")
	errUsername    = errors.New("invalid username")
	errJoinArgsNum = errors.New("join expects exactly two arguments")
)

type Command interface {
	command()
}

type JoinRoom struct {
	Room     string
	Username string
}

type BroadcastMessage struct {
	Text string
}

func (JoinRoom) command()         {}
func (BroadcastMessage) command() {}

// Parse turns one line into a command. Every error it returns wraps ErrMalformed.
func Parse(line string) (Command, error) {
	line = strings.ReplaceAll(line, "\n", "")
	fields := strings.FieldsFunc(line, isASCIISpace)
	if len(fields) == 0 {
		return nil, errors.Join(ErrMalformed, errEmpty)
	}

	if !strings.EqualFold(fields[0], "join") {
		return BroadcastMessage{Text: line}, nil
	}

	args := fields[1:]
	if len(args) > 0 && !ValidName(args[0]) {
		return nil, errors.Join(ErrMalformed, fmt.Errorf("%w: %q", errRoomName, args[0]))
	}
	if len(args) > 1 && !ValidName(args[1]) {
		return nil, errors.Join(ErrMalformed, fmt.Errorf("%w: %q", errUsername, args[1]))
	}
	if len(args) != 2 {
		return nil, errors.Join(ErrMalformed, errJoinArgsNum)
	}
	return JoinRoom{Room: args[0], Username: args[1]}, nil
}

// ValidName reports whether s is usable as a room or user name.
func ValidName(s string) bool {
	n := utf8.RuneCountInString(s)
	return n > 0 && n < MaxNameLength
}

func isASCIISpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
