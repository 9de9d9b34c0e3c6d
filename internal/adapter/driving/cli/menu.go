package cli

import (
	"fmt"
	"strconv"
	"strings"
)

// MenuChoice is an entry of the interactive menu.
type MenuChoice int

const (
	ChoiceRegister MenuChoice = iota + 1
	ChoiceSearch
	ChoiceList
	ChoiceDelete
	ChoiceExit
)

var menuLabels = map[MenuChoice]string{
	ChoiceRegister: "Register credential",
	ChoiceSearch:   "Search by application",
	ChoiceList:     "List credentials",
	ChoiceDelete:   "Delete by application",
	ChoiceExit:     "Exit",
}

// Label returns the menu text for the choice.
func (c MenuChoice) Label() string {
	return menuLabels[c]
}

// ParseChoice parses a menu selection. Anything other than 1..5 is
// ErrUnknownCommand.
func ParseChoice(s string) (MenuChoice, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, strings.TrimSpace(s))
	}
	choice := MenuChoice(n)
	if choice < ChoiceRegister || choice > ChoiceExit {
		return 0, fmt.Errorf("%w: %d", ErrUnknownCommand, n)
	}
	return choice, nil
}
