package jobs

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/okian/rankforge/internal/domain/model"
)

// Sentinel kinds for task argument errors.
var (
	ErrBadArguments = errors.New("bad task arguments")
)

func parseUserMode(args []string) (int64, model.Mode, error) {
	if len(args) < 2 {
		return 0, 0, fmt.Errorf("%w: expected <user> <mode>", ErrBadArguments)
	}

	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: user id %q", ErrBadArguments, args[0])
	}

	mode, err := parseMode(args[1])
	if err != nil {
		return 0, 0, err
	}
	return userID, mode, nil
}

func parseUser(args []string) (int64, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("%w: expected <user>", ErrBadArguments)
	}

	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: user id %q", ErrBadArguments, args[0])
	}
	return userID, nil
}

func parseMode(arg string) (model.Mode, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 0 || n >= model.ModeCount {
		return 0, fmt.Errorf("%w: mode %q", ErrBadArguments, arg)
	}
	return model.Mode(n), nil
}
