package billing

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// confirmInput is where confirmation answers are read from.
var confirmInput io.Reader = os.Stdin

// flagValue returns the value of the first --name=value argument with the given prefix.
func flagValue(args []string, prefix string) string {
	for _, arg := range args {
		if strings.HasPrefix(arg, prefix) {
			return arg[len(prefix):]
		}
	}
	return ""
}

func hasFlag(args []string, flags ...string) bool {
	for _, arg := range args {
		for _, f := range flags {
			if arg == f {
				return true
			}
		}
	}
	return false
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimPrefix(s, "#"))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id: %s", s)
	}
	return id, nil
}

// confirm asks a yes/no question unless --yes or -y is among args.
func confirm(question string, args []string) bool {
	if hasFlag(args, "--yes", "-y") {
		return true
	}

	fmt.Printf("%s%s%s This action cannot be undone. [y/N] ", Yellow, question, Reset)
	answer, _ := bufio.NewReader(confirmInput).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
