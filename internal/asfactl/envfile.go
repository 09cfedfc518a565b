package asfactl

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/compose-spec/compose-go/v2/dotenv"
)

var envEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, `$`, `\$`, "\n", `\n`, "\r", `\r`)

// EnvAssignment formats one KEY=value line of the application env file.
// The value is left bare when it is plain, single-quoted when that needs
// no escaping and double-quoted otherwise, so that docker compose reads
// back exactly value.
func EnvAssignment(key, value string) string {
	switch {
	case envBare(value):
		return key + "=" + value
	case !strings.ContainsAny(value, "'\\\n\r"):
		return key + "='" + value + "'"
	}
	return key + `="` + envEscaper.Replace(value) + `"`
}

func envBare(value string) bool {
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("_-./:@,+=%?&", r):
		default:
			return false
		}
	}
	return true
}

// ParseEnv reads env file content the way docker compose's env_file does.
func ParseEnv(b []byte) (map[string]string, error) {
	return dotenv.UnmarshalBytesWithLookup(b, nil)
}

// ReadEnvFile is ParseEnv for the file at path.
func ReadEnvFile(path string) (map[string]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseEnv(b)
}

// VerifyEnv checks that content reads back with the values in want.
// Mismatches name the key only; values may be secrets.
func VerifyEnv(content []byte, want map[string]string) error {
	got, err := ParseEnv(content)
	if err != nil {
		return err
	}
	var bad []string
	for k, v := range want {
		if g, ok := got[k]; !ok || g != v {
			bad = append(bad, k)
		}
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return fmt.Errorf("values of %s do not read back as written", strings.Join(bad, ", "))
	}
	return nil
}
