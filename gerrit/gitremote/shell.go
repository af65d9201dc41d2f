package gitremote

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"
)

var CommandContext = exec.CommandContext

// call runs git in dir with terminal prompts disabled, so a missing password
// fails instead of hanging. Credentials only ever appear in url arguments;
// error text and logs carry the redacted form.
func (g *Git) call(ctx context.Context, dir string, args []string) ([]byte, error) {
	cmd := CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	eb := &bytes.Buffer{}
	ob := &bytes.Buffer{}
	cmd.Stderr = eb
	cmd.Stdout = ob

	g.cfg.Debugf("+ git %s", ArgsString(redactArgs(args)))
	err := cmd.Run()
	if err != nil {
		return nil, fmt.Errorf("exec: git %q failed: %s (%w)", redactArgs(args), g.scrub(eb.String()), err)
	}
	return ob.Bytes(), err
}

func redactArgs(args []string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = redactURL(arg)
	}
	return out
}

func redactURL(s string) string {
	if !strings.Contains(s, "://") || !strings.Contains(s, "@") {
		return s
	}
	u, err := url.Parse(s)
	if err != nil || u.User == nil {
		return s
	}
	return u.Redacted()
}

// scrub masks the remote's password anywhere in s. Git usually redacts
// credentials in its own messages, but not in every version or code path.
func (g *Git) scrub(s string) string {
	if g.remote.Password == "" {
		return s
	}
	return strings.ReplaceAll(s, g.remote.Password, "xxxxx")
}

// ArgsString returns a string suitable for copy/paste into the terminal.
func ArgsString(args []string) string {
	b := &bytes.Buffer{}

	for i, arg := range args {
		if strings.Contains(arg, " ") {
			b.WriteString(`"`)
			b.WriteString(arg)
			b.WriteString(`"`)
		} else {
			b.WriteString(arg)
		}

		if i < len(args)-1 {
			b.WriteString(" ")
		}
	}

	return b.String()
}
