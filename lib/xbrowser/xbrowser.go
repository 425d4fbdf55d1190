// Package xbrowser opens the watch preview in a browser.
package xbrowser

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/pkg/browser"

	"oss.terrastruct.com/util-go/xos"
)

// Open opens url with $BROWSER if set, the system browser otherwise. $BROWSER=0 opens
// nothing.
func Open(ctx context.Context, env *xos.Env, url string) error {
	browserEnv := env.Getenv("BROWSER")
	switch browserEnv {
	case "0":
		return nil
	case "":
		return browser.OpenURL(url)
	}
	browserSh := fmt.Sprintf("%s '$1'", browserEnv)
	cmd := exec.CommandContext(ctx, "sh", "-c", browserSh, "--", url)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to run %v (out: %q): %w", cmd.Args, out, err)
	}
	return nil
}
