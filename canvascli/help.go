package canvascli

import (
	"fmt"
	"path/filepath"

	"oss.terrastruct.com/util-go/xmain"

	"oss.terrastruct.com/d2canvas/lib/version"
)

func help(ms *xmain.State) {
	fmt.Fprintf(ms.Stdout, `%[1]s %[2]s
Usage:
  %[1]s [--config=canvas.toml] layout in.json [out.json]
  %[1]s migrate in.json [out.json]
  %[1]s [--pad=40] render in.json [out.svg]
  %[1]s template id [out.json]
  %[1]s [--host=localhost] [--port=0] watch in.json

%[1]s lays out, migrates and previews cloud architecture diagrams stored as JSON exchange
documents. Output defaults to stdout, except render which defaults to in.svg.

Use - to have %[1]s read from stdin or write to stdout.

Flags:
%[3]s

Subcommands:
  %[1]s layout in.json [out.json] - Auto-layout the diagram and spread parallel edges into lanes
  %[1]s migrate in.json [out.json] - Rewrite legacy handles and re-export at the current version
  %[1]s render in.json [out.svg] - Render an SVG preview
  %[1]s template id [out.json] - Instantiate a catalog template with fresh ids
  %[1]s templates - List the catalog templates
  %[1]s watch in.json - Serve a live preview that reloads when in.json changes
  %[1]s version - Print the version
`, filepath.Base(ms.Name), version.Version, ms.Opts.Defaults())
}
