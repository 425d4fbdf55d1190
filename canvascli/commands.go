package canvascli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"oss.terrastruct.com/util-go/go2"
	"oss.terrastruct.com/util-go/xdefer"
	"oss.terrastruct.com/util-go/xmain"

	"oss.terrastruct.com/d2canvas/canvasexchange"
	"oss.terrastruct.com/d2canvas/canvasgraph"
	"oss.terrastruct.com/d2canvas/canvaslayouts"
	"oss.terrastruct.com/d2canvas/canvasstore"
	"oss.terrastruct.com/d2canvas/canvassvg"
	timelib "oss.terrastruct.com/d2canvas/lib/time"
)

func importPath(ms *xmain.State, f *flags, inputPath string) (*canvasgraph.Graph, *canvasexchange.Report, error) {
	b, err := ms.ReadPath(inputPath)
	if err != nil {
		return nil, nil, err
	}
	return importBytes(ms, f, b)
}

// importBytes imports a document, logging what migration changed and any catalog
// warnings.
func importBytes(ms *xmain.State, f *flags, b []byte) (*canvasgraph.Graph, *canvasexchange.Report, error) {
	g, report, err := canvasexchange.Import(b)
	if err != nil {
		return nil, nil, err
	}
	for _, hc := range report.Handles {
		ms.Log.Debug.Printf("edge %q: migrated %s %q to %q", hc.EdgeID, hc.Field, hc.From, hc.To)
	}
	if len(report.Unknown) > 0 {
		ms.Log.Warn.Printf("kept unrecognized handles: %s", strings.Join(report.Unknown, ", "))
	}
	for _, w := range f.catalog.Warnings(g) {
		switch {
		case w.NodeID != "":
			ms.Log.Warn.Printf("node %q: %s", w.NodeID, w.Message)
		default:
			ms.Log.Warn.Printf("edge %q: %s", w.EdgeID, w.Message)
		}
	}
	return g, report, nil
}

func exportGraph(g *canvasgraph.Graph, report *canvasexchange.Report) ([]byte, error) {
	opts := canvasexchange.ExportOpts{}
	if report != nil {
		opts.Metadata = report.Metadata
	}
	return canvasexchange.Export(g, opts)
}

func layoutCmd(ctx context.Context, ms *xmain.State, f *flags) (err error) {
	defer xdefer.Errorf(&err, "failed to layout")

	ms.Opts = xmain.NewOpts(ms.Env, ms.Opts.Flags.Args()[1:])
	inputPath, outputPath, err := inOut(ms, "layout", "")
	if err != nil {
		return err
	}
	g, report, err := importPath(ms, f, inputPath)
	if err != nil {
		return err
	}

	st, err := canvasstore.New(g)
	if err != nil {
		return err
	}
	runner := canvaslayouts.NewRunner(f.cfg.Layout)
	runner.Timeout = f.timeout
	ms.Log.Info.Printf("laying out %d nodes with %s (%s)...", len(g.Nodes), f.cfg.Layout.Algorithm, f.cfg.Layout.Direction)
	t := time.Now()
	res := runner.Run(ctx, st.Graph(), func(laidOut *canvasgraph.Graph) error {
		return st.ApplyLayout(ctx, laidOut)
	})
	if res.Err != nil {
		return res.Err
	}
	ms.Log.Debug.Printf("layout took %s", timelib.HumanDuration(time.Since(t)))

	b, err := exportGraph(st.Graph(), report)
	if err != nil {
		return err
	}
	return writeOutput(ms, outputPath, b)
}

func migrateCmd(ctx context.Context, ms *xmain.State, f *flags) (err error) {
	defer xdefer.Errorf(&err, "failed to migrate")

	ms.Opts = xmain.NewOpts(ms.Env, ms.Opts.Flags.Args()[1:])
	inputPath, outputPath, err := inOut(ms, "migrate", "")
	if err != nil {
		return err
	}
	b, err := ms.ReadPath(inputPath)
	if err != nil {
		return err
	}
	doc, err := canvasexchange.Parse(b)
	if err != nil {
		return err
	}
	if !doc.ExportDate.IsZero() {
		ms.Log.Debug.Printf("document version %q exported %s", doc.Version, timelib.HumanDate(doc.ExportDate))
	}
	g, report, err := importBytes(ms, f, b)
	if err != nil {
		return err
	}
	if report.Migrated() {
		ms.Log.Info.Printf("migrated %d handles", len(report.Handles))
	} else {
		ms.Log.Info.Printf("no handles to migrate")
	}

	out, err := exportGraph(g, report)
	if err != nil {
		return err
	}
	return writeOutput(ms, outputPath, out)
}

func renderCmd(ctx context.Context, ms *xmain.State, f *flags) (err error) {
	defer xdefer.Errorf(&err, "failed to render")

	ms.Opts = xmain.NewOpts(ms.Env, ms.Opts.Flags.Args()[1:])
	inputPath, outputPath, err := inOut(ms, "render", ".svg")
	if err != nil {
		return err
	}
	g, _, err := importPath(ms, f, inputPath)
	if err != nil {
		return err
	}
	svg, err := canvassvg.Render(g, f.renderOpts())
	if err != nil {
		return err
	}
	return writeOutput(ms, outputPath, svg)
}

func (f *flags) renderOpts() *canvassvg.RenderOpts {
	return &canvassvg.RenderOpts{
		Pad:     go2.Pointer(int(f.pad)),
		Route:   &f.cfg.Route,
		Catalog: f.catalog,
	}
}

func templateCmd(ctx context.Context, ms *xmain.State, f *flags) (err error) {
	defer xdefer.Errorf(&err, "failed to instantiate template")

	ms.Opts = xmain.NewOpts(ms.Env, ms.Opts.Flags.Args()[1:])
	args := ms.Opts.Args
	if len(args) == 0 {
		return xmain.UsageErrorf("template must be passed a template id. Available templates: %s", strings.Join(f.catalog.TemplateIDs(), ", "))
	}
	if len(args) > 2 {
		return xmain.UsageErrorf("too many arguments passed to template")
	}
	outputPath := "-"
	if len(args) == 2 {
		outputPath = ms.AbsPath(args[1])
	}

	g, err := f.catalog.Instantiate(args[0], uuid.NewString)
	if err != nil {
		return err
	}
	b, err := canvasexchange.Export(g, canvasexchange.ExportOpts{
		Metadata: map[string]interface{}{"template": args[0]},
	})
	if err != nil {
		return err
	}
	return writeOutput(ms, outputPath, b)
}

func templatesCmd(ms *xmain.State, f *flags) {
	fmt.Fprintln(ms.Stdout, "Available templates:")
	for _, id := range f.catalog.TemplateIDs() {
		t, _ := f.catalog.Template(id)
		fmt.Fprintf(ms.Stdout, "- %s: %s\n", id, t.Name)
	}
}
