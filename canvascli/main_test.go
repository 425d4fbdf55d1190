package canvascli_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tassert "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"oss.terrastruct.com/util-go/assert"
	"oss.terrastruct.com/util-go/xmain"
	"oss.terrastruct.com/util-go/xos"

	"oss.terrastruct.com/d2canvas/canvascli"
	"oss.terrastruct.com/d2canvas/canvasexchange"
	"oss.terrastruct.com/d2canvas/canvasgraph"
	"oss.terrastruct.com/d2canvas/lib/version"
)

const legacyDiagram = `{
  "version": "1.0",
  "exportDate": "2023-11-02T09:30:00.000Z",
  "metadata": {"name": "prod"},
  "nodes": [
    {"id": "vpc", "type": "group", "position": {"x": 0, "y": 0}, "width": 600, "height": 400, "data": {"zoneId": "vpc", "label": "VPC"}},
    {"id": "web", "type": "service", "parentId": "vpc", "position": {"x": 40, "y": 40}, "data": {"serviceId": "ec2", "label": "Web", "category": "compute"}},
    {"id": "db", "type": "service", "parentId": "vpc", "position": {"x": 40, "y": 40}, "data": {"serviceId": "rds", "label": "DB", "category": "database"}},
    {"id": "bucket", "type": "service", "position": {"x": 700, "y": 0}, "data": {"serviceId": "s3", "label": "Assets", "category": "storage"}}
  ],
  "edges": [
    {"id": "e1", "source": "web", "target": "db", "sourceHandle": "bottom", "targetHandle": "top-2", "type": "smartOrthogonal"},
    {"id": "e2", "source": "web", "target": "bucket", "sourceHandle": "right-2", "targetHandle": "left-t-4", "label": "assets"}
  ]
}`

func TestCLI_E2E(t *testing.T) {
	t.Parallel()

	tca := []struct {
		name string
		run  func(t *testing.T, ctx context.Context, dir string, env *xos.Env)
	}{
		{
			name: "migrate",
			run: func(t *testing.T, ctx context.Context, dir string, env *xos.Env) {
				writeFile(t, dir, "prod.json", legacyDiagram)
				err := runTestMain(t, ctx, dir, env, "migrate", "prod.json", "out/prod.json")
				assert.Success(t, err)

				g, report, err := canvasexchange.Import(readFile(t, dir, "out/prod.json"))
				assert.Success(t, err)
				tassert.False(t, report.Migrated())
				assert.String(t, canvasexchange.CURRENT_VERSION, report.Version)
				assert.Equal(t, "prod", report.Metadata["name"])
				assert.String(t, "bottom-s-4", g.Edge("e1").SourceHandle)
				assert.String(t, "top-t-8", g.Edge("e1").TargetHandle)
				assert.String(t, "right-s-8", g.Edge("e2").SourceHandle)
			},
		},
		{
			name: "layout",
			run: func(t *testing.T, ctx context.Context, dir string, env *xos.Env) {
				writeFile(t, dir, "prod.json", legacyDiagram)
				err := runTestMain(t, ctx, dir, env, "--direction=LR", "layout", "prod.json", "laid-out.json")
				assert.Success(t, err)

				g, _, err := canvasexchange.Import(readFile(t, dir, "laid-out.json"))
				assert.Success(t, err)
				assert.Equal(t, 4, len(g.Nodes))
				assert.Equal(t, 2, len(g.Edges))

				// The edge from web lifts to vpc, so bucket ranks after the VPC.
				vpc, err := g.AbsoluteBox("vpc")
				assert.Success(t, err)
				bucket, err := g.AbsoluteBox("bucket")
				assert.Success(t, err)
				tassert.True(t, bucket.Left() >= vpc.Right(), "%v %v", vpc.ToString(), bucket.ToString())
				assert.Equal(t, 1, g.Edge("e2").Routing.TotalLanes)
			},
		},
		{
			name: "render",
			run: func(t *testing.T, ctx context.Context, dir string, env *xos.Env) {
				writeFile(t, dir, "prod.json", legacyDiagram)
				err := runTestMain(t, ctx, dir, env, "--pad=10", "render", "prod.json")
				assert.Success(t, err)

				svg := string(readFile(t, dir, "prod.svg"))
				tassert.True(t, strings.HasPrefix(svg, "<?xml"))
				tassert.Contains(t, svg, "Assets")
				tassert.Contains(t, svg, "assets")
			},
		},
		{
			name: "render_stdin",
			run: func(t *testing.T, ctx context.Context, dir string, env *xos.Env) {
				stdout := &bytes.Buffer{}
				tms := testMain(dir, env, "render", "-")
				tms.Stdin = bytes.NewBufferString(legacyDiagram)
				tms.Stdout = stdout
				tms.Start(t, ctx)
				defer tms.Cleanup(t)
				err := tms.Wait(ctx)
				assert.Success(t, err)

				tassert.Contains(t, stdout.String(), "<svg")
				_, err = os.Stat(filepath.Join(dir, "-.svg"))
				tassert.True(t, os.IsNotExist(err))
			},
		},
		{
			name: "template",
			run: func(t *testing.T, ctx context.Context, dir string, env *xos.Env) {
				err := runTestMain(t, ctx, dir, env, "template", "three-tier", "three-tier.json")
				assert.Success(t, err)

				g, report, err := canvasexchange.Import(readFile(t, dir, "three-tier.json"))
				assert.Success(t, err)
				assert.Equal(t, "three-tier", report.Metadata["template"])
				assert.Equal(t, 5, len(g.Nodes))
				tassert.True(t, g.Nodes[0].IsGroup())
				assert.Equal(t, canvasgraph.EdgeSmartOrthogonal, g.Edges[0].Type)
			},
		},
		{
			name: "template_missing_id",
			run: func(t *testing.T, ctx context.Context, dir string, env *xos.Env) {
				err := runTestMain(t, ctx, dir, env, "template")
				require.Error(t, err)
				tassert.Contains(t, err.Error(), "template must be passed a template id. Available templates: fanout, serverless-api, three-tier")
			},
		},
		{
			name: "template_unknown",
			run: func(t *testing.T, ctx context.Context, dir string, env *xos.Env) {
				err := runTestMain(t, ctx, dir, env, "template", "nope")
				require.Error(t, err)
				tassert.Contains(t, err.Error(), `template "nope" not found`)
			},
		},
		{
			name: "templates",
			run: func(t *testing.T, ctx context.Context, dir string, env *xos.Env) {
				stdout := &bytes.Buffer{}
				tms := testMain(dir, env, "templates")
				tms.Stdout = stdout
				tms.Start(t, ctx)
				defer tms.Cleanup(t)
				assert.Success(t, tms.Wait(ctx))
				tassert.Contains(t, stdout.String(), "- three-tier: ")
			},
		},
		{
			name: "version",
			run: func(t *testing.T, ctx context.Context, dir string, env *xos.Env) {
				stdout := &bytes.Buffer{}
				tms := testMain(dir, env, "--version")
				tms.Stdout = stdout
				tms.Start(t, ctx)
				defer tms.Cleanup(t)
				assert.Success(t, tms.Wait(ctx))
				assert.String(t, version.Version+"\n", stdout.String())
			},
		},
		{
			name: "print_config",
			run: func(t *testing.T, ctx context.Context, dir string, env *xos.Env) {
				writeFile(t, dir, "canvas.toml", "[layout]\ndirection = \"BT\"\n")
				stdout := &bytes.Buffer{}
				tms := testMain(dir, env, "--config=canvas.toml", "--layout=dot", "--print-config")
				tms.Stdout = stdout
				tms.Start(t, ctx)
				defer tms.Cleanup(t)
				assert.Success(t, tms.Wait(ctx))
				tassert.Contains(t, stdout.String(), `direction = "BT"`)
				tassert.Contains(t, stdout.String(), `algorithm = "dot"`)
			},
		},
		{
			name: "bad_config",
			run: func(t *testing.T, ctx context.Context, dir string, env *xos.Env) {
				writeFile(t, dir, "canvas.toml", "[align]\nthreshold = -1\n")
				err := runTestMain(t, ctx, dir, env, "--config=canvas.toml", "templates")
				require.Error(t, err)
				tassert.Contains(t, err.Error(), "invalid config: align.threshold must be positive, got -1")
			},
		},
		{
			name: "negative_pad",
			run: func(t *testing.T, ctx context.Context, dir string, env *xos.Env) {
				err := runTestMain(t, ctx, dir, env, "--pad=-1", "render", "x.json")
				require.Error(t, err)
				tassert.Contains(t, err.Error(), "--pad must not be negative, got -1")
			},
		},
		{
			name: "missing_input",
			run: func(t *testing.T, ctx context.Context, dir string, env *xos.Env) {
				err := runTestMain(t, ctx, dir, env, "layout")
				require.Error(t, err)
				tassert.Contains(t, err.Error(), "layout must be passed an input file")
			},
		},
		{
			name: "malformed_input",
			run: func(t *testing.T, ctx context.Context, dir string, env *xos.Env) {
				writeFile(t, dir, "broken.json", `{"nodes": [`)
				err := runTestMain(t, ctx, dir, env, "render", "broken.json")
				require.Error(t, err)
				tassert.Contains(t, err.Error(), "failed to render: failed to parse diagram: unexpected EOF")
				_, err = os.Stat(filepath.Join(dir, "broken.svg"))
				tassert.True(t, os.IsNotExist(err))
			},
		},
		{
			name: "unknown_subcommand",
			run: func(t *testing.T, ctx context.Context, dir string, env *xos.Env) {
				err := runTestMain(t, ctx, dir, env, "paint", "x.json")
				require.Error(t, err)
				tassert.Contains(t, err.Error(), `unknown subcommand "paint"`)
			},
		},
	}

	ctx := context.Background()
	for _, tc := range tca {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithTimeout(ctx, time.Minute)
			defer cancel()

			dir, cleanup := assert.TempDir(t)
			defer cleanup()

			env := xos.NewEnv(nil)

			tc.run(t, ctx, dir, env)
		})
	}
}

func testMain(dir string, env *xos.Env, args ...string) *xmain.TestState {
	return &xmain.TestState{
		Run:  canvascli.Run,
		Env:  env,
		Args: append([]string{"canvascli/canvas"}, args...),
		PWD:  dir,
	}
}

func runTestMain(tb testing.TB, ctx context.Context, dir string, env *xos.Env, args ...string) error {
	tms := testMain(dir, env, args...)
	tms.Start(tb, ctx)
	defer tms.Cleanup(tb)
	return tms.Wait(ctx)
}

func writeFile(tb testing.TB, dir, fp, data string) {
	tb.Helper()
	err := os.MkdirAll(filepath.Dir(filepath.Join(dir, fp)), 0755)
	assert.Success(tb, err)
	assert.WriteFile(tb, filepath.Join(dir, fp), []byte(data), 0644)
}

func readFile(tb testing.TB, dir, fp string) []byte {
	tb.Helper()
	return assert.ReadFile(tb, filepath.Join(dir, fp))
}
