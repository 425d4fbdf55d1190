package canvascatalog_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	tassert "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"oss.terrastruct.com/util-go/assert"

	"oss.terrastruct.com/d2canvas/canvascatalog"
	"oss.terrastruct.com/d2canvas/canvasgraph"
)

func counter() func() string {
	i := 0
	return func() string {
		i++
		return fmt.Sprintf("id%d", i)
	}
}

func TestDefault(t *testing.T) {
	t.Parallel()

	c, err := canvascatalog.Default()
	assert.Success(t, err)

	s, ok := c.Service("rds")
	require.True(t, ok)
	assert.String(t, "database", s.Category)

	_, ok = c.Zone("vpc")
	tassert.True(t, ok)

	cat, ok := c.Category("compute")
	require.True(t, ok)
	assert.String(t, "#ED7100", cat.Color)

	assert.Equal(t, []string{"fanout", "serverless-api", "three-tier"}, c.TemplateIDs())
	tassert.NotEmpty(t, c.ServicesIn("networking"))

	// Every bundled template instantiates.
	for _, id := range c.TemplateIDs() {
		_, err := c.Instantiate(id, counter())
		assert.Success(t, err)
	}
}

func TestInstantiate(t *testing.T) {
	t.Parallel()

	c, err := canvascatalog.Default()
	assert.Success(t, err)

	g, err := c.Instantiate("three-tier", counter())
	assert.Success(t, err)

	assert.Equal(t, 5, len(g.Nodes))
	assert.Equal(t, 3, len(g.Edges))

	vpc := g.Nodes[0]
	assert.String(t, "id1", vpc.ID)
	tassert.True(t, vpc.IsGroup())
	assert.Equal(t, 640., vpc.Width)
	assert.String(t, "VPC", vpc.Label())

	web := g.Nodes[2]
	assert.String(t, "id1", web.ParentID)
	assert.String(t, "Web servers", web.Label())
	assert.Equal(t, canvasgraph.ServiceData{ServiceID: "ec2", Label: "Web servers", Category: "compute"}, web.Data)

	lb := g.Nodes[1]
	assert.String(t, "Application Load Balancer", lb.Label())

	e := g.Edges[0]
	assert.String(t, "id6", e.ID)
	assert.String(t, "id2", e.Source)
	assert.String(t, "id3", e.Target)
	assert.String(t, "bottom-s-4", e.SourceHandle)
	assert.String(t, "top-t-4", e.TargetHandle)
	assert.Equal(t, canvasgraph.EdgeSmartOrthogonal, e.Type)
	assert.String(t, "queries", g.Edges[2].Label)

	g, err = c.Instantiate("serverless-api", counter())
	assert.Success(t, err)
	assert.String(t, "right-s-4", g.Edges[2].SourceHandle)
	assert.Equal(t, canvasgraph.EdgeEditableBezier, g.Edges[2].Type)
}

const userCatalog = `
services:
  - id: ec2
    name: Elastic Compute Cloud
    category: compute
  - id: kinesis
    name: Kinesis
    category: messaging
templates:
  - id: broken
    name: Broken
    nodes:
      - {ref: a, service: ec2}
      - {ref: b, service: redshift}
    edges:
      - {from: a, to: b}
`

func TestUnknownService(t *testing.T) {
	t.Parallel()

	base, err := canvascatalog.Default()
	assert.Success(t, err)
	user, err := canvascatalog.Parse([]byte(userCatalog))
	assert.Success(t, err)
	c, err := base.Merge(user)
	assert.Success(t, err)

	g, err := c.Instantiate("broken", counter())
	tassert.Nil(t, g)
	assert.ErrorString(t, err, `failed to instantiate template "broken": template "broken" references unknown service "redshift"`)

	var use *canvascatalog.UnknownServiceError
	require.True(t, errors.As(err, &use))
	assert.String(t, "redshift", use.ServiceID)

	_, err = c.Instantiate("nope", counter())
	assert.ErrorString(t, err, `failed to instantiate template "nope": template "nope" not found`)
}

func TestMerge(t *testing.T) {
	t.Parallel()

	base, err := canvascatalog.Default()
	assert.Success(t, err)
	user, err := canvascatalog.Parse([]byte(userCatalog))
	assert.Success(t, err)

	c, err := base.Merge(user)
	assert.Success(t, err)

	s, ok := c.Service("ec2")
	require.True(t, ok)
	assert.String(t, "Elastic Compute Cloud", s.Name)
	_, ok = c.Service("kinesis")
	tassert.True(t, ok)
	assert.Equal(t, len(base.Services)+1, len(c.Services))

	// base is untouched
	s, _ = base.Service("ec2")
	assert.String(t, "EC2", s.Name)
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		text   string
		expErr string
	}{
		{
			name:   "duplicate_service",
			text:   "services:\n  - {id: a, name: A}\n  - {id: a, name: B}\n",
			expErr: `invalid catalog: duplicate service "a"`,
		},
		{
			name:   "empty_zone_id",
			text:   "zones:\n  - {name: Z}\n",
			expErr: `invalid catalog: zone with empty id`,
		},
		{
			name:   "template_edge",
			text:   "templates:\n  - id: t\n    nodes: [{ref: a, service: x}]\n    edges: [{from: a, to: b}]\n",
			expErr: `invalid catalog: template "t": edge to unknown ref "b"`,
		},
		{
			name:   "template_parent",
			text:   "templates:\n  - id: t\n    nodes: [{ref: a, service: x}, {ref: b, service: y, parent: a}]\n",
			expErr: `invalid catalog: template "t": parent "a" of "b" is not a zone`,
		},
		{
			name:   "template_node_kind",
			text:   "templates:\n  - id: t\n    nodes: [{ref: a, service: x, zone: vpc}]\n",
			expErr: `invalid catalog: template "t": node "a" must set exactly one of service and zone`,
		},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := canvascatalog.Parse([]byte(tc.text))
			assert.ErrorString(t, err, tc.expErr)
		})
	}

	_, err := canvascatalog.Parse([]byte("services: [[["))
	require.Error(t, err)
	tassert.Contains(t, err.Error(), "failed to parse catalog: ")
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	assert.Success(t, os.WriteFile(path, []byte(userCatalog), 0600))
	c, err := canvascatalog.Load(path)
	assert.Success(t, err)
	assert.Equal(t, 2, len(c.Services))

	_, err = canvascatalog.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	tassert.Contains(t, err.Error(), "failed to read catalog: ")
}

func TestWarnings(t *testing.T) {
	t.Parallel()

	c, err := canvascatalog.Default()
	assert.Success(t, err)

	g := canvasgraph.NewGraph()
	g.Nodes = append(g.Nodes,
		canvasgraph.NewServiceNode("bucket", canvasgraph.Rel(0, 0), canvasgraph.ServiceData{ServiceID: "s3"}),
		canvasgraph.NewServiceNode("fs", canvasgraph.Rel(0, 200), canvasgraph.ServiceData{ServiceID: "efs"}),
		canvasgraph.NewServiceNode("mystery", canvasgraph.Rel(0, 400), canvasgraph.ServiceData{ServiceID: "quantum"}),
	)
	g.Edges = append(g.Edges,
		&canvasgraph.Edge{ID: "sync", Source: "fs", Target: "bucket"},
		&canvasgraph.Edge{ID: "x", Source: "fs", Target: "mystery"},
	)

	assert.Equal(t, []canvascatalog.Warning{
		{NodeID: "mystery", Message: `unknown service "quantum"`},
		{EdgeID: "sync", Message: "EFS is not compatible with S3"},
	}, c.Warnings(g))
}
