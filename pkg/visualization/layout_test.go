package visualization

import (
	"bytes"
	"math"
	"math/rand"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/dd0wney/cluso-fraudgraph/pkg/graph"
)

// maxJitter bounds |Jitter| for the default period: 3*0.4 + 2*0.6.
const maxJitter = 2.4

func scenarioSnapshot() *graph.Snapshot {
	nodes := []graph.Node{
		{ID: "1", Category: "card", Risk: graph.NormalizeRisk(90)},
		{ID: "2", Category: "card", Risk: graph.NormalizeRisk(10)},
		{ID: "3", Category: "ip", Risk: graph.NormalizeRisk(50)},
	}
	links := []graph.Link{{Source: 0, Target: 1}}
	graph.CountConnections(nodes, links)
	return &graph.Snapshot{Nodes: nodes, Links: links}
}

func randomSnapshot(r *rand.Rand, n int) *graph.Snapshot {
	categories := []string{"card", "ip", "device", "account", graph.UnknownCategory}
	nodes := make([]graph.Node, n)
	for i := range nodes {
		nodes[i] = graph.Node{
			ID:       "n" + strconv.Itoa(i),
			Category: categories[r.Intn(len(categories))],
			Risk:     r.Float64(),
		}
	}
	var links []graph.Link
	if n > 1 {
		for i := 0; i < n; i++ {
			links = append(links, graph.Link{Source: r.Intn(n), Target: r.Intn(n)})
		}
	}
	return &graph.Snapshot{Nodes: nodes, Links: links}
}

func angleOf(p, center Position) float64 {
	return math.Atan2(p.Y-center.Y, p.X-center.X)
}

func TestRadialSeederWedges(t *testing.T) {
	config := DefaultLayoutConfig()
	config.WedgeRotation = -math.Pi / 2
	seeder := NewRadialSeeder(config)
	frame := seeder.Seed(scenarioSnapshot(), 0)

	if len(frame) != 3 {
		t.Fatalf("Expected 3 positions, got %d", len(frame))
	}

	// "card" wedge is centered on angle 0, "ip" on π.
	center := config.Center()
	for _, id := range []string{"1", "2"} {
		if a := angleOf(frame[id], center); math.Abs(a) > math.Pi/4 {
			t.Errorf("Node %s angle %f not in the card wedge around 0", id, a)
		}
	}
	ip := frame["3"]
	if math.Abs(ip.X-(center.X-90)) > maxJitter || math.Abs(ip.Y-center.Y) > maxJitter {
		t.Errorf("Node 3 at %+v, expected near (%f, %f)", ip, center.X-90, center.Y)
	}
}

func TestRadialSeederDefaultRotation(t *testing.T) {
	config := DefaultLayoutConfig()
	frame := NewRadialSeeder(config).Seed(scenarioSnapshot(), 0)

	// With no rotation the two wedges sit at π/2 (below center) and 3π/2.
	if frame["1"].Y <= config.Center().Y || frame["2"].Y <= config.Center().Y {
		t.Errorf("card nodes should be below center: %+v %+v", frame["1"], frame["2"])
	}
	if frame["3"].Y >= config.Center().Y {
		t.Errorf("ip node should be above center: %+v", frame["3"])
	}
}

func TestRiskPullsTowardCenter(t *testing.T) {
	config := DefaultLayoutConfig()
	snap := scenarioSnapshot()
	frame := NewRadialSeeder(config).Seed(snap, 0)

	center := config.Center()
	high := frame["1"].Distance(center)
	low := frame["2"].Distance(center)
	if high >= low {
		t.Errorf("risk 0.9 node at radius %f should be inside risk 0.1 node at %f", high, low)
	}
	if math.Abs(high-(110-0.9*40)) > 2*maxJitter {
		t.Errorf("high risk radius = %f, want about %f", high, 110-0.9*40)
	}
}

func TestWedgeOffset(t *testing.T) {
	if got := WedgeOffset(0, 1); got != 0 {
		t.Errorf("single node offset = %f, want 0", got)
	}
	for _, n := range []int{2, 3, 8} {
		sum := 0.0
		for k := 0; k < n; k++ {
			sum += WedgeOffset(k, n)
		}
		if math.Abs(sum) > 1e-12 {
			t.Errorf("offsets for n=%d should be symmetric, sum=%f", n, sum)
		}
	}
	if got, want := WedgeOffset(1, 2), math.Pi/20; math.Abs(got-want) > 1e-12 {
		t.Errorf("WedgeOffset(1, 2) = %f, want %f", got, want)
	}
}

func TestWedgeCenter(t *testing.T) {
	if got := WedgeCenter(0, 2); math.Abs(got-math.Pi/2) > 1e-12 {
		t.Errorf("WedgeCenter(0, 2) = %f, want π/2", got)
	}
	if got := WedgeCenter(1, 2); math.Abs(got-3*math.Pi/2) > 1e-12 {
		t.Errorf("WedgeCenter(1, 2) = %f, want 3π/2", got)
	}
}

func TestJitter(t *testing.T) {
	for tick := uint64(0); tick < 20; tick++ {
		j := Jitter("node-a", tick, 7)
		if math.Abs(j) > maxJitter+1e-9 {
			t.Errorf("Jitter at tick %d = %f out of range", tick, j)
		}
		if j != Jitter("node-a", tick+7, 7) {
			t.Errorf("Jitter should repeat with period 7 (tick %d)", tick)
		}
	}
	if Jitter("x", 3, 7) != Jitter("x", 3, 7) {
		t.Error("Jitter is not deterministic")
	}
}

func TestSeedDeterministic(t *testing.T) {
	snap := randomSnapshot(rand.New(rand.NewSource(7)), 25)
	seeder := NewRadialSeeder(DefaultLayoutConfig())

	a := seeder.Seed(snap, 11)
	b := seeder.Seed(snap, 11)
	if !reflect.DeepEqual(a, b) {
		t.Error("Seed produced different frames for identical input")
	}
}

func TestSeedEmptySnapshot(t *testing.T) {
	frame := NewPipeline(DefaultLayoutConfig()).ComputeLayout(&graph.Snapshot{}, 0)
	if len(frame) != 0 {
		t.Errorf("Expected empty frame, got %d positions", len(frame))
	}
}

func TestRelaxConvergesToRestLength(t *testing.T) {
	config := DefaultLayoutConfig()
	config.WedgeRotation = -math.Pi / 2
	snap := scenarioSnapshot()

	frame := NewPipeline(config).ComputeLayout(snap, 0)
	if d := frame["1"].Distance(frame["2"]); math.Abs(d-config.RestLength) > 1.0 {
		t.Errorf("linked distance = %f, want within 1.0 of %f", d, config.RestLength)
	}
}

func TestRelaxSeparatesCoincidentNodes(t *testing.T) {
	config := DefaultLayoutConfig()
	snap := &graph.Snapshot{Nodes: []graph.Node{{ID: "a"}, {ID: "b"}}}
	seed := Frame{"a": {X: 150, Y: 150}, "b": {X: 150, Y: 150}}

	frame := NewForceRelaxer(config).Relax(seed, snap)
	if frame["a"].X <= frame["b"].X {
		t.Errorf("lower index should move right: a=%+v b=%+v", frame["a"], frame["b"])
	}
	if d := frame["a"].Distance(frame["b"]); d < config.MinSeparation {
		t.Errorf("coincident nodes still %f apart", d)
	}
	if seed["a"] != (Position{X: 150, Y: 150}) {
		t.Error("Relax modified the seed frame")
	}
}

func TestRelaxZeroIterationsStillClamps(t *testing.T) {
	config := DefaultLayoutConfig()
	config.Iterations = 0
	snap := &graph.Snapshot{Nodes: []graph.Node{{ID: "a"}}}

	frame := NewForceRelaxer(config).Relax(Frame{"a": {X: -50, Y: 400}}, snap)
	want := Position{X: 15, Y: 285}
	if frame["a"] != want {
		t.Errorf("got %+v, want %+v", frame["a"], want)
	}
}

func TestRelaxIgnoresOutOfRangeLinks(t *testing.T) {
	snap := &graph.Snapshot{
		Nodes: []graph.Node{{ID: "a"}, {ID: "b"}},
		Links: []graph.Link{{Source: 0, Target: 5}, {Source: -1, Target: 1}},
	}
	seed := Frame{"a": {X: 100, Y: 100}, "b": {X: 200, Y: 200}}
	frame := NewForceRelaxer(DefaultLayoutConfig()).Relax(seed, snap)
	if frame["a"] != seed["a"] || frame["b"] != seed["b"] {
		t.Errorf("out of range links should be ignored, got %+v", frame)
	}
}

func TestPipelineRelaxDisabled(t *testing.T) {
	config := DefaultLayoutConfig()
	config.Relax = false
	snap := scenarioSnapshot()

	got := NewPipeline(config).ComputeLayout(snap, 4)
	want := NewRadialSeeder(config).Seed(snap, 4)
	if !reflect.DeepEqual(got, want) {
		t.Error("disabled relaxation should return the seeded frame")
	}
}

func TestPipelineToggleAndObserver(t *testing.T) {
	config := DefaultLayoutConfig()
	config.Relax = false
	snap := scenarioSnapshot()

	var stages []string
	p := NewPipeline(config, WithStageObserver(func(stage string, d time.Duration) {
		stages = append(stages, stage)
	}))
	if p.Relaxing() {
		t.Fatal("relaxation should start disabled")
	}
	p.ComputeLayout(snap, 1)
	if !reflect.DeepEqual(stages, []string{"seed"}) {
		t.Errorf("stages = %v, want [seed]", stages)
	}

	if prev := p.SetRelax(true); prev {
		t.Error("SetRelax should return the previous setting")
	}
	stages = nil
	got := p.ComputeLayout(snap, 1)
	if !reflect.DeepEqual(stages, []string{"seed", "relax"}) {
		t.Errorf("stages = %v, want [seed relax]", stages)
	}
	want := NewForceRelaxer(config).Relax(NewRadialSeeder(config).Seed(snap, 1), snap)
	if !reflect.DeepEqual(got, want) {
		t.Error("enabled relaxation should match seed then relax")
	}
}

func TestLayoutProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	config := DefaultLayoutConfig()
	pipeline := NewPipeline(config)
	lo, hi := config.Margin, config.CanvasSize-config.Margin

	properties.Property("relaxed positions stay inside the margins", prop.ForAll(
		func(n int, seed int64, tick uint64) bool {
			snap := randomSnapshot(rand.New(rand.NewSource(seed)), n)
			frame := pipeline.ComputeLayout(snap, tick)
			if len(frame) != n {
				return false
			}
			for _, p := range frame {
				if p.X < lo || p.X > hi || p.Y < lo || p.Y > hi {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 40),
		gen.Int64(),
		gen.UInt64(),
	))

	properties.Property("layout is deterministic", prop.ForAll(
		func(n int, seed int64, tick uint64) bool {
			snap := randomSnapshot(rand.New(rand.NewSource(seed)), n)
			return reflect.DeepEqual(pipeline.ComputeLayout(snap, tick), pipeline.ComputeLayout(snap, tick))
		},
		gen.IntRange(0, 40),
		gen.Int64(),
		gen.UInt64(),
	))

	properties.TestingRun(t)
}

func TestScaleTo(t *testing.T) {
	tests := []struct {
		p          Position
		wantX, wantY int
	}{
		{Position{0, 0}, 0, 0},
		{Position{300, 300}, 79, 23},
		{Position{150, 150}, 40, 12},
		{Position{-10, 400}, 0, 23},
	}
	for _, tt := range tests {
		x, y := ScaleTo(tt.p, 300, 80, 24)
		if x != tt.wantX || y != tt.wantY {
			t.Errorf("ScaleTo(%+v) = (%d, %d), want (%d, %d)", tt.p, x, y, tt.wantX, tt.wantY)
		}
	}
}

func TestRenderSVG(t *testing.T) {
	snap := scenarioSnapshot()
	frame := NewPipeline(DefaultLayoutConfig()).ComputeLayout(snap, 0)

	var buf bytes.Buffer
	if err := RenderSVG(&buf, Scene{Snapshot: snap, Frame: frame, Hovered: "3", CanvasSize: 300}); err != nil {
		t.Fatalf("RenderSVG failed: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "<svg") || !strings.Contains(out, "</svg>") {
		t.Fatal("output is not an svg document")
	}
	if got := strings.Count(out, "<circle"); got != 3 {
		t.Errorf("Expected 3 circles, got %d", got)
	}
	if got := strings.Count(out, "<line"); got != 1 {
		t.Errorf("Expected 1 line, got %d", got)
	}
	if !strings.Contains(out, `id="node-1" data-band="high"`) {
		t.Error("high risk node not tagged with its band")
	}
	if !strings.Contains(out, "stroke:"+colorHover) {
		t.Error("hovered node not highlighted")
	}
}

func TestRenderSVGEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderSVG(&buf, Scene{}); err != nil {
		t.Fatalf("RenderSVG failed: %v", err)
	}
	if strings.Contains(buf.String(), "<circle") {
		t.Error("empty scene should draw no nodes")
	}
}
