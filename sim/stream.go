// Streaming engine: assembles a one-node halo around the grid from boundary
// values and pull-streams every population one lattice step.

package sim

// Halo corner slots.
const (
	CornerBottomLeft = iota
	CornerBottomRight
	CornerTopLeft
	CornerTopRight
)

// Boundary holds the halo values consumed by Stream. Only the components an
// interior node pulls are meaningful.
type Boundary struct {
	Left    []Populations // x = -1, one per row
	Right   []Populations // x = nx, one per row
	Top     []Populations // y = ny, one per column
	Bottom  []Populations // y = -1, one per column
	Corners [4]Populations
}

// reflectRule fills one halo component with the reflected population of the
// edge node at column offset dx from the halo position.
type reflectRule struct {
	dir  Direction // halo component written
	dx   int
	from Direction // population of the edge node that bounces back
}

var (
	topReflect = []reflectRule{
		{South, 0, North},
		{SouthWest, -1, NorthEast},
		{SouthEast, +1, NorthWest},
	}
	bottomReflect = []reflectRule{
		{North, 0, South},
		{NorthEast, +1, SouthWest},
		{NorthWest, -1, SouthEast},
	}
)

// cornerReflect lists, per halo corner, the diagonal an edge corner node
// pulls from it and the population it reflects.
var cornerReflect = [4]struct {
	right, top bool
	dir, from  Direction
}{
	CornerBottomLeft:  {false, false, NorthEast, SouthWest},
	CornerBottomRight: {true, false, NorthWest, SouthEast},
	CornerTopLeft:     {false, true, SouthEast, NorthWest},
	CornerTopRight:    {true, true, SouthWest, NorthEast},
}

// Streamer advects distribution fields on one lattice.
type Streamer struct {
	lm        *LatticeModel
	topology  Topology
	obstacles []bool // nil when the run has no obstacles
}

// NewStreamer creates a streamer. obstacles may be nil; otherwise it must
// hold one flag per node.
func NewStreamer(lm *LatticeModel, topology Topology, obstacles []bool) *Streamer {
	if topology == "" {
		topology = TopologyChannel
	}
	return &Streamer{lm: lm, topology: topology, obstacles: obstacles}
}

// Topology returns the top/bottom edge behaviour.
func (s *Streamer) Topology() Topology { return s.topology }

// BoundaryCondition computes halo values from the pre-stream field: periodic
// images on the left and right, bounceback or periodic images on the top and
// bottom depending on the topology.
func (s *Streamer) BoundaryCondition(df []Populations) *Boundary {
	nx, ny := s.lm.cols, s.lm.rows
	b := &Boundary{
		Left:   make([]Populations, ny),
		Right:  make([]Populations, ny),
		Top:    make([]Populations, nx),
		Bottom: make([]Populations, nx),
	}
	for y := 0; y < ny; y++ {
		b.Left[y] = df[s.lm.Index(nx-1, y)]
		b.Right[y] = df[s.lm.Index(0, y)]
	}

	if s.topology == TopologyPeriodic {
		for x := 0; x < nx; x++ {
			b.Top[x] = df[s.lm.Index(x, 0)]
			b.Bottom[x] = df[s.lm.Index(x, ny-1)]
		}
		b.Corners[CornerBottomLeft] = df[s.lm.Index(nx-1, ny-1)]
		b.Corners[CornerBottomRight] = df[s.lm.Index(0, ny-1)]
		b.Corners[CornerTopLeft] = df[s.lm.Index(nx-1, 0)]
		b.Corners[CornerTopRight] = df[s.lm.Index(0, 0)]
		return b
	}

	for x := 0; x < nx; x++ {
		for _, r := range topReflect {
			if xs := x + r.dx; xs >= 0 && xs < nx {
				b.Top[x][r.dir] = df[s.lm.Index(xs, ny-1)][r.from]
			}
		}
		for _, r := range bottomReflect {
			if xs := x + r.dx; xs >= 0 && xs < nx {
				b.Bottom[x][r.dir] = df[s.lm.Index(xs, 0)][r.from]
			}
		}
	}
	for k, r := range cornerReflect {
		x, y := 0, 0
		if r.right {
			x = nx - 1
		}
		if r.top {
			y = ny - 1
		}
		b.Corners[k][r.dir] = df[s.lm.Index(x, y)][r.from]
	}
	return b
}

// assemble embeds df in a (nx+2)x(ny+2) frame filled from the halo values.
func (s *Streamer) assemble(df []Populations, b *Boundary) []Populations {
	nx, ny := s.lm.cols, s.lm.rows
	w := nx + 2
	frame := make([]Populations, w*(ny+2))
	for y := 0; y < ny; y++ {
		copy(frame[(y+1)*w+1:(y+1)*w+1+nx], df[y*nx:(y+1)*nx])
		frame[(y+1)*w] = b.Left[y]
		frame[(y+1)*w+nx+1] = b.Right[y]
	}
	copy(frame[1:nx+1], b.Bottom)
	copy(frame[(ny+1)*w+1:(ny+1)*w+1+nx], b.Top)
	frame[0] = b.Corners[CornerBottomLeft]
	frame[nx+1] = b.Corners[CornerBottomRight]
	frame[(ny+1)*w] = b.Corners[CornerTopLeft]
	frame[(ny+1)*w+nx+1] = b.Corners[CornerTopRight]
	return frame
}

// upstreamBlocked reports whether the node at (sx, sy), after periodic
// wrapping, is an obstacle. Positions beyond a wall are never obstacles.
func (s *Streamer) upstreamBlocked(sx, sy int) bool {
	nx, ny := s.lm.cols, s.lm.rows
	sx = (sx + nx) % nx
	if sy < 0 || sy >= ny {
		if s.topology != TopologyPeriodic {
			return false
		}
		sy = (sy + ny) % ny
	}
	return s.obstacles[sy*nx+sx]
}

// Stream returns the post-streaming field. df is not modified. A population
// whose upstream node is an obstacle is replaced by the node's own reversed
// population; obstacle nodes keep their populations.
func (s *Streamer) Stream(df []Populations, b *Boundary) []Populations {
	nx, ny := s.lm.cols, s.lm.rows
	w := nx + 2
	frame := s.assemble(df, b)
	out := make([]Populations, len(df))
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			n := y*nx + x
			if s.obstacles != nil && s.obstacles[n] {
				out[n] = df[n]
				continue
			}
			out[n][Rest] = df[n][Rest]
			for i := East; i < NumDirections; i++ {
				sx, sy := x-offsets[i][0], y-offsets[i][1]
				if s.obstacles != nil && s.upstreamBlocked(sx, sy) {
					out[n][i] = df[n][i.Opposite()]
					continue
				}
				out[n][i] = frame[(sy+1)*w+sx+1][i]
			}
		}
	}
	return out
}
