package sim

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/mpmsim/internal/collision"
	"github.com/san-kum/mpmsim/internal/linalg"
	"github.com/san-kum/mpmsim/internal/physics"
	"gonum.org/v1/gonum/spatial/r3"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func block(center r3.Vec, n int, spacing float64) []r3.Vec {
	var pts []r3.Vec
	off := float64(n-1) / 2
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				pts = append(pts, r3.Vec{
					X: center.X + (float64(i)-off)*spacing,
					Y: center.Y + (float64(j)-off)*spacing,
					Z: center.Z + (float64(k)-off)*spacing,
				})
			}
		}
	}
	return pts
}

type recordingProfiler struct {
	ticks  int
	phases []string
}

func (r *recordingProfiler) StartTick()             { r.ticks++; r.phases = r.phases[:0] }
func (r *recordingProfiler) StartPhase(name string) { r.phases = append(r.phases, name) }
func (r *recordingProfiler) EndTick()               {}

var _ = Describe("Simulator", func() {
	var (
		s     *Simulator
		mat   *physics.Material
		world = r3.Vec{X: 1, Y: 1, Z: 1}
		h     = 0.05
	)

	BeforeEach(func() {
		var err error
		mat, err = physics.NewMaterial(50, 0.3, 1e-3, 1)
		Expect(err).NotTo(HaveOccurred())
		s = New(WithWorkers(4), WithLogger(quietLogger))
	})

	Describe("Initialize", func() {
		It("sizes the grid from the world extents", func() {
			Expect(s.Initialize(r3.Vec{}, r3.Vec{X: 1, Y: 0.5, Z: 0.25}, 0.05)).To(Succeed())
			info := s.Info()
			Expect(info.W).To(Equal(21))
			Expect(info.H).To(Equal(11))
			Expect(info.L).To(Equal(6))
			Expect(info.GridSize).To(Equal(21 * 11 * 6))
		})

		It("stores node coordinates in row-major order", func() {
			Expect(s.Initialize(r3.Vec{}, world, h)).To(Succeed())
			idx := s.index(3, 4, 5)
			Expect(s.grid[idx].Coord).To(Equal([3]int{3, 4, 5}))
		})

		It("rejects a non-positive spacing", func() {
			err := s.Initialize(r3.Vec{}, world, 0)
			Expect(errors.Is(err, ErrInvalidGrid)).To(BeTrue())
		})
	})

	Describe("registration", func() {
		It("rejects a nil material", func() {
			Expect(s.AddObject([]r3.Vec{{X: 0.5}}, nil)).To(MatchError(ErrNilMaterial))
		})

		It("rejects mismatched velocities", func() {
			err := s.AddObjectWithVelocity([]r3.Vec{{}, {}}, []r3.Vec{{}}, mat)
			Expect(errors.Is(err, ErrDimensionMismatch)).To(BeTrue())
		})

		It("appends objects and starts particles undeformed", func() {
			Expect(s.AddObject(block(r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, 2, 0.02), mat)).To(Succeed())
			Expect(s.AddObjectWithVelocity([]r3.Vec{{X: 0.3, Y: 0.3, Z: 0.3}}, []r3.Vec{{X: 1}}, mat)).To(Succeed())
			Expect(s.Info().Particles).To(Equal(9))

			ps := s.Particles()
			Expect(ps[8].Vel).To(Equal(r3.Vec{X: 1}))
			Expect(ps[0].F).To(Equal(linalg.Identity()))
			Expect(ps[0].J).To(Equal(1.0))
			Expect(ps[0].B).To(Equal(linalg.Mat3{}))
		})

		It("derives alpha from the transfer scheme", func() {
			Expect(s.Info().Alpha).To(Equal(DefaultAlpha))
			s.SetTransferScheme(FLIP99)
			Expect(s.Info().Alpha).To(Equal(0.99))
			s.SetTransferScheme(FLIP95)
			Expect(s.Info().Alpha).To(Equal(0.95))
		})
	})

	Describe("Substep preconditions", func() {
		It("requires Initialize", func() {
			s.SetConstitutiveModel(physics.NeoHookean{})
			Expect(s.Substep(1e-4)).To(MatchError(ErrNotInitialized))
		})

		It("requires a constitutive model", func() {
			Expect(s.Initialize(r3.Vec{}, world, h)).To(Succeed())
			Expect(s.Substep(1e-4)).To(MatchError(ErrNoConstitutiveModel))
		})

		It("rejects a non-positive step", func() {
			Expect(s.Initialize(r3.Vec{}, world, h)).To(Succeed())
			s.SetConstitutiveModel(physics.NeoHookean{})
			Expect(errors.Is(s.Substep(0), ErrInvalidStep)).To(BeTrue())
		})

		It("reports particles outside the grid without touching state", func() {
			Expect(s.Initialize(r3.Vec{}, world, h)).To(Succeed())
			s.SetConstitutiveModel(physics.NeoHookean{})
			Expect(s.AddObject([]r3.Vec{{X: 0.5, Y: 0.5, Z: 0.5}, {X: 0.01, Y: 0.5, Z: 0.5}}, mat)).To(Succeed())

			err := s.Substep(1e-4)
			Expect(errors.Is(err, ErrOutOfGrid)).To(BeTrue())

			var simErr *SimulationError
			Expect(errors.As(err, &simErr)).To(BeTrue())
			Expect(simErr.Particle).To(Equal(1))
			Expect(s.Info().Step).To(Equal(0))
		})
	})

	Describe("transfers", func() {
		BeforeEach(func() {
			Expect(s.Initialize(r3.Vec{}, world, h)).To(Succeed())
			s.SetConstitutiveModel(physics.NeoHookean{})
		})

		It("conserves mass in P2G", func() {
			pts := block(r3.Vec{X: 0.4, Y: 0.55, Z: 0.47}, 6, 0.021)
			Expect(s.AddObject(pts, mat)).To(Succeed())
			Expect(s.Substep(1e-4)).To(Succeed())

			want := float64(len(pts)) * mat.Mass
			Expect(s.GridMass()).To(BeNumerically("~", want, 1e-12))
			Expect(s.LastStats().ActiveNodes).To(BeNumerically(">", 0))
		})

		It("leaves a lone particle at rest without gravity", func() {
			start := r3.Vec{X: 0.513, Y: 0.47, Z: 0.5}
			Expect(s.AddObject([]r3.Vec{start}, mat)).To(Succeed())
			for i := 0; i < 10; i++ {
				Expect(s.Substep(1e-4)).To(Succeed())
			}
			p := s.Particles()[0]
			Expect(p.Vel).To(Equal(r3.Vec{}))
			Expect(p.Pos).To(Equal(start))
			Expect(s.MaxVelocity()).To(Equal(0.0))
			Expect(s.Info().Step).To(Equal(10))
		})

		DescribeTable("preserves uniform translation",
			func(scheme TransferScheme) {
				s.SetTransferScheme(scheme)
				v := r3.Vec{X: 0.3, Y: -0.2, Z: 0.1}
				pts := block(r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, 4, 0.025)
				vels := make([]r3.Vec, len(pts))
				for i := range vels {
					vels[i] = v
				}
				Expect(s.AddObjectWithVelocity(pts, vels, mat)).To(Succeed())

				dt := 1e-3
				Expect(s.Substep(dt)).To(Succeed())

				for i, p := range s.Particles() {
					Expect(r3.Norm(r3.Sub(p.Vel, v))).To(BeNumerically("<", 1e-10))
					moved := r3.Sub(p.Pos, pts[i])
					Expect(r3.Norm(r3.Sub(moved, r3.Scale(dt, v)))).To(BeNumerically("<", 1e-12))
				}
				Expect(s.MaxVelocity()).To(BeNumerically("~", r3.Norm(v), 1e-10))
			},
			Entry("APIC", APIC),
			Entry("FLIP95", FLIP95),
			Entry("FLIP99", FLIP99),
		)

		It("reports every stage to the profiler in order", func() {
			prof := &recordingProfiler{}
			s = New(WithWorkers(2), WithLogger(quietLogger), WithProfiler(prof))
			Expect(s.Initialize(r3.Vec{}, world, h)).To(Succeed())
			s.SetConstitutiveModel(physics.NeoHookean{})
			Expect(s.AddObject([]r3.Vec{{X: 0.5, Y: 0.5, Z: 0.5}}, mat)).To(Succeed())
			Expect(s.Substep(1e-4)).To(Succeed())

			Expect(prof.ticks).To(Equal(1))
			Expect(prof.phases).To(Equal([]string{
				StageClear, StageP2G, StageGravity, StageGridForce, StageGridVelocity,
				StageGridBoundary, StageGridCollision, StageUpdateF, StageG2P,
				StageAdvection, StageParticleCollision,
			}))
		})
	})

	Describe("deformation update", func() {
		It("keeps J at one under a rotational velocity field", func() {
			Expect(s.Initialize(r3.Vec{}, world, h)).To(Succeed())
			s.SetConstitutiveModel(physics.NeoHookean{})
			Expect(s.AddObject([]r3.Vec{{X: 0.51, Y: 0.49, Z: 0.5}}, mat)).To(Succeed())

			// v = W x with W skew-symmetric, so ∇v = W and tr ∇v = 0.
			w := linalg.Mat3{{0, -2, 1}, {2, 0, -0.5}, {-1, 0.5, 0}}
			for i := range s.grid {
				c := s.grid[i].Coord
				x := r3.Vec{X: float64(c[0]) * h, Y: float64(c[1]) * h, Z: float64(c[2]) * h}
				s.grid[i].Vel = w.MulVec(x)
			}
			s.updateF(1e-3)

			p := s.particles[0]
			Expect(p.J).To(BeNumerically("~", 1, 1e-12))
			Expect(p.F.Trace()).To(BeNumerically("~", 3, 1e-9))
		})

		It("counts and logs negative volume ratios", func() {
			var buf bytes.Buffer
			s = New(WithWorkers(2), WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
			Expect(s.Initialize(r3.Vec{}, world, h)).To(Succeed())
			s.SetConstitutiveModel(physics.QuadraticVolumePenalty{})
			Expect(s.AddObject([]r3.Vec{{X: 0.5, Y: 0.5, Z: 0.5}, {X: 0.3, Y: 0.3, Z: 0.3}}, mat)).To(Succeed())
			s.particles[1].J = -0.5

			Expect(s.Substep(1e-5)).To(Succeed())
			Expect(s.LastStats().NegativeJ).To(Equal(1))
			Expect(buf.String()).To(ContainSubstring("negative volume ratio"))
		})

		It("resyncs J after a plastic projection", func() {
			Expect(s.Initialize(r3.Vec{}, world, h)).To(Succeed())
			s.SetConstitutiveModel(physics.NeoHookean{})
			s.SetPlasticity(physics.NewVonMises(0.01, 0))
			Expect(s.AddObject([]r3.Vec{{X: 0.5, Y: 0.5, Z: 0.5}}, mat)).To(Succeed())
			s.particles[0].F = linalg.Diag(1.3, 0.8, 1)
			s.particles[0].J = 0.9

			s.updateF(1e-4)
			p := s.particles[0]
			Expect(p.J).To(BeNumerically("~", p.F.Det(), 1e-12))
		})
	})

	Describe("collisions", func() {
		It("stops a falling particle at a sticky floor", func() {
			Expect(s.Initialize(r3.Vec{Y: -9.8}, world, h)).To(Succeed())
			s.SetConstitutiveModel(physics.NeoHookean{})
			plane := 0.3
			floor, err := collision.NewHalfSpace(r3.Vec{Y: plane}, r3.Vec{Y: 1})
			Expect(err).NotTo(HaveOccurred())
			s.AddCollision(collision.NewObject(floor, collision.Sticky, 0))

			start := 0.45
			Expect(s.AddObject([]r3.Vec{{X: 0.5, Y: start, Z: 0.5}}, mat)).To(Succeed())

			for i := 0; i < 1000; i++ {
				Expect(s.Substep(1e-3)).To(Succeed())
				Expect(s.particles[0].Pos.Y).To(BeNumerically(">=", plane-0.25*h))
			}
			Expect(s.particles[0].Pos.Y).To(BeNumerically("<", start-0.05))
		})

		It("zeroes outward velocity on the domain boundary", func() {
			Expect(s.Initialize(r3.Vec{}, world, h)).To(Succeed())
			s.SetConstitutiveModel(physics.NeoHookean{})
			Expect(s.AddObjectWithVelocity([]r3.Vec{{X: 0.06, Y: 0.5, Z: 0.5}}, []r3.Vec{{X: -1}}, mat)).To(Succeed())
			Expect(s.Substep(1e-4)).To(Succeed())

			for _, idx := range s.activeNodes() {
				g := s.grid[idx]
				if g.Coord[0] < BoundaryThickness {
					Expect(g.Vel.X).To(BeNumerically(">=", 0))
				}
			}
			Expect(math.Abs(s.particles[0].Vel.X)).To(BeNumerically("<", 1))
		})
	})

	Describe("Clear", func() {
		It("drops state but keeps the configuration", func() {
			Expect(s.Initialize(r3.Vec{}, world, h)).To(Succeed())
			s.SetConstitutiveModel(physics.NeoHookean{})
			s.SetTransferScheme(FLIP99)
			Expect(s.AddObject([]r3.Vec{{X: 0.5, Y: 0.5, Z: 0.5}}, mat)).To(Succeed())
			Expect(s.Substep(1e-4)).To(Succeed())

			s.Clear()
			Expect(s.Info().Particles).To(Equal(0))
			Expect(s.Info().Step).To(Equal(0))
			Expect(s.Info().Alpha).To(Equal(0.99))
			Expect(s.Positions()).To(BeEmpty())
			Expect(s.Substep(1e-4)).To(MatchError(ErrNotInitialized))

			Expect(s.Initialize(r3.Vec{}, world, h)).To(Succeed())
			Expect(s.AddObject([]r3.Vec{{X: 0.5, Y: 0.5, Z: 0.5}}, mat)).To(Succeed())
			Expect(s.Substep(1e-4)).To(Succeed())
		})
	})

	Describe("energy", func() {
		It("reports kinetic energy of moving particles", func() {
			Expect(s.AddObjectWithVelocity([]r3.Vec{{}, {}}, []r3.Vec{{X: 2}, {Y: 1}}, mat)).To(Succeed())
			Expect(s.KineticEnergy()).To(BeNumerically("~", 0.5*mat.Mass*5, 1e-15))
			Expect(s.ElasticEnergy()).To(Equal(0.0))

			lo, hi := s.JacobianRange()
			Expect(lo).To(Equal(1.0))
			Expect(hi).To(Equal(1.0))
		})
	})
})
