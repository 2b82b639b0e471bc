// Package sim implements an explicit Material Point Method solver.
//
// A [Simulator] owns a set of particles and a uniform background grid. Each
// call to [Simulator.Substep] runs the transfer pipeline:
//
//  1. clear the grid
//  2. particle-to-grid transfer of mass and momentum
//  3. gravity and internal elastic forces on grid nodes
//  4. explicit grid velocity update
//  5. sticky domain boundary and obstacle collisions on the grid
//  6. deformation gradient update and plasticity projection
//  7. grid-to-particle transfer (APIC or PIC/FLIP blend)
//  8. advection and obstacle collisions on particles
//
// # Example
//
//	s := sim.New(sim.WithWorkers(8))
//	_ = s.Initialize(r3.Vec{Y: -9.8}, r3.Vec{X: 1, Y: 1, Z: 1}, 0.02)
//	_ = s.AddObject(positions, material)
//	s.SetConstitutiveModel(physics.NeoHookean{})
//	for i := 0; i < steps; i++ {
//	    if err := s.Substep(1e-4); err != nil {
//	        return err
//	    }
//	}
//
// # Thread Safety
//
// A Simulator is NOT safe for concurrent use. Substep parallelizes each
// stage internally with per-node locks on the grid accumulators.
package sim
